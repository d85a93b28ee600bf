package resilience

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without contacting the upstream while the
// breaker is open or its half-open probe budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// DefaultTimeout bounds a single upstream call. It is kept well below the
// pipeline deadline so both live providers fit inside one request.
const DefaultTimeout = 3 * time.Second

const (
	defaultInitialInterval = 100 * time.Millisecond
	defaultMaxInterval     = 2 * time.Second
)

// ClientConfig configures one upstream client.
type ClientConfig struct {
	// Name labels the breaker and the registry entry.
	Name string

	// Timeout bounds each attempt. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxRetries counts attempts after the first. Weather APIs are metered
	// per call, so the default is zero.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// CircuitBreaker defaults to DefaultCircuitBreakerConfig(Name).
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, receives the client and its call outcomes.
	Registry *Registry

	Transport http.RoundTripper
}

// DefaultClientConfig returns defaults suited to metered weather providers.
func DefaultClientConfig(name string) ClientConfig {
	cb := DefaultCircuitBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         DefaultTimeout,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		CircuitBreaker:  &cb,
	}
}

// Client sends requests through a breaker with optional exponential retry.
type Client struct {
	cfg     ClientConfig
	hc      *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

// NewClient fills unset durations and registers the client when
// cfg.Registry is set.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaultMaxInterval
	}
	cb := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cb = *cfg.CircuitBreaker
	}

	c := &Client{
		cfg:     cfg,
		hc:      &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		breaker: NewCircuitBreaker[*http.Response](cb), //nolint:bodyclose // type parameter
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

func (c *Client) Name() string { return c.cfg.Name }

// Do sends req under req.Context(). Transport errors and 5xx responses are
// breaker failures and are retried up to MaxRetries; a 5xx that survives the
// retries is returned as the response so the caller can classify it. 4xx
// responses pass straight through.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var last *http.Response
	attempt := func() error {
		if last != nil {
			drain(last)
			last = nil
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // returned to caller
			r, err := c.hc.Do(req.Clone(ctx))
			switch {
			case err != nil:
				return nil, err
			case r.StatusCode >= http.StatusInternalServerError:
				return r, &ServerError{StatusCode: r.StatusCode}
			default:
				return r, nil
			}
		})
		last = resp

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(ErrCircuitOpen)
		}
		return err
	}

	if err := backoff.Retry(attempt, c.policy(ctx)); err != nil {
		c.record(err)
		if last != nil {
			return last, nil
		}
		return nil, err
	}
	c.record(nil)
	return last, nil
}

func (c *Client) policy(ctx context.Context) backoff.BackOffContext {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.MaxInterval = c.cfg.MaxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxRetries), ctx)
}

func (c *Client) record(err error) {
	switch {
	case c.cfg.Registry == nil:
	case err == nil:
		c.cfg.Registry.RecordSuccess(c.cfg.Name)
	default:
		c.cfg.Registry.RecordFailure(c.cfg.Name, err)
	}
}

// CircuitBreakerState reports the breaker's current state.
func (c *Client) CircuitBreakerState() gobreaker.State { return c.breaker.State() }

// CircuitBreakerCounts reports the breaker's counters for the current window.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts { return c.breaker.Counts() }

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// ServerError marks a 5xx upstream response.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "server error: " + http.StatusText(e.StatusCode)
}
