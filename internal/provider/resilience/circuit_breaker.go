// Package resilience guards upstream provider calls with timeouts, a circuit
// breaker and optional bounded retries.
package resilience

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Breaker defaults for weather providers.
const (
	defaultBreakerOpenFor     = 60 * time.Second
	defaultBreakerMinRequests = 5
	defaultBreakerFailRatio   = 0.5
)

// CircuitBreakerConfig configures the breaker in front of one provider.
type CircuitBreakerConfig struct {
	Name string

	// MaxRequests is how many probes pass while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts periodically. Zero never clears.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// ReadyToTrip decides when to open. Nil means DefaultReadyToTrip.
	ReadyToTrip func(counts gobreaker.Counts) bool

	OnStateChange func(name string, from gobreaker.State, to gobreaker.State)
}

// DefaultCircuitBreakerConfig opens after a majority of at least five calls
// fail and probes again a minute later.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:        name,
		MaxRequests: 1,
		Timeout:     defaultBreakerOpenFor,
		ReadyToTrip: DefaultReadyToTrip,
	}
}

// DefaultReadyToTrip requires five requests and a failure ratio of at least
// one half.
func DefaultReadyToTrip(counts gobreaker.Counts) bool {
	if counts.Requests < defaultBreakerMinRequests {
		return false
	}
	return float64(counts.TotalFailures)/float64(counts.Requests) >= defaultBreakerFailRatio
}

// LogStateChange logs breaker transitions, at warn when a provider is cut off.
func LogStateChange(logger zerolog.Logger) func(name string, from, to gobreaker.State) {
	return func(name string, from, to gobreaker.State) {
		level := zerolog.InfoLevel
		if to == gobreaker.StateOpen {
			level = zerolog.WarnLevel
		}
		logger.WithLevel(level).
			Str("provider", name).
			Stringer("from", from).
			Stringer("to", to).
			Msg("circuit breaker state changed")
	}
}

// NewCircuitBreaker builds a gobreaker breaker from cfg.
func NewCircuitBreaker[T any](cfg CircuitBreakerConfig) *gobreaker.CircuitBreaker[T] {
	trip := cfg.ReadyToTrip
	if trip == nil {
		trip = DefaultReadyToTrip
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:          cfg.Name,
		MaxRequests:   cfg.MaxRequests,
		Interval:      cfg.Interval,
		Timeout:       cfg.Timeout,
		ReadyToTrip:   trip,
		OnStateChange: cfg.OnStateChange,
	})
}
