// Package app wires the environment pipeline from configuration. The API
// server, the site monitor and the CLI all build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/heliowatch/heliowatch/internal/config"
	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/environment/openweathermap"
	"github.com/heliowatch/heliowatch/internal/environment/weatherapi"
	"github.com/heliowatch/heliowatch/internal/impact"
	"github.com/heliowatch/heliowatch/internal/provider/resilience"
	"github.com/heliowatch/heliowatch/internal/report"
	"github.com/heliowatch/heliowatch/internal/telemetry"
)

const redisPingTimeout = 2 * time.Second

// App holds the long-lived pipeline components.
type App struct {
	Registry     *resilience.Registry
	Orchestrator *environment.Orchestrator
	Reports      *report.Service
	Rules        impact.RuleSet
	Metrics      *telemetry.PipelineMetrics
	CacheBackend string

	redis *redis.Client
}

// Build constructs the pipeline. A configured Redis cache that cannot be
// reached degrades to the in-memory cache rather than failing startup.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	rules := cfg.Rules.RuleSet()
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	metrics, err := telemetry.NewPipelineMetrics(otel.Meter(telemetry.PipelineMeterName))
	if err != nil {
		return nil, fmt.Errorf("creating pipeline metrics: %w", err)
	}

	registry := resilience.NewRegistry()
	a := &App{
		Registry: registry,
		Rules:    rules,
		Metrics:  metrics,
	}

	primary := openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     cfg.Providers.OWMAPIKey.Unmask(),
		BaseURL:    cfg.Providers.OWMBaseURL,
		HTTPClient: newHTTPClient(openweathermap.ProviderName, cfg.Providers.OWMTimeout, cfg, registry, logger),
		Logger:     logger.With().Str("provider", openweathermap.ProviderName).Logger(),
	})

	secondary := weatherapi.NewClient(weatherapi.ClientConfig{
		APIKey:     cfg.Providers.WeatherAPIKey.Unmask(),
		BaseURL:    cfg.Providers.WeatherAPIBaseURL,
		HTTPClient: newHTTPClient(weatherapi.ProviderName, cfg.Providers.WeatherAPITimeout, cfg, registry, logger),
		Logger:     logger.With().Str("provider", weatherapi.ProviderName).Logger(),
	})

	if !cfg.Providers.OWMAPIKey.IsSet() {
		logger.Warn().Msg("OWM_API_KEY not set, primary provider disabled")
	}
	if !cfg.Providers.WeatherAPIKey.IsSet() {
		logger.Warn().Msg("WEATHERAPI_API_KEY not set, secondary provider disabled")
	}

	a.Orchestrator = environment.NewOrchestrator(environment.OrchestratorConfig{
		Primary:   primary,
		Secondary: secondary,
		Recorder:  metrics,
		Logger:    logger.With().Str("component", "orchestrator").Logger(),
	})

	cache, backend := a.buildCache(ctx, cfg, logger)
	a.CacheBackend = backend

	a.Reports = report.NewService(report.ServiceConfig{
		Selector:           a.Orchestrator,
		Cache:              cache,
		Rules:              &rules,
		StalenessThreshold: cfg.Pipeline.StalenessThreshold,
		Deadline:           cfg.Pipeline.Deadline,
		ForecastHours:      cfg.Pipeline.ForecastHours,
		GridSize:           cfg.Cache.GridSize,
		Recorder:           metrics,
		Logger:             logger.With().Str("component", "report").Logger(),
	})

	return a, nil
}

func newHTTPClient(name string, timeout time.Duration, cfg *config.Config, registry *resilience.Registry, logger zerolog.Logger) *resilience.Client {
	cb := resilience.DefaultCircuitBreakerConfig(name)
	cb.Timeout = cfg.Providers.BreakerTimeout
	cb.OnStateChange = resilience.LogStateChange(logger)

	clientCfg := resilience.DefaultClientConfig(name)
	clientCfg.Timeout = timeout
	clientCfg.MaxRetries = cfg.Providers.MaxRetries
	clientCfg.CircuitBreaker = &cb
	clientCfg.Registry = registry

	return resilience.NewClient(clientCfg)
}

func (a *App) buildCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (report.Cache, string) {
	switch cfg.Cache.Backend {
	case config.CacheBackendNone:
		return report.NoopCache{}, config.CacheBackendNone

	case config.CacheBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword.Unmask(),
			DB:       cfg.Cache.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		defer cancel()

		rc := report.NewRedisCache(client, report.RedisCacheConfig{
			TTL:    cfg.Cache.TTL,
			Logger: logger.With().Str("component", "cache").Logger(),
		})
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn().Err(err).Str("addr", cfg.Cache.RedisAddr).Msg("redis unavailable, using in-memory cache")
			_ = client.Close()
			break
		}

		a.redis = client
		logger.Info().Str("addr", cfg.Cache.RedisAddr).Msg("using redis report cache")
		return rc, config.CacheBackendRedis
	}

	return report.NewMemoryCache(report.MemoryCacheConfig{
		TTL:    cfg.Cache.TTL,
		Logger: logger.With().Str("component", "cache").Logger(),
	}), config.CacheBackendMemory
}

// Ready reports whether the shared cache is reachable. The in-memory and
// disabled caches are always ready.
func (a *App) Ready(ctx context.Context) error {
	if a.redis == nil {
		return nil
	}
	if err := a.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
