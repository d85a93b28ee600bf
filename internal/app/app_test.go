package app_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch/internal/app"
	"github.com/heliowatch/heliowatch/internal/config"
	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/environment/openweathermap"
	"github.com/heliowatch/heliowatch/internal/environment/weatherapi"
)

func loadConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestBuild_WithoutCredentialsServesSynthetic(t *testing.T) {
	cfg := loadConfig(t, nil)

	a, err := app.Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	defer func() { _ = a.Close() }()

	assert.Equal(t, config.CacheBackendMemory, a.CacheBackend)
	assert.Equal(t, []string{openweathermap.ProviderName, weatherapi.ProviderName}, a.Registry.GetProviderNames())
	assert.NoError(t, a.Ready(context.Background()))

	rep, err := a.Reports.GetUnifiedReport(context.Background(), environment.Coordinates{Lat: 35.0117, Lon: -117.5591})
	require.NoError(t, err)
	assert.True(t, rep.Provenance.Synthetic)
	assert.Equal(t, environment.SourceSynthetic, rep.Provenance.Source)
	assert.Len(t, rep.Assessment.Impacts, 3)
	assert.Len(t, rep.Forecast, cfg.Pipeline.ForecastHours)
}

func TestBuild_CacheBackends(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		cfg := loadConfig(t, map[string]string{"CACHE_BACKEND": "none"})

		a, err := app.Build(context.Background(), cfg, zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, config.CacheBackendNone, a.CacheBackend)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := loadConfig(t, map[string]string{
			"CACHE_BACKEND": "redis",
			"REDIS_ADDR":    mr.Addr(),
		})

		a, err := app.Build(context.Background(), cfg, zerolog.Nop())
		require.NoError(t, err)
		defer func() { _ = a.Close() }()

		assert.Equal(t, config.CacheBackendRedis, a.CacheBackend)
		assert.NoError(t, a.Ready(context.Background()))

		mr.Close()
		assert.Error(t, a.Ready(context.Background()))
	})

	t.Run("unreachable redis degrades to memory", func(t *testing.T) {
		cfg := loadConfig(t, map[string]string{
			"CACHE_BACKEND": "redis",
			"REDIS_ADDR":    "127.0.0.1:1",
		})

		a, err := app.Build(context.Background(), cfg, zerolog.Nop())
		require.NoError(t, err)
		defer func() { _ = a.Close() }()

		assert.Equal(t, config.CacheBackendMemory, a.CacheBackend)
		assert.NoError(t, a.Ready(context.Background()))
	})
}

func TestBuild_UsesConfiguredRules(t *testing.T) {
	cfg := loadConfig(t, map[string]string{"RULE_FLIGHT_MAX_WIND_MS": "7"})

	a, err := app.Build(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)

	assert.Equal(t, 7.0, a.Rules.Flight.MaxWindMS)
	assert.Equal(t, 7.0, a.Reports.Rules().Flight.MaxWindMS)
}
