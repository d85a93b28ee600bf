package config_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch/internal/config"
	"github.com/heliowatch/heliowatch/internal/impact"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.False(t, cfg.Server.RequireTLS)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, 1.0, cfg.Telemetry.SampleRatio)

	assert.False(t, cfg.Providers.OWMAPIKey.IsSet())
	assert.Equal(t, 3*time.Second, cfg.Providers.OWMTimeout)
	assert.Equal(t, 3*time.Second, cfg.Providers.WeatherAPITimeout)
	assert.Equal(t, uint64(0), cfg.Providers.MaxRetries)
	assert.Equal(t, 60*time.Second, cfg.Providers.BreakerTimeout)

	assert.Equal(t, 30*time.Minute, cfg.Pipeline.StalenessThreshold)
	assert.Equal(t, 8*time.Second, cfg.Pipeline.Deadline)
	assert.Equal(t, 6, cfg.Pipeline.ForecastHours)

	assert.Equal(t, config.CacheBackendMemory, cfg.Cache.Backend)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, 0.01, cfg.Cache.GridSize)

	assert.Equal(t, impact.DefaultRuleSet(), cfg.Rules.RuleSet())

	assert.Equal(t, config.DefaultSites, cfg.Worker.Sites)
	assert.Equal(t, 15*time.Minute, cfg.Worker.Interval)
	assert.Equal(t, 3, cfg.Worker.Concurrency)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("OWM_API_KEY", "owm-secret")
	t.Setenv("PROVIDER_MAX_RETRIES", "2")
	t.Setenv("STALENESS_THRESHOLD", "10m")
	t.Setenv("CACHE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RULE_FLIGHT_MAX_WIND_MS", "9.5")
	t.Setenv("RULE_GRID_MAX_CLOUD_PCT", "70")
	t.Setenv("WORKER_SITES", "alpha@10,20")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "owm-secret", cfg.Providers.OWMAPIKey.Unmask())
	assert.Equal(t, uint64(2), cfg.Providers.MaxRetries)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.StalenessThreshold)
	assert.Equal(t, config.CacheBackendRedis, cfg.Cache.Backend)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)

	rules := cfg.Rules.RuleSet()
	assert.Equal(t, 9.5, rules.Flight.MaxWindMS)
	assert.Equal(t, 70.0, rules.Dispatch.MaxCloudCoverPct)
	assert.Equal(t, "alpha@10,20", cfg.Worker.Sites)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		wantType config.ConfigErrorType
	}{
		{"unparseable duration", map[string]string{"PIPELINE_DEADLINE": "soon"}, config.ErrParsing},
		{"unparseable bool", map[string]string{"REQUIRE_TLS": "maybe"}, config.ErrParsing},
		{"unknown environment", map[string]string{"APP_ENV": "qa"}, config.ErrValidation},
		{"unknown cache backend", map[string]string{"CACHE_BACKEND": "memcached"}, config.ErrValidation},
		{"redis without address", map[string]string{"CACHE_BACKEND": "redis"}, config.ErrValidation},
		{"too many retries", map[string]string{"PROVIDER_MAX_RETRIES": "9"}, config.ErrValidation},
		{"sample ratio above one", map[string]string{"OTEL_SAMPLE_RATIO": "1.5"}, config.ErrValidation},
		{"inverted robot temperatures", map[string]string{"RULE_ROBOT_MIN_TEMP_C": "35"}, config.ErrValidation},
		{"cloud limit above 100", map[string]string{"RULE_GRID_MAX_CLOUD_PCT": "120"}, config.ErrValidation},
		{"topic missing for project", map[string]string{"PUBSUB_PROJECT_ID": "helio"}, config.ErrValidation},
		{"bad site list", map[string]string{"WORKER_SITES": "alpha@95,0"}, config.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := config.Load()
			require.Error(t, err)
			assert.Nil(t, cfg)

			var cfgErr *config.ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.wantType, cfgErr.Type)
			assert.Contains(t, err.Error(), string(tt.wantType))
		})
	}
}

func TestParseSites(t *testing.T) {
	sites, err := config.ParseSites(" alpha@35.5,-117.25 ; ;beta@-10,20 ")
	require.NoError(t, err)
	require.Len(t, sites, 2)

	assert.Equal(t, "alpha", sites[0].Name)
	assert.Equal(t, 35.5, sites[0].Coordinates.Lat)
	assert.Equal(t, -117.25, sites[0].Coordinates.Lon)
	assert.Equal(t, "beta", sites[1].Name)

	empty, err := config.ParseSites("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	defaults, err := config.ParseSites(config.DefaultSites)
	require.NoError(t, err)
	assert.Len(t, defaults, 3)
}

func TestParseSites_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"missing at", "alpha", "expected name@lat,lon"},
		{"missing name", "@1,2", "expected name@lat,lon"},
		{"missing comma", "alpha@12", "expected lat,lon"},
		{"bad latitude", "alpha@north,2", "latitude"},
		{"bad longitude", "alpha@1,east", "longitude"},
		{"out of range", "alpha@1,190", "alpha"},
		{"duplicate", "alpha@1,2;alpha@3,4", "duplicate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.ParseSites(tt.in)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestSecretString(t *testing.T) {
	s := config.SecretString("api-key-123")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%v", s))
	assert.Equal(t, "api-key-123", s.Unmask())

	b, err := json.Marshal(struct {
		Key config.SecretString `json:"key"`
	}{Key: s})
	require.NoError(t, err)
	assert.JSONEq(t, `{"key":"[REDACTED]"}`, string(b))

	assert.Equal(t, "", config.SecretString("").String())
	assert.False(t, config.SecretString("").IsSet())
}

func TestConfigError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &config.ConfigError{Type: config.ErrParsing, Message: "failed", Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "[PARSING_FAILED] failed: boom", err.Error())

	bare := &config.ConfigError{Type: config.ErrValidation, Message: "bad"}
	assert.Equal(t, "[VALIDATION_FAILED] bad", bare.Error())
}
