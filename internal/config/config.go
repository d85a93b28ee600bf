// Package config defines the process configuration for the HelioWatch
// binaries. Configuration is read once from the environment (optionally
// seeded from a .env file) and is immutable thereafter.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/impact"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// Config is the top-level configuration shared by all binaries.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"development" validate:"oneof=development test staging production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=trace debug info warn error"`

	Server    ServerConfig
	Telemetry TelemetryConfig
	Providers ProvidersConfig
	Pipeline  PipelineConfig
	Cache     CacheConfig
	Rules     RulesConfig
	Worker    WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port       string `envconfig:"APP_PORT" default:"8080" validate:"numeric"`
	RequireTLS bool   `envconfig:"REQUIRE_TLS" default:"false"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	OTLPEndpoint string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	SampleRatio  float64 `envconfig:"OTEL_SAMPLE_RATIO" default:"1" validate:"gte=0,lte=1"`
}

// ProvidersConfig holds upstream weather API credentials and guards.
type ProvidersConfig struct {
	OWMAPIKey  SecretString  `envconfig:"OWM_API_KEY"`
	OWMBaseURL string        `envconfig:"OWM_BASE_URL" default:"https://api.openweathermap.org/data/2.5" validate:"url"`
	OWMTimeout time.Duration `envconfig:"OWM_TIMEOUT" default:"3s" validate:"gt=0"`

	WeatherAPIKey     SecretString  `envconfig:"WEATHERAPI_API_KEY"`
	WeatherAPIBaseURL string        `envconfig:"WEATHERAPI_BASE_URL" default:"https://api.weatherapi.com/v1" validate:"url"`
	WeatherAPITimeout time.Duration `envconfig:"WEATHERAPI_TIMEOUT" default:"3s" validate:"gt=0"`

	MaxRetries     uint64        `envconfig:"PROVIDER_MAX_RETRIES" default:"0" validate:"lte=5"`
	BreakerTimeout time.Duration `envconfig:"PROVIDER_BREAKER_TIMEOUT" default:"60s" validate:"gt=0"`
}

// PipelineConfig holds report pipeline settings.
type PipelineConfig struct {
	StalenessThreshold time.Duration `envconfig:"STALENESS_THRESHOLD" default:"30m" validate:"gt=0"`
	Deadline           time.Duration `envconfig:"PIPELINE_DEADLINE" default:"8s" validate:"gt=0"`
	ForecastHours      int           `envconfig:"FORECAST_HOURS" default:"6" validate:"gte=1,lte=48"`
}

// CacheConfig selects and tunes the report cache.
type CacheConfig struct {
	Backend       string        `envconfig:"CACHE_BACKEND" default:"memory" validate:"oneof=memory redis none"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"5m" validate:"gt=0"`
	GridSize      float64       `envconfig:"CACHE_GRID_SIZE" default:"0.01" validate:"gt=0,lte=1"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword SecretString  `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
}

// RulesConfig holds the classification thresholds.
type RulesConfig struct {
	FlightMaxWindMS      float64 `envconfig:"RULE_FLIGHT_MAX_WIND_MS" default:"12" validate:"gt=0"`
	FlightMaxPrecipMMH   float64 `envconfig:"RULE_FLIGHT_MAX_PRECIP_MMH" default:"0.5" validate:"gte=0"`
	FlightMinVisibilityM float64 `envconfig:"RULE_FLIGHT_MIN_VISIBILITY_M" default:"3000" validate:"gte=0"`

	RobotMaxWindMS      float64 `envconfig:"RULE_ROBOT_MAX_WIND_MS" default:"18" validate:"gt=0"`
	RobotMaxTempC       float64 `envconfig:"RULE_ROBOT_MAX_TEMP_C" default:"30"`
	RobotMinTempC       float64 `envconfig:"RULE_ROBOT_MIN_TEMP_C" default:"2" validate:"ltfield=RobotMaxTempC"`
	RobotMaxPrecipMMH   float64 `envconfig:"RULE_ROBOT_MAX_PRECIP_MMH" default:"1.0" validate:"gte=0"`
	RobotMaxHumidityPct float64 `envconfig:"RULE_ROBOT_MAX_HUMIDITY_PCT" default:"90" validate:"gte=0,lte=100"`

	GridMaxCloudPct  float64 `envconfig:"RULE_GRID_MAX_CLOUD_PCT" default:"80" validate:"gt=0,lte=100"`
	GridMaxPrecipMMH float64 `envconfig:"RULE_GRID_MAX_PRECIP_MMH" default:"7.5" validate:"gte=0"`
}

// RuleSet converts the configured thresholds to the classifier rule set.
func (r RulesConfig) RuleSet() impact.RuleSet {
	return impact.RuleSet{
		Flight: impact.FlightRules{
			MaxWindMS:           r.FlightMaxWindMS,
			MaxPrecipitationMMH: r.FlightMaxPrecipMMH,
			MinVisibilityM:      r.FlightMinVisibilityM,
		},
		Robotics: impact.RoboticsRules{
			MaxWindMS:           r.RobotMaxWindMS,
			MaxTemperatureC:     r.RobotMaxTempC,
			MinTemperatureC:     r.RobotMinTempC,
			MaxPrecipitationMMH: r.RobotMaxPrecipMMH,
			MaxHumidityPct:      r.RobotMaxHumidityPct,
		},
		Dispatch: impact.DispatchRules{
			MaxCloudCoverPct:    r.GridMaxCloudPct,
			MaxPrecipitationMMH: r.GridMaxPrecipMMH,
		},
	}
}

// DefaultSites is the demo portfolio monitored when WORKER_SITES is unset.
const DefaultSites = "mojave-array@35.0117,-117.5591;almeria-south@36.9333,-2.3500;rajasthan-bhadla@27.5397,71.9150"

// WorkerConfig holds site monitor settings.
type WorkerConfig struct {
	Sites           string        `envconfig:"WORKER_SITES" default:"mojave-array@35.0117,-117.5591;almeria-south@36.9333,-2.3500;rajasthan-bhadla@27.5397,71.9150"`
	Interval        time.Duration `envconfig:"WORKER_INTERVAL" default:"15m" validate:"gte=1m"`
	Concurrency     int           `envconfig:"WORKER_CONCURRENCY" default:"3" validate:"gte=1,lte=32"`
	PubSubProjectID string        `envconfig:"PUBSUB_PROJECT_ID"`
	PubSubTopic     string        `envconfig:"PUBSUB_TOPIC" validate:"required_with=PubSubProjectID"`

	// PubSubSubscription receives on-demand sweep requests. Optional.
	PubSubSubscription string `envconfig:"PUBSUB_SUBSCRIPTION"`
}

// Site is a monitored solar plant.
type Site struct {
	Name        string
	Coordinates environment.Coordinates
}

// ParseSites parses "name@lat,lon;name@lat,lon". Whitespace around entries is
// ignored and empty entries are skipped.
func ParseSites(list string) ([]Site, error) {
	var sites []Site
	seen := make(map[string]bool)

	for _, raw := range strings.Split(list, ";") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		name, point, ok := strings.Cut(raw, "@")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("site %q: expected name@lat,lon", raw)
		}
		if seen[name] {
			return nil, fmt.Errorf("site %q: duplicate name", name)
		}

		latStr, lonStr, ok := strings.Cut(point, ",")
		if !ok {
			return nil, fmt.Errorf("site %q: expected lat,lon", name)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
		if err != nil {
			return nil, fmt.Errorf("site %q: latitude: %w", name, err)
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
		if err != nil {
			return nil, fmt.Errorf("site %q: longitude: %w", name, err)
		}

		coords := environment.Coordinates{Lat: lat, Lon: lon}
		if err := coords.Validate(); err != nil {
			return nil, fmt.Errorf("site %q: %w", name, err)
		}

		seen[name] = true
		sites = append(sites, Site{Name: name, Coordinates: coords})
	}

	return sites, nil
}

// ConfigErrorType categorizes configuration loading failures.
type ConfigErrorType string

const (
	// ErrParsing indicates a value could not be parsed into its target type.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
)
