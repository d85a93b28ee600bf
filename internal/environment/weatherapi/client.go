// Package weatherapi adapts the WeatherAPI.com current-conditions API to the
// canonical environment.Reading.
package weatherapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/provider/resilience"
)

const (
	// ProviderName identifies this weather provider.
	ProviderName = "weatherapi"

	// DefaultBaseURL is the WeatherAPI.com base URL.
	DefaultBaseURL = "https://api.weatherapi.com/v1"

	kphPerMS = 3.6
)

// ClientConfig holds configuration for the WeatherAPI.com client.
type ClientConfig struct {
	// APIKey is the WeatherAPI.com key (required).
	APIKey string

	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, uses a resilient client
	// with defaults.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is a WeatherAPI.com client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new WeatherAPI.com client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// CurrentConditions fetches current conditions for a location.
func (c *Client) CurrentConditions(ctx context.Context, coords environment.Coordinates) (environment.Reading, error) {
	if c.apiKey == "" {
		return environment.Reading{}, environment.ErrProviderNotConfigured
	}

	values := url.Values{}
	values.Set("key", c.apiKey)
	values.Set("q", fmt.Sprintf("%.6f,%.6f", coords.Lat, coords.Lon))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/current.json?"+values.Encode(), http.NoBody)
	if err != nil {
		return environment.Reading{}, fmt.Errorf("%w: creating request: %v", environment.ErrTransport, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return environment.Reading{}, fmt.Errorf("%w: %s: %v", environment.ErrTransport, ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return environment.Reading{}, fmt.Errorf("%w: %s returned %d", environment.ErrUpstreamStatus, ProviderName, resp.StatusCode)
	}

	var payload currentResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return environment.Reading{}, fmt.Errorf("%w: decoding %s response: %v", environment.ErrMalformedPayload, ProviderName, err)
	}
	if payload.Current == nil {
		return environment.Reading{}, fmt.Errorf("%w: %s response has no current block", environment.ErrMalformedPayload, ProviderName)
	}

	reading := payload.toReading()

	c.logger.Debug().
		Float64("lat", coords.Lat).
		Float64("lon", coords.Lon).
		Float64("temperature", reading.TemperatureC).
		Msg("fetched weatherapi conditions")

	return reading, nil
}

func (p *currentResponse) toReading() environment.Reading {
	cur := p.Current

	capturedAt := time.Unix(cur.LastUpdatedEpoch, 0).UTC()
	if cur.LastUpdatedEpoch == 0 {
		capturedAt = time.Now().UTC()
	}

	return environment.Reading{
		TemperatureC:     cur.TempC,
		HumidityPct:      cur.Humidity,
		PressureHPa:      cur.PressureMb,
		WindSpeedMS:      cur.WindKph / kphPerMS,
		WindDirectionDeg: cur.WindDegree,
		PrecipitationMMH: cur.PrecipMm,
		UVIndex:          cur.UV,
		VisibilityM:      cur.VisKm * 1000,
		CloudCoverPct:    cur.Cloud,
		CapturedAt:       capturedAt,
		Condition:        cur.Condition.Text,
		Icon:             cur.Condition.Icon,
	}
}

type currentResponse struct {
	Current *struct {
		LastUpdatedEpoch int64   `json:"last_updated_epoch"`
		TempC            float64 `json:"temp_c"`
		Humidity         float64 `json:"humidity"`
		PressureMb       float64 `json:"pressure_mb"`
		WindKph          float64 `json:"wind_kph"`
		WindDegree       float64 `json:"wind_degree"`
		PrecipMm         float64 `json:"precip_mm"`
		UV               float64 `json:"uv"`
		VisKm            float64 `json:"vis_km"`
		Cloud            float64 `json:"cloud"`
		Condition        struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
	} `json:"current"`
}
