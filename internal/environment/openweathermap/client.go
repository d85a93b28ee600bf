// Package openweathermap adapts the OpenWeatherMap current-weather API to the
// canonical environment.Reading.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/provider/resilience"
)

const (
	ProviderName   = "openweathermap"
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5"
)

// ClientConfig configures the adapter. Without an APIKey every call fails
// with environment.ErrProviderNotConfigured.
type ClientConfig struct {
	APIKey  string
	BaseURL string

	// HTTPClient defaults to a resilient client named after the provider.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client queries /weather in metric units.
type Client struct {
	cfg  ClientConfig
	doer *resilience.Client
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = resilience.NewClient(resilience.DefaultClientConfig(ProviderName))
	}
	return &Client{cfg: cfg, doer: hc}
}

func (c *Client) Name() string { return ProviderName }

// CurrentConditions makes exactly one upstream call.
func (c *Client) CurrentConditions(ctx context.Context, coords environment.Coordinates) (environment.Reading, error) {
	if c.cfg.APIKey == "" {
		return environment.Reading{}, environment.ErrProviderNotConfigured
	}

	body, err := c.fetch(ctx, coords)
	if err != nil {
		return environment.Reading{}, err
	}

	reading := body.toReading(time.Now())
	c.cfg.Logger.Debug().
		Float64("lat", coords.Lat).
		Float64("lon", coords.Lon).
		Float64("temperature", reading.TemperatureC).
		Time("captured_at", reading.CapturedAt).
		Msg("fetched openweathermap conditions")
	return reading, nil
}

func (c *Client) fetch(ctx context.Context, coords environment.Coordinates) (*currentWeatherResponse, error) {
	endpoint := c.cfg.BaseURL + "/weather?" + url.Values{
		"lat":   {strconv.FormatFloat(coords.Lat, 'f', 6, 64)},
		"lon":   {strconv.FormatFloat(coords.Lon, 'f', 6, 64)},
		"appid": {c.cfg.APIKey},
		"units": {"metric"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: building %s request: %v", environment.ErrTransport, ProviderName, err)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", environment.ErrTransport, ProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", environment.ErrUpstreamStatus, ProviderName, resp.StatusCode)
	}

	var out currentWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decoding %s response: %v", environment.ErrMalformedPayload, ProviderName, err)
	}
	if out.Main == nil {
		return nil, fmt.Errorf("%w: %s response has no main block", environment.ErrMalformedPayload, ProviderName)
	}
	return &out, nil
}

type precipitation struct {
	OneHour float64 `json:"1h"`
}

type condition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type currentWeatherResponse struct {
	Weather []condition `json:"weather"`
	Main    *struct {
		Temp     float64 `json:"temp"`
		Pressure float64 `json:"pressure"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Clouds struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Rain precipitation `json:"rain"`
	Snow precipitation `json:"snow"`
	Dt   int64         `json:"dt"`
}

// toReading maps the payload onto a Reading. The endpoint carries no UV
// index; a missing dt is stamped with now.
func (p *currentWeatherResponse) toReading(now time.Time) environment.Reading {
	r := environment.Reading{
		TemperatureC:     p.Main.Temp,
		HumidityPct:      p.Main.Humidity,
		PressureHPa:      p.Main.Pressure,
		WindSpeedMS:      p.Wind.Speed,
		WindDirectionDeg: p.Wind.Deg,
		PrecipitationMMH: p.Rain.OneHour + p.Snow.OneHour,
		VisibilityM:      float64(p.Visibility),
		CloudCoverPct:    p.Clouds.All,
		CapturedAt:       now.UTC(),
	}
	if p.Dt != 0 {
		r.CapturedAt = time.Unix(p.Dt, 0).UTC()
	}
	if len(p.Weather) > 0 {
		r.Condition = p.Weather[0].Description
		r.Icon = p.Weather[0].Icon
	}
	return r
}
