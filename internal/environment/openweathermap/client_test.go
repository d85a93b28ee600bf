package openweathermap_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/environment/openweathermap"
	"github.com/heliowatch/heliowatch/internal/provider/resilience"
)

var phoenix = environment.Coordinates{Lat: 33.4484, Lon: -112.074}

func newClient(baseURL string) *openweathermap.Client {
	return openweathermap.NewClient(openweathermap.ClientConfig{
		APIKey:     "test-key",
		BaseURL:    baseURL,
		HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("test")),
		Logger:     zerolog.Nop(),
	})
}

func TestClient_CurrentConditions(t *testing.T) {
	observedAt := time.Date(2026, 7, 1, 18, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "33.448400", r.URL.Query().Get("lat"))
		assert.Equal(t, "-112.074000", r.URL.Query().Get("lon"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))

		response := map[string]interface{}{
			"weather": []map[string]interface{}{
				{"id": 500, "main": "Rain", "description": "light rain", "icon": "10d"},
			},
			"main": map[string]float64{
				"temp":     31.2,
				"pressure": 1008.0,
				"humidity": 18.0,
			},
			"visibility": 9000,
			"wind":       map[string]float64{"speed": 6.1, "deg": 250.0},
			"clouds":     map[string]float64{"all": 40.0},
			"rain":       map[string]float64{"1h": 0.4},
			"snow":       map[string]float64{"1h": 0.1},
			"dt":         observedAt.Unix(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	reading, err := newClient(server.URL).CurrentConditions(context.Background(), phoenix)
	require.NoError(t, err)

	assert.Equal(t, 31.2, reading.TemperatureC)
	assert.Equal(t, 18.0, reading.HumidityPct)
	assert.Equal(t, 1008.0, reading.PressureHPa)
	assert.Equal(t, 6.1, reading.WindSpeedMS)
	assert.Equal(t, 250.0, reading.WindDirectionDeg)
	assert.InDelta(t, 0.5, reading.PrecipitationMMH, 1e-9)
	assert.Equal(t, 0.0, reading.UVIndex)
	assert.Equal(t, 9000.0, reading.VisibilityM)
	assert.Equal(t, 40.0, reading.CloudCoverPct)
	assert.Equal(t, observedAt, reading.CapturedAt)
	assert.Equal(t, "light rain", reading.Condition)
	assert.Equal(t, "10d", reading.Icon)
}

func TestClient_CurrentConditions_OptionalFieldsDefaultToZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"main":{"temp":12.0,"pressure":1020,"humidity":80},"dt":1751392800}`))
	}))
	defer server.Close()

	reading, err := newClient(server.URL).CurrentConditions(context.Background(), phoenix)
	require.NoError(t, err)

	assert.Equal(t, 12.0, reading.TemperatureC)
	assert.Equal(t, 0.0, reading.PrecipitationMMH)
	assert.Equal(t, 0.0, reading.WindDirectionDeg)
	assert.Empty(t, reading.Condition)
}

func TestClient_CurrentConditions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: environment.ErrUpstreamStatus,
		},
		{
			name: "unauthorized",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			wantErr: environment.ErrUpstreamStatus,
		},
		{
			name: "invalid json",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("not json"))
			},
			wantErr: environment.ErrMalformedPayload,
		},
		{
			name: "missing main block",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"weather":[],"dt":1751392800}`))
			},
			wantErr: environment.ErrMalformedPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			_, err := newClient(server.URL).CurrentConditions(context.Background(), phoenix)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_CurrentConditions_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newClient(url).CurrentConditions(context.Background(), phoenix)
	assert.ErrorIs(t, err, environment.ErrTransport)
}

func TestClient_CurrentConditions_MissingAPIKey(t *testing.T) {
	client := openweathermap.NewClient(openweathermap.ClientConfig{Logger: zerolog.Nop()})

	_, err := client.CurrentConditions(context.Background(), phoenix)
	assert.ErrorIs(t, err, environment.ErrProviderNotConfigured)
}

func TestClient_Name(t *testing.T) {
	assert.Equal(t, openweathermap.ProviderName, newClient("").Name())
}
