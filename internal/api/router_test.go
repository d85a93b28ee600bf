package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch/internal/api"
	"github.com/heliowatch/heliowatch/internal/api/middleware"
	"github.com/heliowatch/heliowatch/internal/api/models"
	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/impact"
	"github.com/heliowatch/heliowatch/internal/provider/resilience"
	"github.com/heliowatch/heliowatch/internal/report"
)

// failingReports is a ReportService whose report call always fails.
type failingReports struct {
	err error
}

func (f failingReports) GetUnifiedReport(context.Context, environment.Coordinates) (*report.UnifiedReport, error) {
	return nil, f.err
}

func (f failingReports) Rules() impact.RuleSet { return impact.DefaultRuleSet() }

func syntheticReports() *report.Service {
	return report.NewService(report.ServiceConfig{
		Selector: environment.NewOrchestrator(environment.OrchestratorConfig{Logger: zerolog.Nop()}),
		Cache:    report.NewMemoryCache(report.MemoryCacheConfig{}),
		Logger:   zerolog.Nop(),
	})
}

func newTestRouter(mutate ...func(*api.RouterConfig)) http.Handler {
	cfg := api.RouterConfig{
		Version:   "test",
		BuildTime: "2026-01-01T00:00:00Z",
		Logger:    zerolog.New(io.Discard),
		Reports:   syntheticReports(),
		Registry:  resilience.NewRegistry(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	return api.NewRouter(cfg)
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRouter_HealthCheck(t *testing.T) {
	w := get(t, newTestRouter(), "/v1/ops/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var health models.Health
	require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "test", health.Details["version"])
}

func TestRouter_ReadinessCheck(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		w := get(t, newTestRouter(), "/v1/ops/ready")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("cache unreachable", func(t *testing.T) {
		router := newTestRouter(func(c *api.RouterConfig) {
			c.Ready = func(context.Context) error { return errors.New("redis: connection refused") }
		})

		w := get(t, router, "/v1/ops/ready")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var health models.Health
		require.NoError(t, json.NewDecoder(w.Body).Decode(&health))
		assert.Equal(t, models.HealthStatusFail, health.Status)
		assert.Equal(t, "redis: connection refused", health.Details["error"])
	})
}

func TestRouter_SystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	resilience.NewClient(resilience.ClientConfig{Name: "openweathermap", Registry: registry})

	tripped := resilience.DefaultCircuitBreakerConfig("weatherapi")
	tripped.ReadyToTrip = func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 1 }
	broken := resilience.NewClient(resilience.ClientConfig{Name: "weatherapi", Registry: registry, CircuitBreaker: &tripped})

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer upstream.Close()

	req, err := http.NewRequest(http.MethodGet, upstream.URL, http.NoBody)
	require.NoError(t, err)
	resp, err := broken.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	router := newTestRouter(func(c *api.RouterConfig) {
		c.Registry = registry
		c.CacheBackend = "memory"
	})

	w := get(t, router, "/v1/ops/status")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.SystemStatus
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))

	assert.Equal(t, models.HealthStatusDegraded, status.Status)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "report-cache", status.Subsystems[0].Name)
	require.NotNil(t, status.Subsystems[0].Detail)
	assert.Equal(t, "backend: memory", *status.Subsystems[0].Detail)

	require.Len(t, status.Providers, 2)
	assert.Equal(t, "openweathermap", status.Providers[0].Provider)
	assert.Equal(t, models.HealthStatusOK, status.Providers[0].Status)
	assert.Equal(t, "weatherapi", status.Providers[1].Provider)
	assert.Equal(t, models.HealthStatusFail, status.Providers[1].Status)
	assert.Equal(t, "open", status.Providers[1].CircuitState)
}

func TestRouter_EnvironmentReport(t *testing.T) {
	w := get(t, newTestRouter(), "/v1/environment/report?lat=35.0117&lon=-117.5591")
	require.Equal(t, http.StatusOK, w.Code)

	var rep models.EnvironmentReport
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rep))

	assert.Equal(t, 35.0117, rep.Coordinates.Lat)
	assert.Equal(t, "synthetic", rep.Provenance.Source)
	assert.True(t, rep.Provenance.Synthetic)
	assert.Len(t, rep.Impacts, 3)
	assert.NotEmpty(t, rep.Aggregate.Level)
	assert.Len(t, rep.Forecast, report.DefaultForecastHours)
	assert.InDelta(t, time.Now().Unix(), rep.Reading.CapturedAt, 5)
}

func TestRouter_EnvironmentReport_EquatorIsValid(t *testing.T) {
	w := get(t, newTestRouter(), "/v1/environment/report?lat=0&lon=0")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_EnvironmentReport_BadQuery(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantType  string
		wantField string
	}{
		{"missing lat", "?lon=10", models.ProblemTypeValidation, "lat"},
		{"missing both", "", models.ProblemTypeValidation, "lat"},
		{"unparseable lon", "?lat=10&lon=east", models.ProblemTypeValidation, "lon"},
		{"lat above range", "?lat=91&lon=10", models.ProblemTypeInvalidCoordinates, "lat"},
		{"lon below range", "?lat=10&lon=-180.5", models.ProblemTypeInvalidCoordinates, "lon"},
		{"nan", "?lat=NaN&lon=10", models.ProblemTypeInvalidCoordinates, "lat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, newTestRouter(), "/v1/environment/report"+tt.query)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

			var problem models.Problem
			require.NoError(t, json.NewDecoder(w.Body).Decode(&problem))
			assert.Equal(t, tt.wantType, problem.Type)
			assert.Equal(t, "/v1/environment/report", problem.Instance)
			assert.NotEmpty(t, problem.TraceID)
			require.NotEmpty(t, problem.Errors)
			assert.Equal(t, tt.wantField, problem.Errors[0].Field)
		})
	}
}

func TestRouter_EnvironmentReport_ServiceErrors(t *testing.T) {
	t.Run("invalid coordinates", func(t *testing.T) {
		router := newTestRouter(func(c *api.RouterConfig) {
			c.Reports = failingReports{err: fmt.Errorf("report: %w", environment.ErrInvalidCoordinates)}
		})

		w := get(t, router, "/v1/environment/report?lat=1&lon=1")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), models.ProblemTypeInvalidCoordinates)
	})

	t.Run("unexpected", func(t *testing.T) {
		router := newTestRouter(func(c *api.RouterConfig) {
			c.Reports = failingReports{err: errors.New("boom")}
		})

		w := get(t, router, "/v1/environment/report?lat=1&lon=1")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "boom")
	})
}

func TestRouter_EnvironmentReport_RateLimited(t *testing.T) {
	router := newTestRouter(func(c *api.RouterConfig) {
		c.ReportRateLimit = middleware.RateLimitConfig{RequestLimit: 2, WindowLength: time.Minute}
	})

	for i := 0; i < 2; i++ {
		w := get(t, router, "/v1/environment/report?lat=10&lon=10")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := get(t, router, "/v1/environment/report?lat=10&lon=10")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// Other routes have their own budget.
	assert.Equal(t, http.StatusOK, get(t, router, "/v1/environment/rules").Code)
}

func TestRouter_EnvironmentRules(t *testing.T) {
	w := get(t, newTestRouter(), "/v1/environment/rules")
	require.Equal(t, http.StatusOK, w.Code)

	var rules models.RulesResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&rules))
	assert.Equal(t, impact.DefaultRuleSet(), rules.Rules)
	assert.Len(t, rules.Subsystems, 3)
}

func TestRouter_SecurityHeaders(t *testing.T) {
	w := get(t, newTestRouter(), "/v1/ops/health")

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRouter_RequireTLS(t *testing.T) {
	router := newTestRouter(func(c *api.RouterConfig) { c.RequireTLS = true })

	req := httptest.NewRequest(http.MethodGet, "/v1/environment/rules", http.NoBody)
	req.Header.Set("X-Forwarded-Proto", "http")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), models.ProblemTypeTLSRequired)
}

func TestRouter_RequestID_Generated(t *testing.T) {
	w := get(t, newTestRouter(), "/v1/ops/health")

	requestID := w.Header().Get("X-Request-Id")
	assert.NotEmpty(t, requestID)
	assert.Contains(t, requestID, "req_")
}

func TestRouter_RequestID_Preserved(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "custom_request_id")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, "custom_request_id", w.Header().Get("X-Request-Id"))
}

func TestRouter_NotFound(t *testing.T) {
	w := get(t, newTestRouter(), "/v1/nonexistent")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), models.ProblemTypeNotFound)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodPost, "/v1/environment/report", http.NoBody)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), models.ProblemTypeMethodNotAllowed)
}
