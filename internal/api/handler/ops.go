// Package handler provides HTTP handlers for the HelioWatch API.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/heliowatch/heliowatch/internal/api/models"
	"github.com/heliowatch/heliowatch/internal/api/response"
	"github.com/heliowatch/heliowatch/internal/provider/resilience"
)

const readinessTimeout = 2 * time.Second

// OpsConfig holds the dependencies of the operational endpoints.
type OpsConfig struct {
	Version   string
	BuildTime string

	// Registry reports upstream provider circuit health. Optional.
	Registry *resilience.Registry

	// Ready checks shared dependencies such as the report cache. Optional.
	Ready func(ctx context.Context) error

	// CacheBackend names the active report cache for the status page.
	CacheBackend string
}

// OpsHandler handles operational endpoints.
type OpsHandler struct {
	cfg OpsConfig
}

// NewOpsHandler creates a new OpsHandler.
func NewOpsHandler(cfg OpsConfig) *OpsHandler {
	return &OpsHandler{cfg: cfg}
}

// HealthCheck handles GET /v1/ops/health - liveness check.
func (h *OpsHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
		Details: map[string]interface{}{
			"version":   h.cfg.Version,
			"buildTime": h.cfg.BuildTime,
		},
	})
}

// ReadinessCheck handles GET /v1/ops/ready. Upstream weather providers are not
// checked: the pipeline always answers through the synthetic fallback.
func (h *OpsHandler) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.checkReady(r.Context()); err != nil {
		response.JSON(w, r, http.StatusServiceUnavailable, models.Health{
			Status:  models.HealthStatusFail,
			Time:    models.Timestamp(time.Now()),
			Details: map[string]interface{}{"error": err.Error()},
		})
		return
	}

	response.JSON(w, r, http.StatusOK, models.Health{
		Status: models.HealthStatusOK,
		Time:   models.Timestamp(time.Now()),
	})
}

// SystemStatus handles GET /v1/ops/status - cache and provider status.
// Provider outages degrade the overall status but never fail it.
func (h *OpsHandler) SystemStatus(w http.ResponseWriter, r *http.Request) {
	overall := models.HealthStatusOK

	cache := models.SubsystemStatus{Name: "report-cache", Status: models.HealthStatusOK}
	if h.cfg.CacheBackend != "" {
		detail := "backend: " + h.cfg.CacheBackend
		cache.Detail = &detail
	}
	if err := h.checkReady(r.Context()); err != nil {
		detail := err.Error()
		cache.Status = models.HealthStatusFail
		cache.Detail = &detail
		overall = models.HealthStatusDegraded
	}

	providers := []models.ProviderStatus{}
	if h.cfg.Registry != nil {
		for _, ph := range h.cfg.Registry.GetAllHealth() {
			ps := providerStatus(ph)
			if ps.Status != models.HealthStatusOK {
				overall = models.HealthStatusDegraded
			}
			providers = append(providers, ps)
		}
	}

	response.JSON(w, r, http.StatusOK, models.SystemStatus{
		Status:     overall,
		Time:       models.Timestamp(time.Now()),
		Subsystems: []models.SubsystemStatus{cache},
		Providers:  providers,
	})
}

func (h *OpsHandler) checkReady(ctx context.Context) error {
	if h.cfg.Ready == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	return h.cfg.Ready(ctx)
}

func providerStatus(ph *resilience.ProviderHealth) models.ProviderStatus {
	ps := models.ProviderStatus{
		Provider:      ph.Name,
		CircuitState:  ph.CircuitState.String(),
		Requests:      ph.Counts.Requests,
		Failures:      ph.Counts.TotalFailures,
		LastSuccessAt: models.TimestampPtr(ph.LastSuccessAt),
		LastFailureAt: models.TimestampPtr(ph.LastFailureAt),
	}

	switch ph.Status() {
	case resilience.StatusUnhealthy:
		ps.Status = models.HealthStatusFail
	case resilience.StatusDegraded:
		ps.Status = models.HealthStatusDegraded
	default:
		ps.Status = models.HealthStatusOK
	}

	if ph.LastError != "" {
		msg := ph.LastError
		ps.Message = &msg
	}
	return ps
}
