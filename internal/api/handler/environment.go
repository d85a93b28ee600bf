package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/heliowatch/heliowatch/internal/api/middleware"
	"github.com/heliowatch/heliowatch/internal/api/models"
	"github.com/heliowatch/heliowatch/internal/api/response"
	"github.com/heliowatch/heliowatch/internal/environment"
	"github.com/heliowatch/heliowatch/internal/impact"
	"github.com/heliowatch/heliowatch/internal/report"
)

// ReportService produces unified environment reports.
type ReportService interface {
	GetUnifiedReport(ctx context.Context, coords environment.Coordinates) (*report.UnifiedReport, error)
	Rules() impact.RuleSet
}

// EnvironmentHandler serves the unified report and the active rule set.
type EnvironmentHandler struct {
	reports  ReportService
	validate *validator.Validate
	logger   zerolog.Logger
}

// NewEnvironmentHandler creates a new EnvironmentHandler.
func NewEnvironmentHandler(reports ReportService, logger zerolog.Logger) *EnvironmentHandler {
	return &EnvironmentHandler{
		reports:  reports,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetReport handles GET /v1/environment/report?lat=&lon=.
func (h *EnvironmentHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	query, fieldErrors := parseReportQuery(r)
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "lat and lon query parameters are required decimal degrees", fieldErrors)
		return
	}

	if err := h.validate.Struct(query); err != nil {
		response.InvalidCoordinates(w, r, "coordinates are outside the valid range", validationErrors(err))
		return
	}

	rep, err := h.reports.GetUnifiedReport(r.Context(), query.Coordinates())
	if err != nil {
		if errors.Is(err, environment.ErrInvalidCoordinates) {
			response.InvalidCoordinates(w, r, err.Error(), nil)
			return
		}
		h.logger.Error().
			Err(err).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("report assembly failed")
		response.InternalError(w, r, "failed to assemble environment report")
		return
	}

	response.JSON(w, r, http.StatusOK, models.FromReport(rep))
}

// GetRules handles GET /v1/environment/rules.
func (h *EnvironmentHandler) GetRules(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.NewRulesResponse(h.reports.Rules()))
}

func parseReportQuery(r *http.Request) (models.ReportQuery, []models.FieldError) {
	var (
		query  models.ReportQuery
		errs   []models.FieldError
		params = r.URL.Query()
	)

	parse := func(name string) *float64 {
		raw := strings.TrimSpace(params.Get(name))
		if raw == "" {
			errs = append(errs, models.FieldError{Field: name, Message: "is required", Code: "required"})
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, models.FieldError{Field: name, Message: "must be a decimal number", Code: "format"})
			return nil
		}
		return &v
	}

	query.Lat = parse("lat")
	query.Lon = parse("lon")
	return query, errs
}

func validationErrors(err error) []models.FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []models.FieldError{{Field: "coordinates", Message: err.Error()}}
	}

	out := make([]models.FieldError, 0, len(ve))
	for _, fe := range ve {
		out = append(out, models.FieldError{
			Field:   strings.ToLower(fe.Field()),
			Message: fieldMessage(fe),
			Code:    fe.Tag(),
		})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return "is invalid"
	}
}
