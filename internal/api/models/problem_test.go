package models_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/heliowatch/heliowatch/internal/api/models"
)

func TestProblemConstructors(t *testing.T) {
	tests := []struct {
		name     string
		problem  *models.Problem
		wantType string
		title    string
		status   int
	}{
		{"bad request", models.NewBadRequest("req_1", "d", nil), models.ProblemTypeValidation, "Validation error", http.StatusBadRequest},
		{"invalid coordinates", models.NewInvalidCoordinates("req_1", "d", nil), models.ProblemTypeInvalidCoordinates, "Invalid coordinates", http.StatusBadRequest},
		{"not found", models.NewNotFound("req_1", "d"), models.ProblemTypeNotFound, "Not found", http.StatusNotFound},
		{"method not allowed", models.NewMethodNotAllowed("req_1", "d"), models.ProblemTypeMethodNotAllowed, "Method not allowed", http.StatusMethodNotAllowed},
		{"too many requests", models.NewTooManyRequests("req_1", "d"), models.ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests},
		{"tls required", models.NewTLSRequired("req_1", "d"), models.ProblemTypeTLSRequired, "TLS required", http.StatusForbidden},
		{"internal", models.NewInternalError("req_1", "d"), models.ProblemTypeInternal, "Internal server error", http.StatusInternalServerError},
		{"unavailable", models.NewServiceUnavailable("req_1", "d"), models.ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.problem.Type)
			assert.Equal(t, tt.title, tt.problem.Title)
			assert.Equal(t, tt.status, tt.problem.Status)
			assert.Equal(t, "d", tt.problem.Detail)
			assert.Equal(t, "req_1", tt.problem.TraceID)
		})
	}
}

func TestNewProblem_UnknownTypeIsInternal(t *testing.T) {
	p := models.NewProblem("https://heliowatch.dev/problems/typo", "req_1", "boom")

	assert.Equal(t, models.ProblemTypeInternal, p.Type)
	assert.Equal(t, http.StatusInternalServerError, p.Status)
	assert.Equal(t, "boom", p.Detail)
}

func TestProblem_Write(t *testing.T) {
	p := models.NewInvalidCoordinates("req_9f", "lat must be within [-90, 90]", []models.FieldError{
		{Field: "lat", Message: "must be between -90 and 90", Code: "OUT_OF_RANGE"},
	})
	p.Instance = "/v1/environment/report"

	rec := httptest.NewRecorder()
	p.Write(rec)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "req_9f", rec.Header().Get("X-Request-Id"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.ProblemTypeInvalidCoordinates, body["type"])
	assert.Equal(t, "/v1/environment/report", body["instance"])
	assert.Equal(t, "req_9f", body["traceId"])
	require.Len(t, body["errors"], 1)
	assert.Equal(t, "OUT_OF_RANGE", body["errors"].([]interface{})[0].(map[string]interface{})["code"])
}

func TestProblem_WriteOmitsEmptyOptionals(t *testing.T) {
	rec := httptest.NewRecorder()
	models.NewInternalError("", "").Write(rec)

	assert.Empty(t, rec.Header().Get("X-Request-Id"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "detail")
	assert.NotContains(t, body, "instance")
	assert.NotContains(t, body, "errors")
	assert.Contains(t, body, "traceId")
}
