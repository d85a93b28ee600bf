// Package response writes JSON and problem+json bodies for API handlers.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/heliowatch/heliowatch/internal/api/middleware"
	"github.com/heliowatch/heliowatch/internal/api/models"
)

// JSON encodes data with the given status. A nil data writes headers only.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if id := requestID(r); id != "" {
		w.Header().Set(middleware.RequestIDHeader, id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// Error writes problem, stamping the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(requestID(r), detail, errors))
}

// InvalidCoordinates reports a lat/lon that parsed but lies off the globe.
func InvalidCoordinates(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewInvalidCoordinates(requestID(r), detail, errors))
}

func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewNotFound(requestID(r), detail))
}

func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	Error(w, r, models.NewMethodNotAllowed(requestID(r), r.Method+" is not supported on this resource"))
}

func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(requestID(r), detail))
}

func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(requestID(r), detail))
}

func requestID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}
