package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string       `json:"type"`
	Title    string       `json:"title"`
	Status   int          `json:"status"`
	Detail   string       `json:"detail,omitempty"`
	Instance string       `json:"instance,omitempty"`
	TraceID  string       `json:"traceId"`
	Errors   []FieldError `json:"errors,omitempty"`
}

// FieldError points at one offending query parameter or body field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://heliowatch.dev/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation         = problemBase + "validation-error"
	ProblemTypeInvalidCoordinates = problemBase + "invalid-coordinates"
	ProblemTypeNotFound           = problemBase + "not-found"
	ProblemTypeMethodNotAllowed   = problemBase + "method-not-allowed"
	ProblemTypeTooManyRequests    = problemBase + "too-many-requests"
	ProblemTypeTLSRequired        = problemBase + "tls-required"
	ProblemTypeInternal           = problemBase + "internal-error"
	ProblemTypeUnavailable        = problemBase + "service-unavailable"
)

var problemCatalog = map[string]struct {
	title  string
	status int
}{
	ProblemTypeValidation:         {"Validation error", http.StatusBadRequest},
	ProblemTypeInvalidCoordinates: {"Invalid coordinates", http.StatusBadRequest},
	ProblemTypeNotFound:           {"Not found", http.StatusNotFound},
	ProblemTypeMethodNotAllowed:   {"Method not allowed", http.StatusMethodNotAllowed},
	ProblemTypeTooManyRequests:    {"Too many requests", http.StatusTooManyRequests},
	ProblemTypeTLSRequired:        {"TLS required", http.StatusForbidden},
	ProblemTypeInternal:           {"Internal server error", http.StatusInternalServerError},
	ProblemTypeUnavailable:        {"Service unavailable", http.StatusServiceUnavailable},
}

// NewProblem builds a problem of a catalogued type. Unknown types are
// reported as internal errors so a typo never leaks a zero status.
func NewProblem(problemType, traceID, detail string) *Problem {
	entry, ok := problemCatalog[problemType]
	if !ok {
		problemType = ProblemTypeInternal
		entry = problemCatalog[ProblemTypeInternal]
	}
	return &Problem{
		Type:    problemType,
		Title:   entry.title,
		Status:  entry.status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// Write sends the problem with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := NewProblem(ProblemTypeValidation, traceID, detail)
	p.Errors = errors
	return p
}

func NewInvalidCoordinates(traceID, detail string, errors []FieldError) *Problem {
	p := NewProblem(ProblemTypeInvalidCoordinates, traceID, detail)
	p.Errors = errors
	return p
}

func NewNotFound(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeNotFound, traceID, detail)
}

func NewMethodNotAllowed(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeMethodNotAllowed, traceID, detail)
}

func NewTooManyRequests(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeTooManyRequests, traceID, detail)
}

func NewTLSRequired(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeTLSRequired, traceID, detail)
}

func NewInternalError(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeInternal, traceID, detail)
}

func NewServiceUnavailable(traceID, detail string) *Problem {
	return NewProblem(ProblemTypeUnavailable, traceID, detail)
}
