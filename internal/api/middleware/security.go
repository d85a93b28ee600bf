package middleware

import (
	"net/http"

	"github.com/heliowatch/heliowatch/internal/api/models"
)

// responseHeaders are set on every response. The API serves JSON only, so the
// policy denies framing, embedding and any content sources.
var responseHeaders = []struct{ name, value string }{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "no-referrer"},
	// Reports are point-in-time; intermediaries must not replay them.
	{"Cache-Control", "no-store"},
}

// SecurityHeaders adds the hardening headers to all HTTP responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		for _, rh := range responseHeaders {
			h.Set(rh.name, rh.value)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireTLS rejects plain-HTTP requests forwarded by a load balancer.
// Requests without X-Forwarded-Proto (direct connections, local runs) pass.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if forwardedPlainHTTP(r) {
				problem := models.NewTLSRequired(GetRequestID(r.Context()), "HelioWatch only serves reports over HTTPS")
				problem.Instance = r.URL.Path
				problem.Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedPlainHTTP(r *http.Request) bool {
	if r.TLS != nil {
		return false
	}
	proto := r.Header.Get("X-Forwarded-Proto")
	return proto != "" && proto != "https"
}
