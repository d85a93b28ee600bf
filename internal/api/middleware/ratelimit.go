package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/heliowatch/heliowatch/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

var (
	// ReportRateLimit applies to report assembly, which may call upstream
	// providers (60 req/min).
	ReportRateLimit = RateLimitConfig{
		RequestLimit: 60,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to cheap read endpoints (300 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 300,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter keyed on the client IP. Place it after
// chi's RealIP middleware so X-Forwarded-For is honoured.
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	retryAfter := retryAfterSeconds(cfg.WindowLength)

	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			problem := models.NewTooManyRequests(GetRequestID(r.Context()),
				"Rate limit of "+strconv.Itoa(cfg.RequestLimit)+" requests per "+cfg.WindowLength.String()+" exceeded")
			problem.Instance = r.URL.Path

			// httprate does not expose the reset time; the full window is an upper bound.
			w.Header().Set("Retry-After", retryAfter)
			problem.Write(w)
		}),
	)
}

// retryAfterSeconds renders a window as a whole-second Retry-After value.
func retryAfterSeconds(window time.Duration) string {
	return strconv.Itoa(int(math.Ceil(window.Seconds())))
}
