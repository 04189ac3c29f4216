package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"polisdesk.org/internal/audit"
	"polisdesk.org/internal/obs"
)

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestID stamps every request with an id, echoed in the response header
// and attached to the context for logs and error payloads.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(audit.WithRequestID(r.Context(), rid)))
	})
}

// LoggingJSON logs one structured line per completed request.
func LoggingJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		obs.LogRequest(map[string]any{
			"ts":          time.Now().UTC().Format(time.RFC3339Nano),
			"type":        "http",
			"request_id":  audit.RequestIDFromContext(r.Context()),
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      sw.code,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote":      clientIdentifier(r),
		})
	})
}

// SecurityHeaders sets the standard hardening headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next.ServeHTTP(w, r)
	})
}

// MaxBodyBytes caps request body size.
func MaxBodyBytes(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		next.ServeHTTP(w, r)
	})
}

// Endpoints that submit credentials get the stricter auth tier.
var authTierPaths = map[string]bool{
	"/api/auth/login":                true,
	"/api/auth/callback/credentials": true,
}

// Session checks, CSRF tokens, provider lists and error pages fire on every
// page load; limiting them would lock users out of the UI itself.
var rateLimitExemptPaths = map[string]bool{
	"/api/health":         true,
	"/api/auth/session":   true,
	"/api/auth/csrf":      true,
	"/api/auth/providers": true,
	"/api/auth/error":     true,
}

// rateLimit applies the two policy tiers to everything under /api/.
func (a *API) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !strings.HasPrefix(path, "/api/") || rateLimitExemptPaths[path] {
			next.ServeHTTP(w, r)
			return
		}

		limiter, tier := a.apiLimiter, "api"
		if authTierPaths[path] {
			limiter, tier = a.authLimiter, "auth"
		}

		res := limiter.Allow(clientIdentifier(r) + ":" + tier)
		if !res.Allowed {
			obs.IncRateLimitDenied(tier)
			w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":   rateLimitError,
				"message": rateLimitMessage,
			})
			return
		}
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		next.ServeHTTP(w, r)
	})
}

// clientIdentifier derives the rate-limit key from proxy headers. Requests
// with none of them collapse into one shared "unknown" bucket; a deployment
// without a trusted proxy should fix its headers rather than rely on this.
func clientIdentifier(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	return "unknown"
}
