package ratelimit

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
)

// KeyFunc picks the bucket a request counts against; "" skips limiting.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests with 429 once limiter denies their key.
// Limiter errors let the request through.
func Middleware(limiter Limiter, keyFunc KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				slog.Error("Rate limiter failed", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				slog.Warn("Rate limit exceeded", "key", key, "path", r.URL.Path, "method", r.Method)
				w.Header().Set("Retry-After", "60")
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, map[string]string{
					"error":   "rate_limit_exceeded",
					"message": "Too many requests. Please try again later.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// KeyByIP buckets requests by client address.
func KeyByIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// KeyByAccount buckets authenticated requests by the account_id claim.
func KeyByAccount(r *http.Request) string {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil || claims == nil {
		return ""
	}
	if id, ok := claims["account_id"].(string); ok && id != "" {
		return "account:" + id
	}
	return ""
}

// ClientIP extracts the client IP address from the request
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
