package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type Limiter interface {
	Allow(ctx context.Context, key string) bool
}

// RateLimit rejects callers over l's budget with 429. The key is the client
// IP, so chi's RealIP should run first. A nil l disables limiting.
func RateLimit(l Limiter, message string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(r.Context(), clientIP(r)) {
				w.Header().Set("Retry-After", "60")
				writeError(w, http.StatusTooManyRequests, message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
