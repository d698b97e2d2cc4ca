// Package ratelimit throttles public endpoints per client.
package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Limiter decides whether one more request for key is allowed. When it is
// not, retryAfter says how long the client should wait.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// KeyFunc derives the limiter key from a request.
type KeyFunc func(r *http.Request) string

// ClientIP keys requests by the host of the TCP peer. Forwarding headers
// are ignored.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedClientIP resolves the client behind trustedProxies reverse
// proxies. Each proxy appends the address it received the request from, so
// the entry at len(parts)-trustedProxies is the one the outermost proxy
// wrote; anything to its left is client supplied. With no trusted proxies,
// or a header too short to hold that entry, it falls back to ClientIP.
func ForwardedClientIP(trustedProxies int) KeyFunc {
	if trustedProxies <= 0 {
		return ClientIP
	}
	return func(r *http.Request) string {
		xff := r.Header.Values("X-Forwarded-For")
		if len(xff) == 0 {
			return ClientIP(r)
		}
		parts := strings.Split(strings.Join(xff, ","), ",")
		idx := len(parts) - trustedProxies
		if idx < 0 {
			return ClientIP(r)
		}
		if ip := strings.TrimSpace(parts[idx]); ip != "" {
			return ip
		}
		return ClientIP(r)
	}
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. If the limiter itself fails the request is let through.
func Middleware(l Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, retryAfter, err := l.Allow(r.Context(), key(r))
			if err != nil {
				slog.Warn("rate limiter unavailable, allowing request", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				w.Header().Set("Retry-After", retryAfterSeconds(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate_limit_exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(d.Seconds()) + 1
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
