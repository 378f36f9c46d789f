package ratelimit

import (
	"net"
	"net/http"
)

// Middleware limits requests per client address. It is applied to the
// credential endpoints (login, signup) where unauthenticated callers can
// hammer the password hasher.
func Middleware(rl *RateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientKey(r)) {
			http.Error(w, "Too many requests, slow down.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientKey derives the limiter key from the remote address, ignoring the
// ephemeral port so one client maps to one bucket.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
