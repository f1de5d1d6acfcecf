package middleware

import (
	"math"
	"net/http"
	"strconv"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware throttles state-changing requests. Safe methods
// (GET, HEAD, OPTIONS) are never limited so pages keep rendering.
func RateLimitMiddleware(l *rate.Limiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if safeMethod(r.Method) || l.Allow() {
				next.ServeHTTP(w, r)
				return
			}
			retry := 1.0
			if l.Limit() > 0 {
				retry = math.Ceil(1.0 / float64(l.Limit()))
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(retry)))
			http.Error(w, "Too many requests, slow down.", http.StatusTooManyRequests)
		})
	}
}

func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

func safeMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
