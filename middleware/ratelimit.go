package middleware

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	goSession "github.com/MrEthical07/goSession"
)

// KeyFunc derives the rate-limit identifier of a request. An empty key skips
// limiting.
type KeyFunc func(r *http.Request) string

// ByClientIP keys requests by [ClientIP].
func ByClientIP(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// BySubject keys requests by the identity stored by [Guard], falling back to
// the client address for anonymous requests.
func BySubject(r *http.Request) string {
	if id, ok := IdentityFromContext(r.Context()); ok {
		return "subject:" + id.SubjectID
	}
	return ByClientIP(r)
}

// RateLimit answers 429 with a Retry-After header once key exceeds limit hits
// per window. Store failures answer 503.
func RateLimit(engine *goSession.Engine, limit int, window time.Duration, key KeyFunc) func(http.Handler) http.Handler {
	if key == nil {
		key = ByClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := key(r)
			if engine == nil || id == "" {
				next.ServeHTTP(w, r)
				return
			}

			err := engine.CheckRate(r.Context(), id, limit, window)
			if errors.Is(err, goSession.ErrRateLimited) {
				if remaining, err := engine.RateRemaining(r.Context(), id); err == nil && remaining > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(remaining.Seconds()))))
				}
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			if err != nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
