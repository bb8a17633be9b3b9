package api

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused client limiter is kept
const idleLimiterTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter enforces a per-client request rate
type RateLimiter struct {
	limiters *xsync.Map[string, *clientLimiter]
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing rps requests per second per client with the given burst.
// A non-positive rps disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{
		limiters: xsync.NewMap[string, *clientLimiter](),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

// Allow reports whether client may make a request now, and if not, how long until it may
func (rl *RateLimiter) Allow(client string) (bool, time.Duration) {
	now := rl.now()
	entry, _ := rl.limiters.Compute(client, func(old *clientLimiter, loaded bool) (*clientLimiter, xsync.ComputeOp) {
		if !loaded {
			old = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		}
		old.lastSeen = now
		return old, xsync.UpdateOp
	})

	r := entry.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Purge drops limiters idle for longer than idleLimiterTTL and returns how many were removed
func (rl *RateLimiter) Purge() int {
	cutoff := rl.now().Add(-idleLimiterTTL)
	removed := 0
	rl.limiters.Range(func(key string, entry *clientLimiter) bool {
		rl.limiters.Compute(key, func(old *clientLimiter, loaded bool) (*clientLimiter, xsync.ComputeOp) {
			if loaded && old.lastSeen.Before(cutoff) {
				removed++
				return nil, xsync.DeleteOp
			}
			return old, xsync.CancelOp
		})
		return true
	})
	return removed
}

// Size is the number of tracked clients
func (rl *RateLimiter) Size() int {
	return rl.limiters.Size()
}

// clientKey identifies the caller by the first X-Forwarded-For hop, falling back to the remote host
func clientKey(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// RateLimitMiddleware creates a middleware that enforces rate limiting
func RateLimitMiddleware(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			ok, wait := rl.Allow(clientKey(r))
			if !ok {
				retryAfter := int(math.Ceil(wait.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				respondError(w, http.StatusTooManyRequests, ErrCodeRateLimitExceeded, "Rate limit exceeded. Please try again later.", map[string]interface{}{
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
