// ratelimit.go - Per-caller rate limiting for the HTTP API.

package api

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// defaultTrackedCallers bounds how many per-caller buckets are kept.
const defaultTrackedCallers = 10_000

// CallerRateLimiter keeps one token bucket per caller. The least recently seen
// callers are forgotten once more than the tracked number show up.
type CallerRateLimiter struct {
	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewCallerRateLimiter allows each caller limit requests per second with bursts of burst.
func NewCallerRateLimiter(limit float64, burst int) *CallerRateLimiter {
	cache, err := lru.New[string, *rate.Limiter](defaultTrackedCallers)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &CallerRateLimiter{
		limiters: cache,
		limit:    rate.Limit(limit),
		burst:    burst,
	}
}

// Allow checks if a request from caller is allowed and consumes a token if so.
func (l *CallerRateLimiter) Allow(caller string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters.Get(caller)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters.Add(caller, limiter)
	}
	l.mu.Unlock()

	return limiter.Allow()
}
