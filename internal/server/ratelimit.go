package server

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleLimiterTTL is how long an unused per-client limiter is kept
const idleLimiterTTL = time.Hour

// RateLimiter applies a token bucket per client IP
type RateLimiter struct {
	enabled  bool
	limit    rate.Limit
	burst    int
	limiters map[string]*clientLimiter
	mu       sync.Mutex
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter allowing requestsPerMin per client with
// the given burst
func NewRateLimiter(enabled bool, requestsPerMin, burst int) *RateLimiter {
	if burst <= 0 {
		burst = max(requestsPerMin/60, 1)
	}
	return &RateLimiter{
		enabled:  enabled,
		limit:    rate.Limit(float64(requestsPerMin) / 60.0),
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// Allow checks if a request from the given client IP is allowed
func (r *RateLimiter) Allow(clientIP string) bool {
	if !r.enabled {
		return true
	}

	r.mu.Lock()
	cl, ok := r.limiters[clientIP]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.limiters[clientIP] = cl
	}
	cl.lastSeen = time.Now()
	r.mu.Unlock()

	return cl.limiter.Allow()
}

// CleanupOldBuckets removes limiters of clients not seen recently
func (r *RateLimiter) CleanupOldBuckets(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for ip, cl := range r.limiters {
		if now.Sub(cl.lastSeen) > idleLimiterTTL {
			delete(r.limiters, ip)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine periodically drops idle limiters until ctx is done
func (r *RateLimiter) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.CleanupOldBuckets(now)
		}
	}
}
