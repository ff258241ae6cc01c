package gateway

import (
	"sync"
	"time"
)

// Rate limit defaults per client.
const (
	DefaultRequestsPerMinute = 120

	reasonConcurrent = "too many concurrent requests"
	reasonRate       = "rate limit exceeded"
)

// ClientRateLimiter implements sliding window rate limiting per client
type ClientRateLimiter struct {
	mu                 sync.Mutex
	requestsPerMinute  int
	maxConcurrent      int
	requests           []time.Time
	concurrentRequests int
	now                func() time.Time
}

// NewClientRateLimiter creates a rate limiter. Non-positive limits use the
// defaults.
func NewClientRateLimiter(requestsPerMinute, maxConcurrent int) *ClientRateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = DefaultRequestsPerMinute
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &ClientRateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		now:               time.Now,
	}
}

// Acquire reserves a slot for one request. On success the caller must call
// Release when the request finishes. On failure it returns the RPC error
// code and reason.
func (r *ClientRateLimiter) Acquire() (bool, int, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.concurrentRequests >= r.maxConcurrent {
		return false, TooManyConcurrent, reasonConcurrent
	}

	now := r.now()
	r.pruneLocked(now)
	if len(r.requests) >= r.requestsPerMinute {
		return false, RateLimitExceeded, reasonRate
	}

	r.requests = append(r.requests, now)
	r.concurrentRequests++
	return true, 0, ""
}

// Release frees a slot taken by Acquire.
func (r *ClientRateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.concurrentRequests > 0 {
		r.concurrentRequests--
	}
}

// GetStats returns requests in the current window and requests in flight.
func (r *ClientRateLimiter) GetStats() (requestCount, concurrentCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pruneLocked(r.now())
	return len(r.requests), r.concurrentRequests
}

func (r *ClientRateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-time.Minute)
	keep := 0
	for _, t := range r.requests {
		if t.After(cutoff) {
			r.requests[keep] = t
			keep++
		}
	}
	r.requests = r.requests[:keep]
}
