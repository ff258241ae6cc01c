package gateway

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientRateLimiter_Acquire(t *testing.T) {
	t.Run("should allow requests under limit", func(t *testing.T) {
		limiter := NewClientRateLimiter(10, 5)

		for i := 0; i < 5; i++ {
			ok, code, reason := limiter.Acquire()
			assert.True(t, ok)
			assert.Zero(t, code)
			assert.Empty(t, reason)
		}
	})

	t.Run("should reject when concurrent limit exceeded", func(t *testing.T) {
		limiter := NewClientRateLimiter(100, 3)

		for i := 0; i < 3; i++ {
			ok, _, _ := limiter.Acquire()
			assert.True(t, ok)
		}

		ok, code, reason := limiter.Acquire()
		assert.False(t, ok)
		assert.Equal(t, TooManyConcurrent, code)
		assert.Equal(t, "too many concurrent requests", reason)

		limiter.Release()
		ok, _, _ = limiter.Acquire()
		assert.True(t, ok)
	})

	t.Run("should reject when rate limit exceeded", func(t *testing.T) {
		limiter := NewClientRateLimiter(5, 10)

		for i := 0; i < 5; i++ {
			ok, _, _ := limiter.Acquire()
			assert.True(t, ok)
			limiter.Release()
		}

		ok, code, reason := limiter.Acquire()
		assert.False(t, ok)
		assert.Equal(t, RateLimitExceeded, code)
		assert.Equal(t, "rate limit exceeded", reason)
	})

	t.Run("should allow requests after window expires", func(t *testing.T) {
		now := time.Now()
		limiter := NewClientRateLimiter(2, 10)
		limiter.now = func() time.Time { return now }

		for i := 0; i < 2; i++ {
			ok, _, _ := limiter.Acquire()
			assert.True(t, ok)
			limiter.Release()
		}
		ok, _, _ := limiter.Acquire()
		assert.False(t, ok)

		now = now.Add(61 * time.Second)
		ok, _, _ = limiter.Acquire()
		assert.True(t, ok)
	})
}

func TestClientRateLimiter_Defaults(t *testing.T) {
	limiter := NewClientRateLimiter(0, 0)
	assert.Equal(t, DefaultRequestsPerMinute, limiter.requestsPerMinute)
	assert.Equal(t, DefaultMaxConcurrent, limiter.maxConcurrent)
}

func TestClientRateLimiter_GetStats(t *testing.T) {
	limiter := NewClientRateLimiter(100, 10)

	limiter.Acquire()
	limiter.Acquire()
	limiter.Acquire()

	requests, concurrent := limiter.GetStats()
	assert.Equal(t, 3, requests)
	assert.Equal(t, 3, concurrent)

	limiter.Release()
	requests, concurrent = limiter.GetStats()
	assert.Equal(t, 3, requests)
	assert.Equal(t, 2, concurrent)

	limiter.Release()
	limiter.Release()
	limiter.Release()
	_, concurrent = limiter.GetStats()
	assert.Equal(t, 0, concurrent)
}
