package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Acquire(t *testing.T) {
	t.Run("should allow requests under limit", func(t *testing.T) {
		limiter := NewRateLimiterWithLimits(10, 5)

		for i := 0; i < 5; i++ {
			allowed, reason := limiter.Acquire()
			assert.True(t, allowed)
			assert.Empty(t, reason)
		}
	})

	t.Run("should reject when concurrent limit exceeded", func(t *testing.T) {
		limiter := NewRateLimiterWithLimits(100, 3)

		for i := 0; i < 3; i++ {
			allowed, _ := limiter.Acquire()
			assert.True(t, allowed)
		}

		allowed, reason := limiter.Acquire()
		assert.False(t, allowed)
		assert.Equal(t, ReasonTooConcurrent, reason)

		limiter.Release()
		allowed, _ = limiter.Acquire()
		assert.True(t, allowed)
	})

	t.Run("should reject when rate limit exceeded", func(t *testing.T) {
		limiter := NewRateLimiterWithLimits(5, 10)

		for i := 0; i < 5; i++ {
			allowed, _ := limiter.Acquire()
			assert.True(t, allowed)
			limiter.Release()
		}

		allowed, reason := limiter.Acquire()
		assert.False(t, allowed)
		assert.Equal(t, ReasonRateLimited, reason)
	})

	t.Run("should not limit when limits are disabled", func(t *testing.T) {
		limiter := NewRateLimiterWithLimits(0, 0)

		for i := 0; i < 1000; i++ {
			allowed, _ := limiter.Acquire()
			assert.True(t, allowed)
		}
	})
}

func TestRateLimiter_Stats(t *testing.T) {
	limiter := NewRateLimiter()

	limiter.Acquire()
	limiter.Acquire()
	limiter.Release()

	requests, concurrent := limiter.Stats()
	assert.Equal(t, 2, requests)
	assert.Equal(t, 1, concurrent)

	limiter.Release()
	limiter.Release()
	_, concurrent = limiter.Stats()
	assert.Equal(t, 0, concurrent, "release never goes negative")
}
