package session

import (
	"sync"
	"time"
)

const (
	DefaultRequestsPerMinute = 600
	DefaultMaxConcurrent     = 32
)

// Rejection reasons returned by RateLimiter.Acquire
const (
	ReasonRateLimited   = "rate limit exceeded"
	ReasonTooConcurrent = "too many concurrent requests"
)

// RateLimiter implements sliding window admission of commands for one session
type RateLimiter struct {
	mu                 sync.Mutex
	requestsPerMinute  int
	maxConcurrent      int
	requests           []time.Time
	concurrentRequests int
}

// NewRateLimiter creates a limiter with default limits
func NewRateLimiter() *RateLimiter {
	return NewRateLimiterWithLimits(DefaultRequestsPerMinute, DefaultMaxConcurrent)
}

// NewRateLimiterWithLimits creates a limiter with custom limits.
// A non-positive limit disables that check.
func NewRateLimiterWithLimits(requestsPerMinute, maxConcurrent int) *RateLimiter {
	return &RateLimiter{
		requestsPerMinute: requestsPerMinute,
		maxConcurrent:     maxConcurrent,
		requests:          make([]time.Time, 0),
	}
}

// Acquire admits one command. On success the caller must call Release when done.
func (r *RateLimiter) Acquire() (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()

	if r.maxConcurrent > 0 && r.concurrentRequests >= r.maxConcurrent {
		return false, ReasonTooConcurrent
	}

	r.prune(now)
	if r.requestsPerMinute > 0 && len(r.requests) >= r.requestsPerMinute {
		return false, ReasonRateLimited
	}

	r.requests = append(r.requests, now)
	r.concurrentRequests++
	return true, ""
}

// Release ends a command admitted by Acquire
func (r *RateLimiter) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.concurrentRequests > 0 {
		r.concurrentRequests--
	}
}

// Stats returns requests in the current window and commands in flight
func (r *RateLimiter) Stats() (requestCount, concurrentCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.prune(time.Now())
	return len(r.requests), r.concurrentRequests
}

func (r *RateLimiter) prune(now time.Time) {
	cutoff := now.Add(-time.Minute)
	valid := r.requests[:0]
	for _, reqTime := range r.requests {
		if reqTime.After(cutoff) {
			valid = append(valid, reqTime)
		}
	}
	r.requests = valid
}
