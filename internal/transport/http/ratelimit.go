package http

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// rateLimiter allows limit calls per fixed one-minute window.
type rateLimiter struct {
	clock clock.Clock
	limit int

	mu      sync.Mutex
	counter int
	window  time.Time
}

func newRateLimiter(limit int, clk clock.Clock) *rateLimiter {
	if clk == nil {
		clk = clock.New()
	}
	return &rateLimiter{limit: limit, clock: clk}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if r.window.IsZero() || now.Sub(r.window) >= time.Minute {
		r.window = now
		r.counter = 0
	}
	r.counter++
	return r.counter <= r.limit
}
