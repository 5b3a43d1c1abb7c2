// Package ratelimit provides token bucket rate limiting for bnsim MCP tools.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is returned when a tool call exceeds its budget.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter is a token bucket. It is safe for concurrent use.
type Limiter struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	burst  float64
	tokens float64
	last   time.Time
	now    func() time.Time
}

// NewLimiter returns a full bucket refilling at rate tokens per second up
// to burst tokens.
func NewLimiter(rate float64, burst int) *Limiter {
	return newLimiterAt(rate, burst, time.Now)
}

func newLimiterAt(rate float64, burst int, now func() time.Time) *Limiter {
	return &Limiter{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   now(),
		now:    now,
	}
}

// Allow takes one token if available.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.tokens = min(l.burst, l.tokens+l.rate*elapsed)
		l.last = now
	}
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}

// Tools maps tool names to limiters. Tools without an entry are unlimited.
type Tools map[string]*Limiter

// DefaultTools returns the limits used by the MCP server. Simulations are
// the expensive call; listing and inspecting are cheap.
func DefaultTools() Tools {
	return Tools{
		"bnsim_simulate": NewLimiter(10.0/60.0, 3), // 10/minute, burst 3
		"bnsim_runs":     NewLimiter(1.0, 10),      // 60/minute, burst 10
		"bnsim_inspect":  NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
	}
}

// Check returns an error wrapping ErrLimited when tool has no tokens left.
func (t Tools) Check(tool string) error {
	l, ok := t[tool]
	if !ok {
		return nil
	}
	if !l.Allow() {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, tool)
	}
	return nil
}
