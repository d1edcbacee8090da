package resilience

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// RateLimitError is returned when a provider throttles requests or when the
// breaker refuses to call it.
type RateLimitError struct {
	Provider   string
	Message    string
	RetryAfter time.Duration
}

func (e RateLimitError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: rate limited", e.Provider)
	}
	return "rate limited"
}

// IsRateLimit reports whether err wraps a RateLimitError.
func IsRateLimit(err error) bool {
	var rl RateLimitError
	return errors.As(err, &rl)
}

type BreakerState string

const (
	BreakerClosed BreakerState = "closed"
	BreakerOpen   BreakerState = "open"
)

// CircuitBreaker stops calls to a provider after consecutive rate-limit
// failures and lets them through again once the cooldown has passed.
type CircuitBreaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	openUntil time.Time
	cooldown  time.Duration
	now       func() time.Time
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (c *CircuitBreaker) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.now().Before(c.openUntil)
}

// State reports the current breaker position.
func (c *CircuitBreaker) State() BreakerState {
	if c.Allow() {
		return BreakerClosed
	}
	return BreakerOpen
}

// RetryAfter returns how long the breaker stays open, zero when closed.
func (c *CircuitBreaker) RetryAfter() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.openUntil.Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}

func (c *CircuitBreaker) OnSuccess() {
	c.mu.Lock()
	c.failures = 0
	c.openUntil = time.Time{}
	c.mu.Unlock()
}

// OnError counts rate-limit failures and reports whether this call opened
// the breaker. Other errors are ignored.
func (c *CircuitBreaker) OnError(err error) bool {
	if !IsRateLimit(err) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures++
	if c.failures >= c.threshold && !c.now().Before(c.openUntil) {
		c.openUntil = c.now().Add(c.cooldown)
		return true
	}
	return false
}
