package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestCircuitBreakerOpensOnRateLimits(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Hour)
	cb.OnError(errors.New("plain failure"))
	cb.OnError(errors.New("plain failure"))
	if !cb.Allow() {
		t.Fatalf("non rate-limit errors must not open the breaker")
	}
	cb.OnError(RateLimitError{Provider: "openai"})
	cb.OnError(fmt.Errorf("wrapped: %w", RateLimitError{Provider: "openai"}))
	if cb.Allow() {
		t.Fatalf("expected breaker open after threshold")
	}
	cb.OnSuccess()
	if !cb.Allow() {
		t.Fatalf("expected breaker closed after success")
	}
}

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	p := NewRetryPolicy(3, time.Millisecond)
	attempts := 0
	err := p.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetryPolicyHonorsContext(t *testing.T) {
	p := NewRetryPolicy(5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	done := make(chan error, 1)
	go func() {
		done <- p.Do(ctx, func(context.Context) error {
			attempts++
			return errors.New("down")
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err == nil || err.Error() != "down" {
			t.Fatalf("expected last error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("retry did not stop after cancel")
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt before cancel, got %d", attempts)
	}
}

func TestCircuitBreakerCooldown(t *testing.T) {
	now := time.Unix(1000, 0)
	cb := NewCircuitBreaker(1, time.Minute)
	cb.now = func() time.Time { return now }
	if opened := cb.OnError(RateLimitError{}); !opened {
		t.Fatalf("expected first rate limit to open a threshold-1 breaker")
	}
	if cb.State() != BreakerOpen {
		t.Fatalf("expected open state")
	}
	if got := cb.RetryAfter(); got != time.Minute {
		t.Fatalf("expected retry after 1m, got %s", got)
	}
	now = now.Add(61 * time.Second)
	if cb.State() != BreakerClosed {
		t.Fatalf("expected breaker to close after cooldown")
	}
}
