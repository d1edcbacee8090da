package llm

import (
	"context"
	"sync"
	"time"

	"github.com/harunnryd/mcpchat/pkg/errorsx"
	"github.com/harunnryd/mcpchat/pkg/metrics"
	"github.com/harunnryd/mcpchat/pkg/resilience"
)

// CircuitBreakerAdapter wraps an LLMAdapter with rate-limit circuit breaking.
type CircuitBreakerAdapter struct {
	inner   LLMAdapter
	breaker *resilience.CircuitBreaker
	obs     metrics.Observer
	open    bool
	mu      sync.Mutex
}

func NewCircuitBreakerAdapter(inner LLMAdapter, breaker *resilience.CircuitBreaker) *CircuitBreakerAdapter {
	if breaker == nil {
		breaker = resilience.NewCircuitBreaker(3, 30*time.Second)
	}
	return &CircuitBreakerAdapter{inner: inner, breaker: breaker}
}

func (a *CircuitBreakerAdapter) Name() string { return a.inner.Name() }

// Unwrap exposes the wrapped adapter.
func (a *CircuitBreakerAdapter) Unwrap() LLMAdapter { return a.inner }

// SetObserver allows metrics emission for breaker events.
func (a *CircuitBreakerAdapter) SetObserver(obs metrics.Observer) { a.obs = obs }

// Stream opens the inner stream unless the breaker is open. Rate-limit errors
// reported mid-stream count against the breaker too.
func (a *CircuitBreakerAdapter) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	if !a.breaker.Allow() {
		a.setOpen(true)
		a.record(metrics.EventBreakerDenied)
		err := resilience.RateLimitError{
			Provider:   a.Name(),
			Message:    a.Name() + " temporarily unavailable (rate limited)",
			RetryAfter: a.breaker.RetryAfter(),
		}
		return nil, errorsx.Wrap(err, errorsx.ReasonLLMCircuitOpen)
	}
	a.setOpen(false)
	ch, err := a.inner.Stream(ctx, req)
	if err != nil {
		a.onError(err)
		return nil, err
	}
	out := make(chan Delta)
	go func() {
		defer close(out)
		failed := false
		for d := range ch {
			if d.Err != nil {
				failed = true
				a.onError(d.Err)
			}
			select {
			case out <- d:
			case <-ctx.Done():
				// Drain so the inner producer can exit.
				for range ch {
				}
				return
			}
		}
		if !failed {
			a.breaker.OnSuccess()
		}
	}()
	return out, nil
}

func (a *CircuitBreakerAdapter) onError(err error) {
	if resilience.IsRateLimit(err) {
		a.record(metrics.EventRateLimit)
	}
	if a.breaker.OnError(err) {
		a.setOpen(true)
	}
}

func (a *CircuitBreakerAdapter) record(name string) {
	if a.obs == nil {
		return
	}
	a.obs.RecordEvent(metrics.MetricsEvent{
		Name: name,
		Time: time.Now(),
		Tags: map[string]string{
			"provider":  a.inner.Name(),
			"component": "llm",
		},
	})
}

func (a *CircuitBreakerAdapter) setOpen(open bool) {
	a.mu.Lock()
	changed := a.open != open
	a.open = open
	a.mu.Unlock()
	if !changed {
		return
	}
	if open {
		a.record(metrics.EventBreakerOpen)
		return
	}
	a.record(metrics.EventBreakerClose)
}
