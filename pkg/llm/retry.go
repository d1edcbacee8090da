package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/harunnryd/mcpchat/pkg/resilience"
)

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
	IsRetryable func(error) bool
	Sleep       func(time.Duration)
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 2 * time.Second
	}
	if cfg.IsRetryable == nil {
		cfg.IsRetryable = DefaultIsRetryable
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return cfg
}

// RetryStream retries opening a stream. Once a stream is open it is returned
// as is; failures after the first delta are never retried.
func RetryStream(ctx context.Context, cfg RetryConfig, fn func(context.Context) (<-chan Delta, error)) (<-chan Delta, error) {
	cfg = cfg.withDefaults()
	var lastErr error
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < cfg.MaxAttempts; i++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ch, err := fn(ctx)
		if err == nil {
			return ch, nil
		}
		lastErr = err
		if !cfg.IsRetryable(err) || i == cfg.MaxAttempts-1 {
			break
		}
		delay := backoffDelay(cfg.BaseDelay, cfg.MaxDelay, cfg.Jitter, i, r)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
			cfg.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("llm stream retry failed: %w", lastErr)
}

// DefaultIsRetryable retries network errors and non-rate-limit failures.
// Rate limits are left to the circuit breaker.
func DefaultIsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if resilience.IsRateLimit(err) {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	return true
}

func backoffDelay(base, max time.Duration, jitter float64, attempt int, r *rand.Rand) time.Duration {
	pow := math.Pow(2, float64(attempt))
	d := time.Duration(float64(base) * pow)
	if d > max {
		d = max
	}
	if jitter > 0 {
		j := time.Duration(float64(d) * jitter * r.Float64())
		return d + j
	}
	return d
}

// RetryAdapter retries stream opening on the wrapped adapter.
type RetryAdapter struct {
	inner LLMAdapter
	cfg   RetryConfig
}

func NewRetryAdapter(inner LLMAdapter, cfg RetryConfig) *RetryAdapter {
	return &RetryAdapter{inner: inner, cfg: cfg}
}

func (a *RetryAdapter) Name() string { return a.inner.Name() }

func (a *RetryAdapter) Unwrap() LLMAdapter { return a.inner }

func (a *RetryAdapter) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	return RetryStream(ctx, a.cfg, func(ctx context.Context) (<-chan Delta, error) {
		return a.inner.Stream(ctx, req)
	})
}

// Unwrap returns the innermost adapter behind retry and breaker wrappers.
func Unwrap(a LLMAdapter) LLMAdapter {
	for {
		w, ok := a.(interface{ Unwrap() LLMAdapter })
		if !ok {
			return a
		}
		a = w.Unwrap()
	}
}
