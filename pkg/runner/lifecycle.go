package runner

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

type Options struct {
	Title   string
	Banner  io.Writer
	Hooks   Hooks
	Drainer Drainer
	Timeout time.Duration
}

type LifecycleRunner struct {
	state    int32
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	onceStop sync.Once
	opts     Options
	stopErr  error
}

func NewLifecycleRunner(opts Options) *LifecycleRunner {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Title == "" {
		opts.Title = "MCPCHAT"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LifecycleRunner{
		state:  int32(StateNew),
		ctx:    ctx,
		cancel: cancel,
		opts:   opts,
	}
}

// Run starts the hooks and blocks until ctx is done or Stop is called,
// then drains.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.casState(StateNew, StateStarting) {
		return errors.New("invalid state transition")
	}
	PrintBanner(r.opts.Banner, r.opts.Title)
	r.mu.Lock()
	if ctx != nil {
		// Stop may already have cancelled the initial context.
		stopped := r.ctx.Err() != nil
		r.ctx, r.cancel = context.WithCancel(ctx)
		if stopped {
			r.cancel()
		}
	}
	runCtx, cancel := r.ctx, r.cancel
	r.mu.Unlock()

	if r.opts.Hooks.OnStart != nil {
		if err := r.opts.Hooks.OnStart(runCtx); err != nil {
			cancel()
			r.setState(StateStopped)
			return err
		}
	}
	r.setState(StateRunning)
	<-runCtx.Done()
	return r.stop()
}

func (r *LifecycleRunner) Stop() error {
	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	cancel()
	return r.stop()
}

func (r *LifecycleRunner) State() State {
	return State(atomic.LoadInt32(&r.state))
}

func (r *LifecycleRunner) stop() error {
	r.onceStop.Do(func() {
		r.setState(StateDraining)
		if r.opts.Drainer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), r.opts.Timeout)
			done := make(chan error, 1)
			go func() { done <- r.opts.Drainer.Drain(ctx) }()
			select {
			case err := <-done:
				r.stopErr = err
			case <-ctx.Done():
				r.stopErr = errors.New("drain timeout")
			}
			cancel()
		}
		if r.opts.Hooks.OnStop != nil {
			r.opts.Hooks.OnStop()
		}
		r.setState(StateStopped)
	})
	return r.stopErr
}

func (r *LifecycleRunner) casState(from, to State) bool {
	return atomic.CompareAndSwapInt32(&r.state, int32(from), int32(to))
}

func (r *LifecycleRunner) setState(s State) {
	atomic.StoreInt32(&r.state, int32(s))
}
