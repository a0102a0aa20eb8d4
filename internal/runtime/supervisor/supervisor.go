package supervisor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	logx "regionsched/pkg/logx"
)

// Supervisor manages goroutines tied to a shared context.
// - Named goroutines (for logging/debug)
// - Panic recovery
// - Optional cancel-on-first-error
// - Graceful stop with timeout-aware waiting
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc

	started atomic.Uint64
	active  atomic.Int64
	panics  atomic.Uint64

	log         logx.Logger
	cancelOnErr bool
	errOnce     sync.Once
	firstErr    atomic.Value // stores error
	doneOnce    sync.Once
	doneCh      chan struct{}
	wg          sync.WaitGroup
}

type SupervisorOption func(*Supervisor)

// Counters exposes best-effort goroutine counters.
// These are operational signals only (not a synchronization primitive).
type Counters struct {
	Active  int64  `json:"active"`
	Started uint64 `json:"started"`
	Panics  uint64 `json:"panics"`
}

func WithLogger(log logx.Logger) SupervisorOption {
	return func(s *Supervisor) { s.log = log }
}

// If enabled, the first non-nil error from any goroutine will cancel the supervisor context.
func WithCancelOnError(enabled bool) SupervisorOption {
	return func(s *Supervisor) { s.cancelOnErr = enabled }
}

func NewSupervisor(parent context.Context, opts ...SupervisorOption) *Supervisor {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		doneCh: make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

func (s *Supervisor) Context() context.Context { return s.ctx }

// Cancel cancels the supervisor context without waiting for goroutines to exit.
func (s *Supervisor) Cancel() { s.cancel() }

func (s *Supervisor) Err() error {
	if err, ok := s.firstErr.Load().(error); ok {
		return err
	}
	return nil
}

func (s *Supervisor) Counters() Counters {
	if s == nil {
		return Counters{}
	}
	return Counters{
		Active:  s.active.Load(),
		Started: s.started.Load(),
		Panics:  s.panics.Load(),
	}
}

// Go runs fn in a named goroutine. Panics are converted to errors.
func (s *Supervisor) Go(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.started.Add(1)
	s.active.Add(1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.active.Add(-1)

		s.log.Debug("goroutine started", logx.String("name", name))
		err := s.runGuarded(name, fn)
		if err != nil && !errors.Is(err, context.Canceled) {
			s.fail(fmt.Errorf("%s: %w", name, err))
		}
		s.log.Debug("goroutine stopped", logx.String("name", name))
	}()
}

func (s *Supervisor) Go0(name string, fn func(ctx context.Context)) {
	if fn == nil {
		return
	}
	s.Go(name, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// RestartOption configures GoRestart.
type RestartOption func(*restartCfg)

type restartCfg struct {
	minBackoff  time.Duration
	maxBackoff  time.Duration
	maxRestarts int // <=0 means unlimited
}

// WithRestartBackoff configures the exponential backoff window used between restarts.
func WithRestartBackoff(min, max time.Duration) RestartOption {
	return func(c *restartCfg) {
		if min > 0 {
			c.minBackoff = min
		}
		if max > 0 {
			c.maxBackoff = max
		}
	}
}

// WithMaxRestarts limits the number of restarts (errors/panics) before giving up.
func WithMaxRestarts(n int) RestartOption { return func(c *restartCfg) { c.maxRestarts = n } }

// GoRestart runs fn and restarts it on error/panic using exponential backoff until ctx is canceled.
// A nil return is a clean stop.
func (s *Supervisor) GoRestart(name string, fn func(ctx context.Context) error, opts ...RestartOption) {
	if fn == nil {
		return
	}
	cfg := restartCfg{minBackoff: 250 * time.Millisecond, maxBackoff: 30 * time.Second}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxBackoff < cfg.minBackoff {
		cfg.maxBackoff = cfg.minBackoff
	}

	s.Go0(name+".restart", func(ctx context.Context) {
		backoff := cfg.minBackoff
		restarts := 0
		for {
			startedAt := time.Now()
			err := s.runGuarded(name, fn)
			if ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
				return
			}

			restarts++
			if cfg.maxRestarts > 0 && restarts > cfg.maxRestarts {
				s.log.Error("goroutine gave up after restarts", logx.String("name", name), logx.Int("restarts", restarts), logx.Err(err))
				s.fail(fmt.Errorf("%s: %w", name, err))
				return
			}
			// A long healthy run resets the backoff window.
			if time.Since(startedAt) >= 30*time.Second {
				backoff = cfg.minBackoff
			}
			s.log.Warn("goroutine restarting", logx.String("name", name), logx.Duration("backoff", backoff), logx.Err(err))

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > cfg.maxBackoff {
				backoff = cfg.maxBackoff
			}
		}
	})
}

func (s *Supervisor) runGuarded(name string, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.panics.Add(1)
			s.log.Error("goroutine panicked", logx.String("name", name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(s.ctx)
}

func (s *Supervisor) fail(err error) {
	s.errOnce.Do(func() { s.firstErr.Store(err) })
	if s.cancelOnErr {
		s.cancel()
	}
}

func (s *Supervisor) Stop(ctx context.Context) error {
	s.cancel()
	return s.Wait(ctx)
}

func (s *Supervisor) Wait(ctx context.Context) error {
	s.doneOnce.Do(func() {
		go func() {
			s.wg.Wait()
			close(s.doneCh)
		}()
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.doneCh:
		return s.Err()
	}
}
