// Package tickloop is an ordered tick queue: entries become due on a tick
// number and fire in (due tick, submission order) on whichever goroutine
// drives the loop.
package tickloop

import (
	"container/heap"
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"regionsched/internal/host"
	logx "regionsched/pkg/logx"
)

var ErrAlreadyRunning = errors.New("tick loop already running")

type Config struct {
	Name         string
	TickInterval time.Duration
}

// Loop owns a queue of entries. Schedule is safe from any goroutine; Tick and
// Run must be driven by a single goroutine, which becomes the loop's thread.
type Loop struct {
	name     string
	interval time.Duration
	log      logx.Logger
	overrun  *logx.Throttled

	mu    sync.Mutex
	tick  uint64
	seq   uint64
	queue entryHeap

	running atomic.Bool
	fired   atomic.Uint64
	panics  atomic.Uint64
}

// Snapshot is a diagnostic view of a loop.
type Snapshot struct {
	Name    string `json:"name"`
	Tick    uint64 `json:"tick"`
	Pending int    `json:"pending"`
	Fired   uint64 `json:"fired"`
	Panics  uint64 `json:"panics"`
}

func New(cfg Config, log logx.Logger) *Loop {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = host.TickDuration
	}
	if cfg.Name == "" {
		cfg.Name = "loop"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("loop", cfg.Name))
	return &Loop{
		name:     cfg.Name,
		interval: cfg.TickInterval,
		log:      log,
		overrun:  logx.NewThrottled(log, 5*time.Second, 1),
	}
}

func (l *Loop) Name() string                { return l.name }
func (l *Loop) TickInterval() time.Duration { return l.interval }

// CurrentTick returns the number of completed Tick calls.
func (l *Loop) CurrentTick() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tick
}

// Pending returns the number of queued entries, including cancelled ones not yet dropped.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

func (l *Loop) Snapshot() Snapshot {
	l.mu.Lock()
	tick, pending := l.tick, len(l.queue)
	l.mu.Unlock()
	return Snapshot{Name: l.name, Tick: tick, Pending: pending, Fired: l.fired.Load(), Panics: l.panics.Load()}
}

// Schedule queues fn to fire after delay ticks (at least one: work submitted
// during a tick never runs in that same tick). A positive period makes the
// entry fire every period ticks until cancelled.
func (l *Loop) Schedule(fn func(*Entry), delay, period int64) *Entry {
	if delay < 1 {
		delay = 1
	}
	if period < 0 {
		period = 0
	}
	e := &Entry{fn: fn, period: period}
	l.mu.Lock()
	l.seq++
	e.id = l.seq
	e.seq = l.seq
	e.due = l.tick + uint64(delay)
	heap.Push(&l.queue, e)
	l.mu.Unlock()
	return e
}

// Tick advances the loop by one tick and fires every entry that became due,
// on the calling goroutine. It returns the number of entries fired.
func (l *Loop) Tick() int {
	l.mu.Lock()
	l.tick++
	now := l.tick
	var due []*Entry
	for len(l.queue) > 0 && l.queue[0].due <= now {
		e := heap.Pop(&l.queue).(*Entry)
		if e.IsCancelled() {
			continue
		}
		due = append(due, e)
	}
	l.mu.Unlock()

	n := 0
	for _, e := range due {
		if l.fire(e, now) {
			n++
		}
	}
	return n
}

func (l *Loop) fire(e *Entry, now uint64) bool {
	if !e.state.Begin() {
		return false
	}
	l.runSafely(e)
	l.fired.Add(1)

	if e.state.End(e.period > 0) {
		l.mu.Lock()
		l.seq++
		e.seq = l.seq
		e.due = now + uint64(e.period)
		heap.Push(&l.queue, e)
		l.mu.Unlock()
	}
	return true
}

func (l *Loop) runSafely(e *Entry) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.log.Error("scheduled work panicked", logx.Uint64("entry", e.id), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	if e.fn != nil {
		e.fn(e)
	}
}

// Run drives the loop at its tick interval until ctx is done. The deadline is
// advanced by a fixed step each tick; if the loop falls more than two ticks
// behind it resynchronises instead of bursting.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	next := time.Now().Add(l.interval)
	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	l.log.Debug("tick loop started", logx.Duration("interval", l.interval))
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("tick loop stopped", logx.Uint64("tick", l.CurrentTick()))
			return nil
		case <-timer.C:
		}

		start := time.Now()
		fired := l.Tick()
		if took := time.Since(start); took > l.interval {
			l.overrun.Warn("tick overrun", logx.Duration("took", took), logx.Duration("interval", l.interval), logx.Int("fired", fired))
		}

		next = next.Add(l.interval)
		if time.Since(next) > 2*l.interval {
			next = time.Now().Add(l.interval)
		}
		timer.Reset(time.Until(next))
	}
}

// Running reports whether Run is active.
func (l *Loop) Running() bool { return l.running.Load() }
