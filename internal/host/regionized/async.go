package regionized

import (
	"sync"
	"time"

	"regionsched/internal/host"
)

// asyncScheduler counts wall-clock time with timers and runs each firing on
// the pool, never on a region thread.
type asyncScheduler struct{ s *Server }

func (a asyncScheduler) RunNow(fn func(host.ScheduledTask)) host.ScheduledTask {
	t := &asyncTask{srv: a.s, fn: fn}
	t.fire()
	return t
}

func (a asyncScheduler) RunDelayed(fn func(host.ScheduledTask), delay time.Duration) host.ScheduledTask {
	t := &asyncTask{srv: a.s, fn: fn}
	t.arm(delay)
	return t
}

func (a asyncScheduler) RunAtFixedRate(fn func(host.ScheduledTask), delay, period time.Duration) host.ScheduledTask {
	if period <= 0 {
		period = host.TickDuration
	}
	t := &asyncTask{srv: a.s, fn: fn, period: period}
	t.arm(delay)
	return t
}

type asyncTask struct {
	srv    *Server
	fn     func(host.ScheduledTask)
	period time.Duration

	state host.State

	mu    sync.Mutex
	timer *time.Timer
	next  time.Time
}

func (t *asyncTask) Cancel() {
	if !t.state.Cancel() {
		return
	}
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
}

func (t *asyncTask) IsCancelled() bool                   { return t.state.IsCancelled() }
func (t *asyncTask) ExecutionState() host.ExecutionState { return t.state.Load() }
func (t *asyncTask) IsRepeating() bool                   { return t.period > 0 }

func (t *asyncTask) arm(delay time.Duration) {
	if delay < 0 {
		delay = 0
	}
	t.mu.Lock()
	t.next = time.Now().Add(delay)
	t.timer = time.AfterFunc(delay, t.fire)
	t.mu.Unlock()
}

// fire hands one run to the pool. Repeating tasks re-arm against their
// schedule, not against when the previous run finished; a firing that finds
// the previous run still going is skipped.
func (t *asyncTask) fire() {
	if t.state.IsCancelled() {
		return
	}
	if t.period > 0 {
		t.mu.Lock()
		t.next = t.next.Add(t.period)
		if behind := time.Since(t.next); behind > 0 {
			t.next = time.Now().Add(t.period)
		}
		t.timer = time.AfterFunc(time.Until(t.next), t.fire)
		t.mu.Unlock()
	}
	t.srv.dispatch("async.region", t.run)
}

func (t *asyncTask) run() {
	if !t.state.Begin() {
		return
	}
	defer func() {
		if !t.state.End(t.period > 0) {
			t.mu.Lock()
			if t.timer != nil {
				t.timer.Stop()
			}
			t.mu.Unlock()
		}
	}()
	t.fn(t)
}
