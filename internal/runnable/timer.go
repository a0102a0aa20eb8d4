package runnable

import (
	"fmt"
	"sync"
	"time"

	"regionsched/internal/schedule"
)

// ScheduleState is whether a Timer has a live schedule.
type ScheduleState uint8

const (
	Unscheduled ScheduleState = iota
	Scheduled
)

func (s ScheduleState) String() string {
	if s == Scheduled {
		return "scheduled"
	}
	return "unscheduled"
}

type TimerOption func(*Timer)

// WithStart sets a hook that runs right before each async submission. It runs
// outside the Timer's lock and may call State or Cancel; a Cancel from the
// hook aborts the submission.
func WithStart(fn func()) TimerOption { return func(t *Timer) { t.start = fn } }

// Timer owns at most one repeating schedule at a time. Every transition
// happens under its mutex, so RunTimer and Cancel are safe from any goroutine,
// including from inside run.
type Timer struct {
	s     *schedule.Scheduler
	run   func()
	start func()

	mu  sync.Mutex
	cur schedule.Task

	// starting is set while the start hook runs; aborted records a Cancel
	// that arrived meanwhile.
	starting bool
	aborted  bool
}

func NewTimer(s *schedule.Scheduler, run func(), opts ...TimerOption) *Timer {
	t := &Timer{s: s, run: run}
	for _, o := range opts {
		o(t)
	}
	return t
}

// RunTimer repeats run on the global thread. It fails with
// ErrAlreadyScheduled while a previous schedule is still live.
func (t *Timer) RunTimer(delay, period int64) (schedule.Task, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stateLocked() == Scheduled {
		return schedule.Task{}, ErrAlreadyScheduled
	}
	task, err := t.s.RunTimer(func(schedule.Task) { t.run() }, delay, period)
	if err != nil {
		return schedule.Task{}, err
	}
	t.cur = task
	return task, nil
}

// RunTimerAsync repeats run on the background pool, after the start hook.
// Bad timing is rejected before the hook runs.
func (t *Timer) RunTimerAsync(delay, period time.Duration) (schedule.Task, error) {
	switch {
	case delay < 0:
		return schedule.Task{}, fmt.Errorf("%w: %v", schedule.ErrInvalidDelay, delay)
	case period <= 0:
		return schedule.Task{}, fmt.Errorf("%w: %v", schedule.ErrInvalidPeriod, period)
	}

	t.mu.Lock()
	if t.stateLocked() == Scheduled {
		t.mu.Unlock()
		return schedule.Task{}, ErrAlreadyScheduled
	}
	if t.start != nil {
		t.starting = true
		t.mu.Unlock()
		t.start()
		t.mu.Lock()
		t.starting = false
	}
	defer t.mu.Unlock()
	if t.aborted {
		t.aborted = false
		return schedule.Task{}, ErrStartCancelled
	}
	task, err := t.s.RunAsyncTimer(func(schedule.Task) { t.run() }, delay, period)
	if err != nil {
		return schedule.Task{}, err
	}
	t.cur = task
	return task, nil
}

// Cancel stops the live schedule. It is a no-op when nothing is scheduled.
func (t *Timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.starting {
		t.aborted = true
	}
	t.cur.Cancel()
}

func (t *Timer) State() ScheduleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

func (t *Timer) stateLocked() ScheduleState {
	if t.starting {
		return Scheduled
	}
	if t.cur.IsCancelled() {
		return Unscheduled
	}
	return Scheduled
}
