package runnable

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"regionsched/internal/host/mainthread"
	"regionsched/internal/host/regionized"
	"regionsched/internal/schedule"
	"regionsched/internal/world"
	logx "regionsched/pkg/logx"
)

type env struct {
	name string
	s    *schedule.Scheduler
	tick func()
}

func (e env) ticks(n int) {
	for i := 0; i < n; i++ {
		e.tick()
	}
}

func singleEnv(t *testing.T) env {
	t.Helper()
	srv := mainthread.New(mainthread.Config{}, nil, logx.Nop())
	return env{name: "single", s: schedule.New(schedule.NewGlobalBackend(srv.Scheduler()), logx.Nop(), nil), tick: func() { srv.Tick() }}
}

func regionEnv(t *testing.T) env {
	t.Helper()
	srv := regionized.New(regionized.Config{Regions: 2}, nil, logx.Nop())
	return env{name: "regions", s: schedule.New(schedule.NewRegionBackend(srv), logx.Nop(), nil), tick: func() { srv.TickAll() }}
}

func eachEnv(t *testing.T, fn func(t *testing.T, e env)) {
	t.Helper()
	for _, mk := range []func(*testing.T) env{singleEnv, regionEnv} {
		e := mk(t)
		t.Run(e.name, func(t *testing.T) {
			t.Parallel()
			fn(t, e)
		})
	}
}

func item() (*world.Registry, *world.Actor) {
	reg := world.NewRegistry()
	return reg, reg.Spawn("item", world.Location{World: "w", Y: 64})
}

func TestNewPollerValidates(t *testing.T) {
	t.Parallel()
	_, a := item()
	if _, err := NewPoller(a, 3, Checks[*world.Actor]{}); !errors.Is(err, ErrNoSuccessCheck) {
		t.Fatalf("err = %v, want ErrNoSuccessCheck", err)
	}
	never := func(*world.Actor) bool { return false }
	if _, err := NewPoller(a, -1, Checks[*world.Actor]{Success: never}); !errors.Is(err, ErrInvalidMaxRuns) {
		t.Fatalf("err = %v, want ErrInvalidMaxRuns", err)
	}
}

func TestPollerExhaustsAfterMaxRuns(t *testing.T) {
	t.Parallel()
	eachEnv(t, func(t *testing.T, e env) {
		_, a := item()
		var successes atomic.Int32
		p, err := NewPoller(a, 3, Checks[*world.Actor]{
			Success:   func(*world.Actor) bool { return false },
			OnSuccess: func(*world.Actor) { successes.Add(1) },
		})
		if err != nil {
			t.Fatal(err)
		}
		task, err := p.Schedule(e.s, 1, 1)
		if err != nil {
			t.Fatal(err)
		}
		e.ticks(2)
		if task.IsCancelled() || p.Outcome() != Polling {
			t.Fatalf("finished early: outcome=%v", p.Outcome())
		}
		e.ticks(1)
		if !task.IsCancelled() {
			t.Fatal("not cancelled after max runs")
		}
		if p.Outcome() != Exhausted || p.Attempts() != 3 || successes.Load() != 0 {
			t.Fatalf("outcome=%v attempts=%d successes=%d", p.Outcome(), p.Attempts(), successes.Load())
		}
	})
}

func TestPollerSucceedsOnAttemptK(t *testing.T) {
	t.Parallel()
	for _, k := range []int{1, 3, 5} {
		k := k
		t.Run("", func(t *testing.T) {
			t.Parallel()
			e := singleEnv(t)
			_, a := item()
			attempts := 0
			var hookAt []int
			p, err := NewPoller(a, 5, Checks[*world.Actor]{
				Success:   func(*world.Actor) bool { attempts++; return attempts == k },
				OnSuccess: func(*world.Actor) { hookAt = append(hookAt, attempts) },
			})
			if err != nil {
				t.Fatal(err)
			}
			task, err := p.Schedule(e.s, 1, 1)
			if err != nil {
				t.Fatal(err)
			}
			e.ticks(8)
			if len(hookAt) != 1 || hookAt[0] != k {
				t.Fatalf("hook calls at %v, want [%d]", hookAt, k)
			}
			if !task.IsCancelled() || p.Outcome() != Succeeded {
				t.Fatalf("cancelled=%v outcome=%v", task.IsCancelled(), p.Outcome())
			}
		})
	}
}

func TestPollerInvalidItemWinsOverEverything(t *testing.T) {
	t.Parallel()
	reg, a := item()
	var checks atomic.Int32
	p, err := NewPoller(a, 0, Checks[*world.Actor]{
		Fail:      func(*world.Actor) bool { checks.Add(1); return true },
		Success:   func(*world.Actor) bool { checks.Add(1); return true },
		OnSuccess: func(*world.Actor) { checks.Add(1) },
	})
	if err != nil {
		t.Fatal(err)
	}
	reg.Remove(a.ID())
	if got := p.Step(); got != Invalidated {
		t.Fatalf("Step = %v, want invalidated", got)
	}
	if got := p.Step(); got != Invalidated {
		t.Fatalf("second Step = %v", got)
	}
	if checks.Load() != 0 {
		t.Fatal("hooks ran for an invalid item")
	}
}

func TestPollerInvalidatedWhileScheduled(t *testing.T) {
	t.Parallel()
	eachEnv(t, func(t *testing.T, e env) {
		reg, a := item()
		var successes atomic.Int32
		p, err := NewPoller(a, 10, Checks[*world.Actor]{
			Success:   func(*world.Actor) bool { return false },
			OnSuccess: func(*world.Actor) { successes.Add(1) },
		})
		if err != nil {
			t.Fatal(err)
		}
		task, err := p.Schedule(e.s, 1, 1)
		if err != nil {
			t.Fatal(err)
		}
		e.ticks(2)
		reg.Remove(a.ID())
		e.ticks(2)
		if !task.IsCancelled() || p.Outcome() != Invalidated || successes.Load() != 0 {
			t.Fatalf("cancelled=%v outcome=%v successes=%d", task.IsCancelled(), p.Outcome(), successes.Load())
		}
	})
}

func TestPollerFailCheck(t *testing.T) {
	t.Parallel()
	_, a := item()
	var successes int
	p, err := NewPoller(a, 4, Checks[*world.Actor]{
		Fail:      func(*world.Actor) bool { return true },
		Success:   func(*world.Actor) bool { return true },
		OnSuccess: func(*world.Actor) { successes++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := p.Step(); got != Failed || successes != 0 {
		t.Fatalf("Step = %v, successes = %d", got, successes)
	}
}

func TestPollerStepsWithoutSchedule(t *testing.T) {
	t.Parallel()
	_, a := item()
	p, err := NewPoller(a, 2, Checks[*world.Actor]{Success: func(*world.Actor) bool { return false }})
	if err != nil {
		t.Fatal(err)
	}
	e := singleEnv(t)
	task, err := e.s.RunTimer(func(schedule.Task) {}, 100, 100)
	if err != nil {
		t.Fatal(err)
	}
	p.SetTask(task)
	if got := p.Step(); got != Polling {
		t.Fatalf("first Step = %v", got)
	}
	if got := p.Step(); got != Exhausted {
		t.Fatalf("second Step = %v, want exhausted", got)
	}
	if !task.IsCancelled() {
		t.Fatal("bound task not cancelled")
	}
}

func TestTimerRejectsDoubleSchedule(t *testing.T) {
	t.Parallel()
	e := singleEnv(t)
	var runs int
	tm := NewTimer(e.s, func() { runs++ })

	tm.Cancel()
	if tm.State() != Unscheduled {
		t.Fatalf("State = %v before scheduling", tm.State())
	}

	if _, err := tm.RunTimer(1, 1); err != nil {
		t.Fatalf("RunTimer: %v", err)
	}
	if _, err := tm.RunTimer(1, 1); !errors.Is(err, ErrAlreadyScheduled) {
		t.Fatalf("second RunTimer err = %v, want ErrAlreadyScheduled", err)
	}
	if _, err := tm.RunTimerAsync(0, time.Second); !errors.Is(err, ErrAlreadyScheduled) {
		t.Fatalf("RunTimerAsync err = %v, want ErrAlreadyScheduled", err)
	}
	e.ticks(3)
	if runs != 3 {
		t.Fatalf("runs = %d, want 3", runs)
	}

	tm.Cancel()
	tm.Cancel()
	e.ticks(2)
	if runs != 3 || tm.State() != Unscheduled {
		t.Fatalf("runs=%d state=%v after cancel", runs, tm.State())
	}
	if _, err := tm.RunTimer(1, 1); err != nil {
		t.Fatalf("RunTimer after cancel: %v", err)
	}
	if tm.State() != Scheduled {
		t.Fatal("not scheduled after reschedule")
	}
}

func TestTimerAsyncRunsStartFirst(t *testing.T) {
	t.Parallel()
	eachEnv(t, func(t *testing.T, e env) {
		var started atomic.Int32
		fired := make(chan int32, 4)
		var tm *Timer
		tm = NewTimer(e.s, func() {
			fired <- started.Load()
			tm.Cancel()
		}, WithStart(func() { started.Add(1) }))

		if _, err := tm.RunTimerAsync(50*time.Millisecond, 100*time.Millisecond); err != nil {
			t.Fatalf("RunTimerAsync: %v", err)
		}
		if started.Load() != 1 {
			t.Fatal("start hook did not run before submission")
		}
		deadline := time.After(2 * time.Second)
		for {
			select {
			case got := <-fired:
				if got != 1 {
					t.Fatalf("start count at first run = %d", got)
				}
				return
			case <-deadline:
				t.Fatal("async timer never fired")
			default:
				e.tick()
				time.Sleep(time.Millisecond)
			}
		}
	})
}

func TestPollerChecksMayReadPoller(t *testing.T) {
	t.Parallel()
	_, a := item()
	var p *Poller[*world.Actor]
	var seen []int64
	p, err := NewPoller(a, 5, Checks[*world.Actor]{
		Fail: func(*world.Actor) bool { return p.Outcome() != Polling },
		Success: func(*world.Actor) bool {
			seen = append(seen, p.Attempts())
			return p.Attempts() >= 2
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan PollOutcome)
	go func() {
		var out PollOutcome
		for i := 0; i < 3; i++ {
			out = p.Step()
		}
		done <- out
	}()
	select {
	case out := <-done:
		if out != Succeeded {
			t.Fatalf("outcome = %v, want succeeded", out)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Step blocked on a check that reads the poller")
	}
	if len(seen) != 3 || seen[0] != 0 || seen[2] != 2 {
		t.Fatalf("attempts seen by Success = %v", seen)
	}
	if p.Attempts() != 2 {
		t.Fatalf("Attempts = %d, want 2", p.Attempts())
	}
}

func TestTimerAsyncStartHook(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		delay      time.Duration
		period     time.Duration
		cancel     bool
		wantErr    error
		wantStarts int
		wantState  ScheduleState
	}{
		{name: "hook reads state", delay: time.Hour, period: time.Hour, wantStarts: 1, wantState: Scheduled},
		{name: "hook cancels", delay: time.Hour, period: time.Hour, cancel: true, wantErr: ErrStartCancelled, wantStarts: 1, wantState: Unscheduled},
		{name: "zero period", wantErr: schedule.ErrInvalidPeriod, wantState: Unscheduled},
		{name: "negative delay", delay: -time.Second, period: time.Second, wantErr: schedule.ErrInvalidDelay, wantState: Unscheduled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := singleEnv(t)
			var starts int
			var during ScheduleState
			var tm *Timer
			tm = NewTimer(e.s, func() {}, WithStart(func() {
				starts++
				during = tm.State()
				if tt.cancel {
					tm.Cancel()
				}
			}))
			t.Cleanup(tm.Cancel)

			done := make(chan error, 1)
			go func() {
				_, err := tm.RunTimerAsync(tt.delay, tt.period)
				done <- err
			}()
			select {
			case err := <-done:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("RunTimerAsync blocked in its start hook")
			}
			if starts != tt.wantStarts {
				t.Fatalf("start hook ran %d times, want %d", starts, tt.wantStarts)
			}
			if starts > 0 && during != Scheduled {
				t.Fatalf("State during start hook = %v, want scheduled", during)
			}
			if got := tm.State(); got != tt.wantState {
				t.Fatalf("State = %v, want %v", got, tt.wantState)
			}
		})
	}
}

func TestTimerReschedulesAfterStartCancel(t *testing.T) {
	t.Parallel()
	e := singleEnv(t)
	var tm *Timer
	first := true
	tm = NewTimer(e.s, func() {}, WithStart(func() {
		if first {
			first = false
			tm.Cancel()
		}
	}))
	t.Cleanup(tm.Cancel)

	if _, err := tm.RunTimerAsync(time.Hour, time.Hour); !errors.Is(err, ErrStartCancelled) {
		t.Fatalf("first err = %v, want ErrStartCancelled", err)
	}
	if _, err := tm.RunTimerAsync(time.Hour, time.Hour); err != nil {
		t.Fatalf("second RunTimerAsync: %v", err)
	}
	if tm.State() != Scheduled {
		t.Fatal("not scheduled after retry")
	}
}
