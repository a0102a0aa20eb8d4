package tickloop

import (
	"context"
	"reflect"
	"testing"
	"time"

	"regionsched/internal/host"
	logx "regionsched/pkg/logx"
)

func newTestLoop() *Loop {
	return New(Config{Name: "test"}, logx.Nop())
}

func TestScheduleFiresInDueThenSubmissionOrder(t *testing.T) {
	t.Parallel()
	l := newTestLoop()
	var got []string
	l.Schedule(func(*Entry) { got = append(got, "b2") }, 2, 0)
	l.Schedule(func(*Entry) { got = append(got, "a1") }, 1, 0)
	l.Schedule(func(*Entry) { got = append(got, "c2") }, 2, 0)
	l.Schedule(func(*Entry) { got = append(got, "d0") }, 0, 0)

	l.Tick()
	l.Tick()
	want := []string{"a1", "d0", "b2", "c2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestWorkScheduledDuringTickRunsNextTick(t *testing.T) {
	t.Parallel()
	l := newTestLoop()
	inner := 0
	l.Schedule(func(*Entry) {
		l.Schedule(func(*Entry) { inner++ }, 0, 0)
	}, 1, 0)

	l.Tick()
	if inner != 0 {
		t.Fatalf("inner ran in the same tick")
	}
	l.Tick()
	if inner != 1 {
		t.Fatalf("inner = %d, want 1", inner)
	}
}

func TestRepeatingEntryFiresEveryPeriodUntilCancelled(t *testing.T) {
	t.Parallel()
	l := newTestLoop()
	var ticks []uint64
	e := l.Schedule(func(*Entry) { ticks = append(ticks, l.CurrentTick()) }, 1, 3)

	for i := 0; i < 7; i++ {
		l.Tick()
	}
	if want := []uint64{1, 4, 7}; !reflect.DeepEqual(ticks, want) {
		t.Fatalf("fired at %v, want %v", ticks, want)
	}
	if !e.Cancel() {
		t.Fatal("Cancel should report a transition")
	}
	if e.Cancel() {
		t.Fatal("second Cancel should be a no-op")
	}
	for i := 0; i < 6; i++ {
		l.Tick()
	}
	if len(ticks) != 3 {
		t.Fatalf("fired after cancel: %v", ticks)
	}
	if !e.IsCancelled() {
		t.Fatal("IsCancelled = false after Cancel")
	}
}

func TestSelfCancelInsideFiringStopsSeries(t *testing.T) {
	t.Parallel()
	l := newTestLoop()
	runs := 0
	e := l.Schedule(func(e *Entry) {
		runs++
		if runs == 2 {
			e.Cancel()
		}
	}, 1, 1)

	for i := 0; i < 5; i++ {
		l.Tick()
	}
	if runs != 2 {
		t.Fatalf("runs = %d, want 2", runs)
	}
	if got := e.ExecutionState(); got != host.StateCancelled {
		t.Fatalf("state = %v, want cancelled", got)
	}
}

func TestOneShotFinishesNotCancelled(t *testing.T) {
	t.Parallel()
	l := newTestLoop()
	e := l.Schedule(func(*Entry) {}, 1, 0)
	l.Tick()
	if got := e.ExecutionState(); got != host.StateFinished {
		t.Fatalf("state = %v, want finished", got)
	}
	if e.IsCancelled() {
		t.Fatal("finished one-shot reported cancelled")
	}
	if e.Cancel() {
		t.Fatal("cancelling a finished entry should be a no-op")
	}
}

func TestPanicIsRecoveredAndLoopContinues(t *testing.T) {
	t.Parallel()
	l := newTestLoop()
	after := false
	l.Schedule(func(*Entry) { panic("boom") }, 1, 0)
	l.Schedule(func(*Entry) { after = true }, 1, 0)

	l.Tick()
	if !after {
		t.Fatal("entry after the panicking one did not run")
	}
	if got := l.Snapshot().Panics; got != 1 {
		t.Fatalf("Panics = %d, want 1", got)
	}
}

func TestRunDrivesTicksUntilCancelled(t *testing.T) {
	t.Parallel()
	l := New(Config{Name: "run", TickInterval: time.Millisecond}, logx.Nop())
	fired := make(chan struct{}, 1)
	l.Schedule(func(*Entry) { fired <- struct{}{} }, 3, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("entry never fired under Run")
	}
	if err := l.Run(ctx); err != ErrAlreadyRunning {
		t.Fatalf("second Run error = %v, want ErrAlreadyRunning", err)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run error: %v", err)
	}
}
