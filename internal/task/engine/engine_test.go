package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"regionsched/internal/eventbus"
	logx "regionsched/pkg/logx"
)

func startPool(t *testing.T, cfg Config, bus eventbus.Bus) *Service {
	t.Helper()
	s := New(cfg, logx.Nop(), bus)
	s.Start(context.Background())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func TestEnqueueRunsOffCaller(t *testing.T) {
	t.Parallel()
	s := startPool(t, Config{Workers: 2}, nil)

	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		if err := s.Go("job", wg.Done); err != nil {
			t.Fatalf("Go error: %v", err)
		}
	}
	waitTimeout(t, &wg)
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	t.Parallel()
	s := New(Config{}, logx.Nop(), nil)
	if err := s.Go("x", func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
	if err := s.Enqueue(Task{Name: "nil"}); !errors.Is(err, ErrNoRun) {
		t.Fatalf("err = %v, want ErrNoRun", err)
	}
}

func TestQueueFullDrops(t *testing.T) {
	t.Parallel()
	s := startPool(t, Config{Workers: 1, QueueSize: 1}, nil)
	block := make(chan struct{})
	started := make(chan struct{})
	_ = s.Go("blocker", func() {
		close(started)
		<-block
	})
	<-started
	defer close(block)

	if err := s.Go("queued", func() {}); err != nil {
		t.Fatalf("queued: %v", err)
	}
	if err := s.Go("dropped", func() {}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if got := s.Snapshot().DroppedQueueFull; got != 1 {
		t.Fatalf("DroppedQueueFull = %d, want 1", got)
	}
}

func TestDispatchSpillsWhenQueueFull(t *testing.T) {
	t.Parallel()
	s := startPool(t, Config{Workers: 1, QueueSize: 1}, nil)
	block := make(chan struct{})
	started := make(chan struct{})
	if err := s.Dispatch("blocker", func() {
		close(started)
		<-block
	}); err != nil {
		t.Fatalf("blocker: %v", err)
	}
	<-started

	const n = 5
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		if err := s.Dispatch("queued", wg.Done); err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
	}
	snap := s.Snapshot()
	if snap.Overflowed != n-1 || snap.OverflowLen != n-1 {
		t.Fatalf("overflowed=%d len=%d, want %d", snap.Overflowed, snap.OverflowLen, n-1)
	}
	if snap.DroppedQueueFull != 0 {
		t.Fatalf("DroppedQueueFull = %d, want 0", snap.DroppedQueueFull)
	}
	close(block)
	waitTimeout(t, &wg)
}

func TestDispatchRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		s    *Service
		fn   func()
		want error
	}{
		{name: "not started", s: New(Config{}, logx.Nop(), nil), fn: func() {}, want: ErrStopped},
		{name: "nil fn", s: startPool(t, Config{Workers: 1}, nil), want: ErrNoRun},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if err := tt.s.Dispatch("x", tt.fn); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPanicRecordedAsFailure(t *testing.T) {
	t.Parallel()
	bus := eventbus.New()
	events, unsub := bus.Subscribe(16)
	defer unsub()
	s := startPool(t, Config{Workers: 1}, bus)

	if err := s.Go("explodes", func() { panic("boom") }); err != nil {
		t.Fatalf("Go error: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type != eventbus.TypeTaskFailed {
				continue
			}
			te := ev.Data.(TaskEvent)
			if te.Name != "explodes" {
				t.Fatalf("Name = %q", te.Name)
			}
			if got := s.Snapshot().Failed; got != 1 {
				t.Fatalf("Failed = %d, want 1", got)
			}
			return
		case <-deadline:
			t.Fatal("no task.failed event")
		}
	}
}

func TestStopRejectsNewWork(t *testing.T) {
	t.Parallel()
	s := New(Config{Workers: 1}, logx.Nop(), nil)
	s.Start(context.Background())
	s.Stop(context.Background())
	if s.Running() {
		t.Fatal("pool still running after Stop")
	}
	if err := s.Go("late", func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("err = %v, want ErrStopped", err)
	}
}

func waitTimeout(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for work")
	}
}
