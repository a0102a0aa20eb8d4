package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	logx "regionsched/pkg/logx"
)

type recordingSubmitter struct {
	mu     sync.Mutex
	global int
	async  int
}

func newRecorder() *recordingSubmitter { return &recordingSubmitter{} }

func (r *recordingSubmitter) Run(work func()) {
	r.mu.Lock()
	r.global++
	r.mu.Unlock()
	work()
}

func (r *recordingSubmitter) RunAsync(work func()) {
	r.mu.Lock()
	r.async++
	r.mu.Unlock()
	work()
}

func (r *recordingSubmitter) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.global, r.async
}

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in    string
		kind  SpecKind
		every time.Duration
		cron  string
		err   bool
	}{
		{in: "*/5 * * * *", kind: SpecCron, cron: "*/5 * * * *"},
		{in: "@hourly", kind: SpecCron, cron: "@hourly"},
		{in: "cron:0 3 * * *", kind: SpecCron, cron: "0 3 * * *"},
		{in: "90s", kind: SpecInterval, every: 90 * time.Second},
		{in: "01:30", kind: SpecInterval, every: 90 * time.Minute},
		{in: "every:2m", kind: SpecInterval, every: 2 * time.Minute},
		{in: "", err: true},
		{in: "-5s", err: true},
		{in: "01:75", err: true},
		{in: "soon", err: true},
	}
	for _, tt := range tests {
		got, err := ParseSchedule(tt.in)
		if tt.err {
			if !errors.Is(err, ErrInvalidSchedule) {
				t.Fatalf("ParseSchedule(%q) err = %v, want ErrInvalidSchedule", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseSchedule(%q): %v", tt.in, err)
		}
		if got.Kind != tt.kind || got.Every != tt.every || got.Cron != tt.cron {
			t.Fatalf("ParseSchedule(%q) = %+v", tt.in, got)
		}
	}
}

func TestAddValidates(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, newRecorder(), logx.Nop())
	if err := s.Add(" ", "1s", TargetGlobal, func() {}); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
	if err := s.Add("x", "1s", TargetGlobal, nil); !errors.Is(err, ErrNilJob) {
		t.Fatalf("err = %v, want ErrNilJob", err)
	}
	if err := s.Add("x", "61 * * * *", TargetGlobal, func() {}); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("err = %v, want ErrInvalidSchedule", err)
	}
	if err := s.AddDaily("x", "25:00", TargetGlobal, func() {}); !errors.Is(err, ErrInvalidSchedule) {
		t.Fatalf("err = %v, want ErrInvalidSchedule", err)
	}
}

func TestUpsertAndRemove(t *testing.T) {
	t.Parallel()
	s := New(Config{Enabled: true}, newRecorder(), logx.Nop())
	if err := s.Add("beat", "@every 1h", TargetGlobal, func() {}); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("beat", "@every 2h", TargetAsync, func() {}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddDaily("nightly", "03:15", TargetAsync, func() {}); err != nil {
		t.Fatal(err)
	}
	snap := s.Snapshot()
	if len(snap.Schedules) != 2 {
		t.Fatalf("schedules = %+v, want 2", snap.Schedules)
	}
	if snap.Schedules[0].Spec != "@every 2h" || snap.Schedules[0].Target != "async" {
		t.Fatalf("upsert kept old def: %+v", snap.Schedules[0])
	}
	if snap.Schedules[1].Spec != "15 3 * * *" {
		t.Fatalf("daily spec = %q", snap.Schedules[1].Spec)
	}
	if !s.Remove("beat") || s.Remove("beat") {
		t.Fatal("Remove should succeed once")
	}
}

func TestTriggersGoThroughSubmitter(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	s := New(Config{Enabled: true}, rec, logx.Nop())
	syncFired := make(chan struct{}, 8)
	asyncFired := make(chan struct{}, 8)
	if err := s.Add("sync", "@every 1s", TargetGlobal, func() { syncFired <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	if err := s.Add("async", "1s", TargetAsync, func() { asyncFired <- struct{}{} }); err != nil {
		t.Fatal(err)
	}
	s.Start(context.Background())
	t.Cleanup(func() { s.Stop(context.Background()) })
	if !s.Snapshot().Running {
		t.Fatal("not running after Start")
	}

	for _, ch := range []chan struct{}{syncFired, asyncFired} {
		select {
		case <-ch:
		case <-time.After(5 * time.Second):
			t.Fatal("schedule never triggered")
		}
	}
	syncN, asyncN := rec.counts()
	if syncN < 1 || asyncN < 1 {
		t.Fatalf("sync=%d async=%d", syncN, asyncN)
	}
}

func TestDisabledDoesNotStart(t *testing.T) {
	t.Parallel()
	s := New(Config{}, newRecorder(), logx.Nop())
	s.Start(context.Background())
	if s.Snapshot().Running {
		t.Fatal("disabled service started")
	}
	s.Stop(context.Background())
}

func TestStartupSpreadBounds(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	sched, jitter := withStartupSpread(10*time.Second, now, 3*time.Second)
	if jitter < 0 || jitter >= 3*time.Second {
		t.Fatalf("jitter = %v", jitter)
	}
	first := sched.Next(now)
	if want := now.Add(10*time.Second + jitter); !first.Equal(want) {
		t.Fatalf("first = %v, want %v", first, want)
	}
	if _, j := withStartupSpread(time.Second, now, 0); j != 0 {
		t.Fatalf("spread with max 0 = %v", j)
	}
}
