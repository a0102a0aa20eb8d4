package regionized

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"regionsched/internal/host"
	"regionsched/internal/world"
	logx "regionsched/pkg/logx"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	return New(Config{Regions: 4, RegionShift: 1}, nil, logx.Nop())
}

// farApart returns two locations owned by different regions.
func farApart(t *testing.T, s *Server) (world.Location, world.Location) {
	t.Helper()
	a := world.Location{World: "w"}
	for x := 1; x < 1000; x++ {
		b := world.Location{World: "w", X: float64(x * 32)}
		if s.RegionOf(b) != s.RegionOf(a) {
			return a, b
		}
	}
	t.Fatal("no two regions found")
	return a, a
}

func TestCapabilities(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	if !s.Capabilities().Has(host.CapRegionizedServer) {
		t.Fatal("missing regionized capability")
	}
	var _ host.RegionizedServer = s
}

func TestRegionOfGroupsChunks(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	// RegionShift 1 puts chunks 0 and 1 (blocks 0..31) in one region.
	a := world.Location{World: "w", X: 0, Z: 0}
	b := world.Location{World: "w", X: 31.9, Z: 31.9}
	if s.RegionOf(a) != s.RegionOf(b) {
		t.Fatalf("RegionOf(%v)=%d RegionOf(%v)=%d", a, s.RegionOf(a), b, s.RegionOf(b))
	}
	if got := s.RegionOf(a); got < 0 || got >= 4 {
		t.Fatalf("RegionOf = %d, out of range", got)
	}
}

func TestLegacySchedulerPanics(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrLegacyScheduler) {
			t.Fatalf("recover = %v, want ErrLegacyScheduler", r)
		}
	}()
	s.Scheduler().RunTask(func() {})
}

func TestGlobalAndRegionSchedulers(t *testing.T) {
	t.Parallel()
	s := newServer(t)

	var global, region atomic.Int32
	s.GlobalRegionScheduler().Run(func(host.ScheduledTask) { global.Add(1) })
	task := s.RegionScheduler().RunAtFixedRate(world.Location{World: "w", X: 100}, func(st host.ScheduledTask) {
		if region.Add(1) == 3 {
			st.Cancel()
		}
	}, 1, 1)

	for i := 0; i < 6; i++ {
		s.TickAll()
	}
	if got := global.Load(); got != 1 {
		t.Fatalf("global fired %d times, want 1", got)
	}
	if got := region.Load(); got != 3 {
		t.Fatalf("region fired %d times, want 3", got)
	}
	if !task.IsRepeating() || task.ExecutionState() != host.StateCancelled {
		t.Fatalf("repeating=%v state=%v", task.IsRepeating(), task.ExecutionState())
	}
}

func TestEntityTaskRetiresEachFiringUntilCancelled(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	reg := world.NewRegistry()
	a := reg.Spawn("item", world.Location{World: "w"})

	var runs, retired atomic.Int32
	task := s.EntityScheduler(a).RunAtFixedRate(func(host.ScheduledTask) { runs.Add(1) }, func() { retired.Add(1) }, 1, 1)
	if task == nil {
		t.Fatal("task nil for a valid entity")
	}

	s.TickAll()
	s.TickAll()
	if got := runs.Load(); got != 2 {
		t.Fatalf("runs = %d, want 2", got)
	}
	reg.Remove(a.ID())
	for i := 0; i < 4; i++ {
		s.TickAll()
	}
	if got := runs.Load(); got != 2 {
		t.Fatalf("runs after removal = %d, want 2", got)
	}
	if got := retired.Load(); got != 4 {
		t.Fatalf("retired = %d, want one per firing", got)
	}
	if task.IsCancelled() || task.ExecutionState() != host.StateIdle {
		t.Fatalf("retirement ended the series: state=%v", task.ExecutionState())
	}

	task.Cancel()
	s.TickAll()
	s.TickAll()
	if got := retired.Load(); got != 4 {
		t.Fatalf("retired after cancel = %d", got)
	}
}

func TestEntityTaskOneShotRetires(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	reg := world.NewRegistry()
	a := reg.Spawn("item", world.Location{World: "w"})

	var runs, retired atomic.Int32
	task := s.EntityScheduler(a).RunDelayed(func(host.ScheduledTask) { runs.Add(1) }, func() { retired.Add(1) }, 2)
	reg.Remove(a.ID())
	for i := 0; i < 4; i++ {
		s.TickAll()
	}
	if runs.Load() != 0 || retired.Load() != 1 {
		t.Fatalf("runs=%d retired=%d", runs.Load(), retired.Load())
	}
	if task.ExecutionState() != host.StateFinished {
		t.Fatalf("state = %v, want finished", task.ExecutionState())
	}
}

func TestEntityTaskRetiredCallbackCancels(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	reg := world.NewRegistry()
	b := reg.Spawn("item", world.Location{World: "w"})
	var retired atomic.Int32
	var task host.ScheduledTask
	task = s.EntityScheduler(b).RunAtFixedRate(func(host.ScheduledTask) {}, func() {
		retired.Add(1)
		task.Cancel()
	}, 1, 1)
	reg.Remove(b.ID())
	for i := 0; i < 4; i++ {
		s.TickAll()
	}
	if got := retired.Load(); got != 1 {
		t.Fatalf("retired = %d, want 1", got)
	}
	if task.ExecutionState() != host.StateCancelled {
		t.Fatalf("state = %v, want cancelled", task.ExecutionState())
	}
}

func TestEntitySchedulerRejectsRetiredEntity(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	reg := world.NewRegistry()
	a := reg.Spawn("item", world.Location{World: "w"})
	reg.Remove(a.ID())

	called := false
	if task := s.EntityScheduler(a).Run(func(host.ScheduledTask) {}, func() { called = true }); task != nil {
		t.Fatal("expected nil task for a retired entity")
	}
	if called {
		t.Fatal("host must not run retired on rejection")
	}
}

func TestEntityTaskFollowsEntity(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	from, to := farApart(t, s)
	reg := world.NewRegistry()
	a := reg.Spawn("player", from)

	var runs atomic.Int32
	s.EntityScheduler(a).RunDelayed(func(host.ScheduledTask) { runs.Add(1) }, nil, 2)
	s.TickAll()
	a.Teleport(to)
	for i := 0; i < 4; i++ {
		s.TickAll()
	}
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
}

func TestEntityTaskCancel(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	reg := world.NewRegistry()
	a := reg.Spawn("item", world.Location{World: "w"})

	var runs, retired atomic.Int32
	task := s.EntityScheduler(a).RunDelayed(func(host.ScheduledTask) { runs.Add(1) }, func() { retired.Add(1) }, 2)
	task.Cancel()
	reg.Remove(a.ID())
	for i := 0; i < 4; i++ {
		s.TickAll()
	}
	if runs.Load() != 0 || retired.Load() != 0 {
		t.Fatalf("runs=%d retired=%d after cancel", runs.Load(), retired.Load())
	}
}

func TestAsyncScheduler(t *testing.T) {
	t.Parallel()
	s := newServer(t)
	async := s.AsyncScheduler()

	once := make(chan struct{})
	async.RunDelayed(func(host.ScheduledTask) { close(once) }, 5*time.Millisecond)
	select {
	case <-once:
	case <-time.After(2 * time.Second):
		t.Fatal("delayed async task never ran")
	}

	var n atomic.Int32
	done := make(chan struct{})
	task := async.RunAtFixedRate(func(st host.ScheduledTask) {
		if n.Add(1) == 3 {
			st.Cancel()
			close(done)
		}
	}, 0, 5*time.Millisecond)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fixed-rate async task did not fire three times")
	}
	time.Sleep(30 * time.Millisecond)
	if got := n.Load(); got != 3 {
		t.Fatalf("fired %d times, want 3", got)
	}
	if !task.IsCancelled() {
		t.Fatal("task not cancelled")
	}
}
