package host

import (
	"time"

	"regionsched/internal/world"
)

// TickDuration is the wall-clock length of one server tick (20 ticks per second).
const TickDuration = 50 * time.Millisecond

// ---- single global queue ----

// GlobalTask is a handle produced by the single global scheduler.
type GlobalTask interface {
	TaskID() uint64
	IsSync() bool
	Cancel()
	IsCancelled() bool
}

// GlobalScheduler is the single global queue. Delays and periods are in ticks.
// Sync work runs on the tick thread; async work runs on a background pool.
type GlobalScheduler interface {
	RunTask(fn func()) GlobalTask
	RunTaskLater(fn func(), delay int64) GlobalTask
	RunTaskTimer(fn func(GlobalTask), delay, period int64) GlobalTask
	RunTaskAsynchronously(fn func()) GlobalTask
	RunTaskTimerAsynchronously(fn func(GlobalTask), delay, period int64) GlobalTask
}

// ---- region-parallel primitives ----

// ExecutionState is the lifecycle of a ScheduledTask.
type ExecutionState int32

const (
	StateIdle ExecutionState = iota
	StateRunning
	StateFinished
	StateCancelled
	StateCancelledRunning
)

func (s ExecutionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateCancelled:
		return "cancelled"
	case StateCancelledRunning:
		return "cancelled_running"
	default:
		return "unknown"
	}
}

// ScheduledTask is a handle produced by region-parallel schedulers.
type ScheduledTask interface {
	Cancel()
	IsCancelled() bool
	ExecutionState() ExecutionState
	IsRepeating() bool
}

// GlobalRegionScheduler runs work on the global region thread. Ticks.
type GlobalRegionScheduler interface {
	Run(fn func(ScheduledTask)) ScheduledTask
	RunDelayed(fn func(ScheduledTask), delay int64) ScheduledTask
	RunAtFixedRate(fn func(ScheduledTask), delay, period int64) ScheduledTask
}

// RegionScheduler runs work on the thread owning the region containing a location. Ticks.
type RegionScheduler interface {
	Run(loc world.Location, fn func(ScheduledTask)) ScheduledTask
	RunDelayed(loc world.Location, fn func(ScheduledTask), delay int64) ScheduledTask
	RunAtFixedRate(loc world.Location, fn func(ScheduledTask), delay, period int64) ScheduledTask
}

// EntityScheduler runs work on whichever region currently owns an entity. Ticks.
//
// retired (optional) runs instead of fn when the entity stops being schedulable.
// A nil return means the entity was already retired and nothing was scheduled.
type EntityScheduler interface {
	Run(fn func(ScheduledTask), retired func()) ScheduledTask
	RunDelayed(fn func(ScheduledTask), retired func(), delay int64) ScheduledTask
	RunAtFixedRate(fn func(ScheduledTask), retired func(), delay, period int64) ScheduledTask
}

// AsyncScheduler runs work on a background pool, off every region thread.
// Delays and periods are wall-clock durations.
type AsyncScheduler interface {
	RunNow(fn func(ScheduledTask)) ScheduledTask
	RunDelayed(fn func(ScheduledTask), delay time.Duration) ScheduledTask
	RunAtFixedRate(fn func(ScheduledTask), delay, period time.Duration) ScheduledTask
}

// ---- servers ----

// Server is what every host provides.
type Server interface {
	Name() string
	Capabilities() Capabilities
	Scheduler() GlobalScheduler
}

// RegionizedServer is a Server whose world is split across region threads.
type RegionizedServer interface {
	Server
	GlobalRegionScheduler() GlobalRegionScheduler
	RegionScheduler() RegionScheduler
	AsyncScheduler() AsyncScheduler
	// EntityScheduler looks up the scheduler owned by e.
	EntityScheduler(e world.Entity) EntityScheduler
}
