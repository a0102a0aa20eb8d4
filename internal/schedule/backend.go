package schedule

import (
	"fmt"
	"time"

	"regionsched/internal/host"
	"regionsched/internal/world"
)

// Backend carries submissions to one kind of host. Delays and periods are
// validated by the Scheduler before they reach a Backend, except for the
// tick conversion of async timers, which only a tick-based Backend can check.
type Backend interface {
	Mode() Mode

	Run(work func())
	RunLater(work func(), delay int64) Task
	RunTimer(work func(Task), delay, period int64) Task
	RunAsync(work func())
	RunAsyncTimer(work func(Task), delay, period time.Duration) (Task, error)

	RunEntity(e world.Entity, work, retired func())
	RunEntityLater(e world.Entity, work, retired func(), delay int64) Task
	RunEntityTimer(e world.Entity, work func(Task), retired func(), delay, period int64) Task
	RunEntityAsync(e world.Entity, work func())

	RunAt(loc world.Location, work func())
	RunAtLater(loc world.Location, work func(), delay int64) Task
	RunAtTimer(loc world.Location, work func(Task), delay, period int64) Task
}

// NewBackend builds the Backend for mode on srv.
func NewBackend(srv host.Server, mode Mode) (Backend, error) {
	switch mode {
	case GlobalSingleThread:
		return NewGlobalBackend(srv.Scheduler()), nil
	case RegionParallel:
		rs, ok := srv.(host.RegionizedServer)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotRegionized, srv.Name())
		}
		return NewRegionBackend(rs), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownMode, mode)
	}
}
