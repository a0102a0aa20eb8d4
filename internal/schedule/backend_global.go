package schedule

import (
	"time"

	"regionsched/internal/host"
	"regionsched/internal/world"
)

// GlobalBackend collapses every affinity onto the one global queue. Entity
// work is re-checked against the entity before every firing.
type GlobalBackend struct {
	sched host.GlobalScheduler
}

func NewGlobalBackend(sched host.GlobalScheduler) *GlobalBackend {
	return &GlobalBackend{sched: sched}
}

func (b *GlobalBackend) Mode() Mode { return GlobalSingleThread }

func (b *GlobalBackend) Run(work func()) { b.sched.RunTask(work) }

func (b *GlobalBackend) RunLater(work func(), delay int64) Task {
	return fromGlobal(b.sched.RunTaskLater(work, delay))
}

func (b *GlobalBackend) RunTimer(work func(Task), delay, period int64) Task {
	return fromGlobal(b.sched.RunTaskTimer(func(gt host.GlobalTask) { work(fromGlobal(gt)) }, delay, period))
}

func (b *GlobalBackend) RunAsync(work func()) { b.sched.RunTaskAsynchronously(work) }

func (b *GlobalBackend) RunAsyncTimer(work func(Task), delay, period time.Duration) (Task, error) {
	periodTicks := Ticks(period)
	if periodTicks < 1 {
		return Task{}, ErrInvalidPeriod
	}
	gt := b.sched.RunTaskTimerAsynchronously(func(gt host.GlobalTask) { work(fromGlobal(gt)) }, Ticks(delay), periodTicks)
	return fromGlobal(gt), nil
}

// RunEntity checks e before queueing, then again when the work fires.
func (b *GlobalBackend) RunEntity(e world.Entity, work, retired func()) {
	if !e.IsValid() {
		if retired != nil {
			retired()
		}
		return
	}
	b.sched.RunTask(func() { invokeEntity(e, work, retired) })
}

func (b *GlobalBackend) RunEntityLater(e world.Entity, work, retired func(), delay int64) Task {
	return fromGlobal(b.sched.RunTaskLater(func() { invokeEntity(e, work, retired) }, delay))
}

func (b *GlobalBackend) RunEntityTimer(e world.Entity, work func(Task), retired func(), delay, period int64) Task {
	gt := b.sched.RunTaskTimer(func(gt host.GlobalTask) {
		invokeEntity(e, func() { work(fromGlobal(gt)) }, retired)
	}, delay, period)
	return fromGlobal(gt)
}

func (b *GlobalBackend) RunEntityAsync(_ world.Entity, work func()) { b.sched.RunTaskAsynchronously(work) }

func (b *GlobalBackend) RunAt(_ world.Location, work func()) { b.sched.RunTask(work) }

func (b *GlobalBackend) RunAtLater(_ world.Location, work func(), delay int64) Task {
	return b.RunLater(work, delay)
}

func (b *GlobalBackend) RunAtTimer(_ world.Location, work func(Task), delay, period int64) Task {
	return b.RunTimer(work, delay, period)
}
