package regionized

import (
	"regionsched/internal/host"
	"regionsched/internal/host/tickloop"
	"regionsched/internal/world"
)

// entryTask adapts a loop entry to host.ScheduledTask.
type entryTask struct{ e *tickloop.Entry }

func (t entryTask) Cancel()                             { t.e.Cancel() }
func (t entryTask) IsCancelled() bool                   { return t.e.IsCancelled() }
func (t entryTask) ExecutionState() host.ExecutionState { return t.e.ExecutionState() }
func (t entryTask) IsRepeating() bool                   { return t.e.IsRepeating() }

func schedule(l *tickloop.Loop, fn func(host.ScheduledTask), delay, period int64) host.ScheduledTask {
	e := l.Schedule(func(e *tickloop.Entry) { fn(entryTask{e}) }, delay, period)
	return entryTask{e}
}

// Delays below one tick run on the next tick; periods below one tick are
// raised to one.
func clampPeriod(p int64) int64 {
	if p < 1 {
		return 1
	}
	return p
}

type globalScheduler struct{ s *Server }

func (g globalScheduler) Run(fn func(host.ScheduledTask)) host.ScheduledTask {
	return schedule(g.s.global, fn, 1, 0)
}

func (g globalScheduler) RunDelayed(fn func(host.ScheduledTask), delay int64) host.ScheduledTask {
	return schedule(g.s.global, fn, delay, 0)
}

func (g globalScheduler) RunAtFixedRate(fn func(host.ScheduledTask), delay, period int64) host.ScheduledTask {
	return schedule(g.s.global, fn, delay, clampPeriod(period))
}

type regionScheduler struct{ s *Server }

func (r regionScheduler) Run(loc world.Location, fn func(host.ScheduledTask)) host.ScheduledTask {
	_, l := r.s.regionFor(loc)
	return schedule(l, fn, 1, 0)
}

func (r regionScheduler) RunDelayed(loc world.Location, fn func(host.ScheduledTask), delay int64) host.ScheduledTask {
	_, l := r.s.regionFor(loc)
	return schedule(l, fn, delay, 0)
}

func (r regionScheduler) RunAtFixedRate(loc world.Location, fn func(host.ScheduledTask), delay, period int64) host.ScheduledTask {
	_, l := r.s.regionFor(loc)
	return schedule(l, fn, delay, clampPeriod(period))
}
