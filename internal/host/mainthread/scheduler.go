package mainthread

import (
	"sync/atomic"

	"regionsched/internal/host"
	"regionsched/internal/host/tickloop"
)

type scheduler Server

func (s *scheduler) srv() *Server { return (*Server)(s) }

func (s *scheduler) RunTask(fn func()) host.GlobalTask {
	return s.RunTaskLater(fn, 1)
}

func (s *scheduler) RunTaskLater(fn func(), delay int64) host.GlobalTask {
	id := s.ids.Add(1)
	e := s.loop.Schedule(func(*tickloop.Entry) { fn() }, delay, 0)
	return loopTask{id: id, sync: true, e: e}
}

func (s *scheduler) RunTaskTimer(fn func(host.GlobalTask), delay, period int64) host.GlobalTask {
	if period < 1 {
		period = 1
	}
	id := s.ids.Add(1)
	e := s.loop.Schedule(func(e *tickloop.Entry) {
		fn(loopTask{id: id, sync: true, e: e})
	}, delay, period)
	return loopTask{id: id, sync: true, e: e}
}

func (s *scheduler) RunTaskAsynchronously(fn func()) host.GlobalTask {
	t := &asyncTask{id: s.ids.Add(1)}
	s.srv().dispatch("async", func() {
		if t.cancelled.Load() {
			return
		}
		fn()
	})
	return t
}

// RunTaskTimerAsynchronously counts delay and period on the tick thread and
// hands each firing to the pool. Firings may overlap if fn outlasts period.
func (s *scheduler) RunTaskTimerAsynchronously(fn func(host.GlobalTask), delay, period int64) host.GlobalTask {
	if period < 1 {
		period = 1
	}
	id := s.ids.Add(1)
	e := s.loop.Schedule(func(e *tickloop.Entry) {
		t := loopTask{id: id, e: e}
		s.srv().dispatch("async.timer", func() {
			if e.IsCancelled() {
				return
			}
			fn(t)
		})
	}, delay, period)
	return loopTask{id: id, e: e}
}

// loopTask is a handle for work queued on the tick loop.
type loopTask struct {
	id   uint64
	sync bool
	e    *tickloop.Entry
}

func (t loopTask) TaskID() uint64    { return t.id }
func (t loopTask) IsSync() bool      { return t.sync }
func (t loopTask) Cancel()           { t.e.Cancel() }
func (t loopTask) IsCancelled() bool { return t.e.IsCancelled() }

// asyncTask is a handle for work handed straight to the pool.
type asyncTask struct {
	id        uint64
	cancelled atomic.Bool
}

func (t *asyncTask) TaskID() uint64    { return t.id }
func (t *asyncTask) IsSync() bool      { return false }
func (t *asyncTask) Cancel()           { t.cancelled.Store(true) }
func (t *asyncTask) IsCancelled() bool { return t.cancelled.Load() }
