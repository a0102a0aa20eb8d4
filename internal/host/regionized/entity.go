package regionized

import (
	"sync"

	"regionsched/internal/host"
	"regionsched/internal/host/tickloop"
	"regionsched/internal/world"
	logx "regionsched/pkg/logx"
)

type entityScheduler struct {
	srv *Server
	ent world.Entity
}

func (es *entityScheduler) Run(fn func(host.ScheduledTask), retired func()) host.ScheduledTask {
	return es.schedule(fn, retired, 1, 0)
}

func (es *entityScheduler) RunDelayed(fn func(host.ScheduledTask), retired func(), delay int64) host.ScheduledTask {
	return es.schedule(fn, retired, delay, 0)
}

func (es *entityScheduler) RunAtFixedRate(fn func(host.ScheduledTask), retired func(), delay, period int64) host.ScheduledTask {
	return es.schedule(fn, retired, delay, clampPeriod(period))
}

func (es *entityScheduler) schedule(fn func(host.ScheduledTask), retired func(), delay, period int64) host.ScheduledTask {
	if es.ent == nil || !es.ent.IsValid() {
		return nil
	}
	t := &entityTask{srv: es.srv, ent: es.ent, fn: fn, retired: retired, period: period}
	t.submit(delay)
	return t
}

// entityTask follows its entity between regions. Every firing is a one-shot
// loop entry on the region that owned the entity when it was queued; at
// firing time the task hands off to the new owner, retires, or runs.
type entityTask struct {
	srv     *Server
	ent     world.Entity
	fn      func(host.ScheduledTask)
	retired func()
	period  int64

	state host.State

	mu      sync.Mutex
	current *tickloop.Entry
}

func (t *entityTask) Cancel() {
	if !t.state.Cancel() {
		return
	}
	t.mu.Lock()
	e := t.current
	t.mu.Unlock()
	if e != nil {
		e.Cancel()
	}
}

func (t *entityTask) IsCancelled() bool                   { return t.state.IsCancelled() }
func (t *entityTask) ExecutionState() host.ExecutionState { return t.state.Load() }
func (t *entityTask) IsRepeating() bool                   { return t.period > 0 }

func (t *entityTask) submit(delay int64) {
	idx, l := t.srv.regionFor(t.ent.Location())
	e := l.Schedule(func(*tickloop.Entry) { t.fire(idx) }, delay, 0)
	t.mu.Lock()
	t.current = e
	t.mu.Unlock()
	// A Cancel that raced the store above saw the previous entry.
	if t.state.IsCancelled() {
		e.Cancel()
	}
}

func (t *entityTask) fire(owner int) {
	if t.state.Load() != host.StateIdle {
		return
	}
	valid := t.ent.IsValid()
	if now := t.srv.RegionOf(t.ent.Location()); valid && now != owner {
		t.srv.log.Trace("entity task handoff", logx.String("entity", t.ent.ID().String()), logx.Int("from", owner), logx.Int("to", now))
		t.submit(1)
		return
	}
	if !t.state.Begin() {
		return
	}
	more := false
	defer func() {
		if more {
			t.submit(t.period)
		}
	}()
	defer func() { more = t.state.End(t.period > 0) }()
	if !valid {
		t.retire()
		return
	}
	t.fn(t)
}

// retire stands in for one firing. A repeating task stays scheduled; the
// retired callback may cancel it.
func (t *entityTask) retire() {
	t.srv.log.Trace("entity task retired", logx.String("entity", t.ent.ID().String()))
	if t.retired != nil {
		t.retired()
	}
}
