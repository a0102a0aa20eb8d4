package schedule

import (
	"fmt"
	"time"

	"regionsched/internal/eventbus"
	"regionsched/internal/world"
	logx "regionsched/pkg/logx"
)

// Event is the payload of schedule.* bus events.
type Event struct {
	Op     string `json:"op"`
	Mode   string `json:"mode"`
	Entity string `json:"entity,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Scheduler is the facade. Calls never block: they queue work and return.
//
// Delays and periods are host ticks except for RunAsyncTimer, which takes
// wall-clock durations. Calls without a delay return no Task.
type Scheduler struct {
	b    Backend
	mode Mode
	log  logx.Logger
	bus  eventbus.Bus
}

func New(b Backend, log logx.Logger, bus eventbus.Bus) *Scheduler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scheduler{
		b:    b,
		mode: b.Mode(),
		log:  log.With(logx.String("comp", "schedule"), logx.String("mode", b.Mode().String())),
		bus:  bus,
	}
}

func (s *Scheduler) Mode() Mode { return s.mode }

// ---- global ----

func (s *Scheduler) Run(work func()) {
	if work == nil {
		return
	}
	s.b.Run(s.fired("run", "", work))
}

func (s *Scheduler) RunLater(work func(), delay int64) (Task, error) {
	if err := s.check("run_later", work != nil, delay, 1); err != nil {
		return Task{}, err
	}
	return s.b.RunLater(s.fired("run_later", "", work), delay), nil
}

func (s *Scheduler) RunTimer(work func(Task), delay, period int64) (Task, error) {
	if err := s.check("run_timer", work != nil, delay, period); err != nil {
		return Task{}, err
	}
	return s.b.RunTimer(s.firedTask("run_timer", "", work), delay, period), nil
}

// RunAsync runs work on the background pool, unordered with everything else.
func (s *Scheduler) RunAsync(work func()) {
	if work == nil {
		return
	}
	s.b.RunAsync(s.fired("run_async", "", work))
}

// RunAsyncTimer repeats work on the background pool. On a tick-based host
// delay and period are truncated to whole ticks, and a period shorter than
// one tick is rejected.
func (s *Scheduler) RunAsyncTimer(work func(Task), delay, period time.Duration) (Task, error) {
	if err := s.check("run_async_timer", work != nil, int64(delay), int64(period)); err != nil {
		return Task{}, err
	}
	t, err := s.b.RunAsyncTimer(s.firedTask("run_async_timer", "", work), delay, period)
	if err != nil {
		s.reject("run_async_timer", "", err)
		return Task{}, err
	}
	return t, nil
}

// ---- entity ----

// RunEntity runs work on the thread owning e, or retired if e is no longer
// valid. A nil retired makes an invalid entity a no-op.
func (s *Scheduler) RunEntity(e world.Entity, work, retired func()) {
	if work == nil || e == nil {
		return
	}
	id := e.ID().String()
	s.b.RunEntity(e, s.fired("run_entity", id, work), s.retired("run_entity", id, retired))
}

func (s *Scheduler) RunEntityLater(e world.Entity, work, retired func(), delay int64) (Task, error) {
	if e == nil {
		return Task{}, s.reject("run_entity_later", "", ErrNilEntity)
	}
	if err := s.check("run_entity_later", work != nil, delay, 1); err != nil {
		return Task{}, err
	}
	id := e.ID().String()
	return s.b.RunEntityLater(e, s.fired("run_entity_later", id, work), s.retired("run_entity_later", id, retired), delay), nil
}

// RunEntityTimer repeats work while e is valid. A firing that finds e gone
// runs retired instead; the series keeps going until it is cancelled, from
// retired or elsewhere.
func (s *Scheduler) RunEntityTimer(e world.Entity, work func(Task), retired func(), delay, period int64) (Task, error) {
	if e == nil {
		return Task{}, s.reject("run_entity_timer", "", ErrNilEntity)
	}
	if err := s.check("run_entity_timer", work != nil, delay, period); err != nil {
		return Task{}, err
	}
	id := e.ID().String()
	return s.b.RunEntityTimer(e, s.firedTask("run_entity_timer", id, work), s.retired("run_entity_timer", id, retired), delay, period), nil
}

// RunEntityAsync runs work on the background pool. e is not checked.
func (s *Scheduler) RunEntityAsync(e world.Entity, work func()) {
	if work == nil {
		return
	}
	id := ""
	if e != nil {
		id = e.ID().String()
	}
	s.b.RunEntityAsync(e, s.fired("run_entity_async", id, work))
}

// ---- location ----

func (s *Scheduler) RunAt(loc world.Location, work func()) {
	if work == nil {
		return
	}
	s.b.RunAt(loc, s.fired("run_at", "", work))
}

func (s *Scheduler) RunAtLater(loc world.Location, work func(), delay int64) (Task, error) {
	if err := s.check("run_at_later", work != nil, delay, 1); err != nil {
		return Task{}, err
	}
	return s.b.RunAtLater(loc, s.fired("run_at_later", "", work), delay), nil
}

func (s *Scheduler) RunAtTimer(loc world.Location, work func(Task), delay, period int64) (Task, error) {
	if err := s.check("run_at_timer", work != nil, delay, period); err != nil {
		return Task{}, err
	}
	return s.b.RunAtTimer(loc, s.firedTask("run_at_timer", "", work), delay, period), nil
}

// ---- helpers ----

func (s *Scheduler) check(op string, hasWork bool, delay, period int64) error {
	switch {
	case !hasWork:
		return s.reject(op, "", ErrNilWork)
	case delay < 0:
		return s.reject(op, "", fmt.Errorf("%w: %d", ErrInvalidDelay, delay))
	case period <= 0:
		return s.reject(op, "", fmt.Errorf("%w: %d", ErrInvalidPeriod, period))
	}
	return nil
}

func (s *Scheduler) reject(op, entity string, err error) error {
	s.log.Debug("submission rejected", logx.String("op", op), logx.Err(err))
	eventbus.Publish(s.bus, eventbus.TypeScheduleRejected, Event{Op: op, Mode: s.mode.String(), Entity: entity, Error: err.Error()})
	return err
}

func (s *Scheduler) fired(op, entity string, work func()) func() {
	if s.bus == nil {
		return work
	}
	return func() {
		work()
		eventbus.Publish(s.bus, eventbus.TypeScheduleFired, Event{Op: op, Mode: s.mode.String(), Entity: entity})
	}
}

func (s *Scheduler) firedTask(op, entity string, work func(Task)) func(Task) {
	if s.bus == nil {
		return work
	}
	return func(t Task) {
		work(t)
		eventbus.Publish(s.bus, eventbus.TypeScheduleFired, Event{Op: op, Mode: s.mode.String(), Entity: entity})
	}
}

// retired keeps a nil callback nil when nobody is listening.
func (s *Scheduler) retired(op, entity string, fn func()) func() {
	if s.bus == nil {
		return fn
	}
	return func() {
		if fn != nil {
			fn()
		}
		s.log.Trace("entity work retired", logx.String("op", op), logx.String("entity", entity))
		eventbus.Publish(s.bus, eventbus.TypeScheduleRetired, Event{Op: op, Mode: s.mode.String(), Entity: entity})
	}
}
