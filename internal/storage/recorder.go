package storage

import (
	"context"
	"sync/atomic"
	"time"

	"regionsched/internal/eventbus"
	"regionsched/internal/schedule"
	"regionsched/internal/task/engine"
	logx "regionsched/pkg/logx"
)

// Recorder copies bus events into a Store.
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger

	written atomic.Uint64
	failed  atomic.Uint64
	warn    *logx.Throttled
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Recorder{store: store, bus: bus, log: log, warn: logx.NewThrottled(log, 30*time.Second, 1)}
}

// Run consumes events until ctx is done.
func (r *Recorder) Run(ctx context.Context) error {
	if r.store == nil || r.bus == nil {
		<-ctx.Done()
		return nil
	}
	ch, unsub := r.bus.Subscribe(1024)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			rec, keep := ToRecord(ev)
			if !keep {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := r.store.Append(wctx, rec)
			cancel()
			if err != nil {
				r.failed.Add(1)
				r.warn.Warn("history append failed", logx.String("kind", rec.Kind), logx.Err(err))
				continue
			}
			r.written.Add(1)
		}
	}
}

// Counts reports appended and failed writes.
func (r *Recorder) Counts() (written, failed uint64) {
	return r.written.Load(), r.failed.Load()
}

// ToRecord maps a bus event to a history row. Task starts are not kept.
func ToRecord(ev eventbus.Event) (Record, bool) {
	rec := Record{At: ev.Time, Kind: ev.Type}
	switch d := ev.Data.(type) {
	case schedule.Event:
		rec.Op, rec.Mode, rec.Entity, rec.Error = d.Op, d.Mode, d.Entity, d.Error
	case engine.TaskEvent:
		if ev.Type == eventbus.TypeTaskStarted {
			return Record{}, false
		}
		rec.Op, rec.TookMS, rec.Error = d.Name, d.Duration.Milliseconds(), d.Error
	default:
		return Record{}, false
	}
	return rec, true
}
