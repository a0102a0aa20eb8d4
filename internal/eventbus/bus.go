package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published by the schedulers and the async pool.
const (
	TypeScheduleFired    = "schedule.fired"
	TypeScheduleRetired  = "schedule.retired"
	TypeScheduleRejected = "schedule.rejected"

	TypeTaskStarted  = "task.started"
	TypeTaskFinished = "task.finished"
	TypeTaskFailed   = "task.failed"
	TypeTaskDropped  = "task.dropped"
)

// Event is a lightweight, in-memory signal used to decouple components.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST use buffered channels.
//   - Slow subscribers may drop events (bounded backpressure).
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a simple in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Event
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Deliver under the read lock: unsubscribe takes the write lock before
	// closing, so a send can never race a close.
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}

// Publish is a nil-safe helper for optional buses.
func Publish(b Bus, typ string, data any) {
	if b == nil {
		return
	}
	b.Publish(Event{Type: typ, Time: time.Now(), Data: data})
}
