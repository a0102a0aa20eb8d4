package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"regionsched/internal/eventbus"
	rtsup "regionsched/internal/runtime/supervisor"
	logx "regionsched/pkg/logx"
)

const tracerName = "regionsched/internal/task/engine"

// Service is a fixed-size worker pool fed by a bounded queue.
//
// Work runs unordered relative to everything else; callers that need ordering
// must serialize themselves.
type Service struct {
	mu  sync.Mutex
	cfg Config
	log logx.Logger
	bus eventbus.Bus

	tracer trace.Tracer
	drops  *logx.Throttled
	spills *logx.Throttled

	q        chan queuedTask
	sup      *rtsup.Supervisor
	stopCh   chan struct{}
	stopDone chan struct{}

	inFlight atomic.Int32

	hmu     sync.Mutex
	history []HistoryItem

	// overflow holds Dispatch work that found the queue full.
	omu      sync.Mutex
	overflow []queuedTask

	idSeq            atomic.Uint64
	executed         atomic.Uint64
	failed           atomic.Uint64
	droppedQueueFull atomic.Uint64
	overflowed       atomic.Uint64
}

type queuedTask struct {
	task       Task
	enqueuedAt time.Time
	timeout    time.Duration
}

func New(cfg Config, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg.withDefaults(),
		log:    log,
		bus:    bus,
		tracer: otel.Tracer(tracerName),
		drops:  logx.NewThrottled(log, 5*time.Second, 1),
		spills: logx.NewThrottled(log, 5*time.Second, 1),
	}
}

// Start launches the workers. It is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh != nil {
		done := s.stopDone
		s.mu.Unlock()
		if done == nil {
			return
		}
		// Stopping: wait for it to finish, then start fresh.
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
		if s.stopCh != nil {
			s.mu.Unlock()
			return
		}
	}

	cfg := s.cfg
	s.q = make(chan queuedTask, cfg.QueueSize)
	s.stopCh = make(chan struct{})
	s.stopDone = nil
	s.sup = rtsup.NewSupervisor(ctx,
		rtsup.WithLogger(s.log),
		rtsup.WithCancelOnError(false),
	)
	stopCh, queue, sup := s.stopCh, s.q, s.sup
	s.mu.Unlock()

	for i := 0; i < cfg.Workers; i++ {
		idx := i
		sup.GoRestart(fmt.Sprintf("async.worker.%d", idx), func(c context.Context) error {
			s.worker(c, stopCh, queue)
			select {
			case <-stopCh:
				return context.Canceled
			default:
			}
			if c.Err() != nil {
				return c.Err()
			}
			return errors.New("worker exited unexpectedly")
		})
	}

	s.log.Info("async pool started", logx.Int("workers", cfg.Workers), logx.Int("queue", cap(queue)))
}

// Stop stops the workers. Queued work that has not started is discarded.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return
	}
	if s.stopDone != nil {
		done := s.stopDone
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return
	}

	done := make(chan struct{})
	s.stopDone = done
	close(s.stopCh)
	sup := s.sup
	s.mu.Unlock()

	sup.Cancel()
	go func() {
		_ = sup.Wait(context.Background())
		s.omu.Lock()
		s.overflow = nil
		s.omu.Unlock()
		s.mu.Lock()
		s.q = nil
		s.stopCh = nil
		s.stopDone = nil
		s.sup = nil
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("async pool stopped")
	case <-ctx.Done():
		s.log.Warn("async pool stop timed out", logx.Err(ctx.Err()))
	}
}

// Running reports whether the workers are accepting work.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopCh != nil && s.stopDone == nil
}

// Enqueue queues t without blocking. If the queue is full, t is dropped.
func (s *Service) Enqueue(t Task) error {
	return s.enqueue(context.Background(), t, false, false)
}

// Submit queues t and blocks until it is accepted, ctx is done, or the pool stops.
func (s *Service) Submit(ctx context.Context, t Task) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.enqueue(ctx, t, true, false)
}

// Go is Enqueue for a plain func; name is used in logs and history.
func (s *Service) Go(name string, fn func()) error {
	if fn == nil {
		return ErrNoRun
	}
	return s.Enqueue(Task{Name: name, Run: func(context.Context) error {
		fn()
		return nil
	}})
}

// Dispatch is Go for work that must not be lost. It never blocks: when the
// queue is full, fn waits in an unbounded overflow list that workers drain
// ahead of the queue. It fails only when the pool is not running.
func (s *Service) Dispatch(name string, fn func()) error {
	if fn == nil {
		return ErrNoRun
	}
	return s.enqueue(context.Background(), Task{Name: name, Run: func(context.Context) error {
		fn()
		return nil
	}}, false, true)
}

func (s *Service) enqueue(ctx context.Context, t Task, block, spill bool) error {
	if t.Run == nil {
		return ErrNoRun
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		t.Name = "async"
	}
	now := time.Now()
	if strings.TrimSpace(t.ID) == "" {
		t.ID = s.newTaskID(now)
	}

	s.mu.Lock()
	cfg := s.cfg
	q := s.q
	stopCh := s.stopCh
	stopping := s.stopDone != nil
	s.mu.Unlock()

	if q == nil || stopCh == nil {
		return ErrStopped
	}
	if stopping {
		return ErrStopping
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = cfg.DefaultTimeout
	}
	qt := queuedTask{task: t, enqueuedAt: now, timeout: timeout}

	if !block {
		select {
		case q <- qt:
			return nil
		default:
		}
		if spill {
			s.spill(qt, q)
			return nil
		}
		s.onQueueFullDropped(now, t, q)
		return ErrQueueFull
	}

	select {
	case q <- qt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-stopCh:
		return ErrStopping
	}
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	cfg := s.cfg
	q := s.q
	running := s.stopCh != nil && s.stopDone == nil
	s.mu.Unlock()

	ql, qc := 0, 0
	if q != nil {
		ql, qc = len(q), cap(q)
	}

	s.hmu.Lock()
	h := make([]HistoryItem, len(s.history))
	copy(h, s.history)
	s.hmu.Unlock()

	s.omu.Lock()
	ol := len(s.overflow)
	s.omu.Unlock()

	return Snapshot{
		Running:          running,
		Workers:          cfg.Workers,
		InFlight:         int(s.inFlight.Load()),
		QueueLen:         ql,
		QueueCap:         qc,
		Executed:         s.executed.Load(),
		Failed:           s.failed.Load(),
		DroppedQueueFull: s.droppedQueueFull.Load(),
		Overflowed:       s.overflowed.Load(),
		OverflowLen:      ol,
		History:          h,
	}
}

func (s *Service) newTaskID(now time.Time) string {
	seq := s.idSeq.Add(1)
	return fmt.Sprintf("tsk-%x-%x", now.UnixNano(), seq)
}

func (s *Service) onQueueFullDropped(now time.Time, t Task, q chan queuedTask) {
	s.droppedQueueFull.Add(1)
	eventbus.Publish(s.bus, eventbus.TypeTaskDropped, TaskEvent{ID: t.ID, Name: t.Name, Started: now, Error: "queue_full"})
	s.drops.Warn(
		"async task dropped: queue full",
		logx.String("task", t.Name),
		logx.String("id", t.ID),
		logx.Int("queue_len", len(q)),
		logx.Int("queue_cap", cap(q)),
		logx.Uint64("dropped_queue_full", s.droppedQueueFull.Load()),
	)
}

// spill parks qt in the overflow, then moves whatever fits back into q so
// an idle worker blocked on q cannot miss it.
func (s *Service) spill(qt queuedTask, q chan queuedTask) {
	s.omu.Lock()
	s.overflow = append(s.overflow, qt)
	for len(s.overflow) > 0 {
		select {
		case q <- s.overflow[0]:
			s.overflow[0] = queuedTask{}
			s.overflow = s.overflow[1:]
			continue
		default:
		}
		break
	}
	n := len(s.overflow)
	s.omu.Unlock()
	s.overflowed.Add(1)
	s.spills.Warn("async queue full: holding work in overflow", logx.String("task", qt.task.Name), logx.Int("overflow_len", n))
}

func (s *Service) popOverflow() (queuedTask, bool) {
	s.omu.Lock()
	defer s.omu.Unlock()
	if len(s.overflow) == 0 {
		return queuedTask{}, false
	}
	qt := s.overflow[0]
	s.overflow[0] = queuedTask{}
	s.overflow = s.overflow[1:]
	return qt, true
}

func (s *Service) record(item HistoryItem) {
	s.mu.Lock()
	size := s.cfg.HistorySize
	s.mu.Unlock()

	s.hmu.Lock()
	s.history = append(s.history, item)
	if len(s.history) > size {
		s.history = s.history[len(s.history)-size:]
	}
	s.hmu.Unlock()
}
