package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"regionsched/internal/eventbus"
	logx "regionsched/pkg/logx"
)

func (s *Service) worker(ctx context.Context, stopCh <-chan struct{}, queue chan queuedTask) {
	for {
		// Fast-exit check so a closed stopCh wins over queued work.
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		default:
		}

		if qt, ok := s.popOverflow(); ok {
			s.inFlight.Add(1)
			s.execOne(ctx, qt)
			s.inFlight.Add(-1)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case t, ok := <-queue:
			if !ok {
				return
			}
			s.inFlight.Add(1)
			s.execOne(ctx, t)
			s.inFlight.Add(-1)
		}
	}
}

func (s *Service) execOne(ctx context.Context, qt queuedTask) {
	start := time.Now()
	queueDelay := start.Sub(qt.enqueuedAt)
	if queueDelay < 0 {
		queueDelay = 0
	}

	ctx, span := s.tracer.Start(ctx, "async "+qt.task.Name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("task.id", qt.task.ID),
			attribute.Int64("task.queue_delay_ms", queueDelay.Milliseconds()),
		),
	)
	defer span.End()

	eventbus.Publish(s.bus, eventbus.TypeTaskStarted, TaskEvent{ID: qt.task.ID, Name: qt.task.Name, Started: start, QueueDelay: queueDelay})

	runCtx := ctx
	var cancel context.CancelFunc
	if qt.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, qt.timeout)
	}
	var err error
	// A panicking task must not take the worker down with it.
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.log.Error("async task panicked", logx.String("task", qt.task.Name), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			}
		}()
		err = qt.task.Run(runCtx)
	}()
	if cancel != nil {
		cancel()
	}

	dur := time.Since(start)
	s.executed.Add(1)
	item := HistoryItem{ID: qt.task.ID, Name: qt.task.Name, Started: start, QueueDelay: queueDelay, Duration: dur}
	if err != nil {
		s.failed.Add(1)
		item.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, item.Error)
		s.log.Warn("async task failed", logx.String("task", qt.task.Name), logx.Err(err), logx.Duration("queue_delay", queueDelay), logx.Duration("dur", dur))
		eventbus.Publish(s.bus, eventbus.TypeTaskFailed, TaskEvent{ID: qt.task.ID, Name: qt.task.Name, Started: start, QueueDelay: queueDelay, Duration: dur, Error: item.Error})
	} else {
		s.log.Trace("async task completed", logx.String("task", qt.task.Name), logx.Duration("queue_delay", queueDelay), logx.Duration("dur", dur))
		eventbus.Publish(s.bus, eventbus.TypeTaskFinished, TaskEvent{ID: qt.task.ID, Name: qt.task.Name, Started: start, QueueDelay: queueDelay, Duration: dur})
	}
	s.record(item)
}
