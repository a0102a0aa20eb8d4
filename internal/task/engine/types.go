package engine

import (
	"context"
	"time"
)

// Config controls the background pool that runs async work.
type Config struct {
	Workers   int
	QueueSize int

	// DefaultTimeout bounds the context handed to Task.Run when Task.Timeout is 0.
	// 0 disables it. Work is never interrupted, the context is only a hint.
	DefaultTimeout time.Duration

	HistorySize int
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	return c
}

type HistoryItem struct {
	ID         string
	Name       string
	Started    time.Time
	QueueDelay time.Duration
	Duration   time.Duration
	Error      string
}

// TaskEvent is emitted on the event bus for task lifecycle events.
type TaskEvent struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Started    time.Time     `json:"started"`
	QueueDelay time.Duration `json:"queue_delay"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

// Task is a unit of work executed by the pool.
type Task struct {
	ID      string
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Snapshot is a lightweight view for diagnostics.
type Snapshot struct {
	Running  bool
	Workers  int
	InFlight int
	QueueLen int
	QueueCap int

	Executed         uint64
	Failed           uint64
	DroppedQueueFull uint64
	// Overflowed counts Dispatch calls that found the queue full.
	Overflowed  uint64
	OverflowLen int

	History []HistoryItem
}
