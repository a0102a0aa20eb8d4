package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage. Empty or "none" Driver disables it.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
	// MemoryLimit caps the memory driver; 0 means 4096 records.
	MemoryLimit int
}

// Record is one history row.
type Record struct {
	At   time.Time
	Kind string // eventbus type, e.g. "schedule.fired"
	// Op is the scheduling operation or async task name.
	Op     string
	Mode   string
	Entity string
	TookMS int64
	Error  string
}

// Summary counts records per Kind.
type Summary map[string]int64
