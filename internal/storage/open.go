package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	logx "regionsched/pkg/logx"
)

// Store is the history API.
type Store interface {
	Append(ctx context.Context, r Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
	Summary(ctx context.Context) (Summary, error)
	// Prune drops records older than before and reports how many went.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) if storage
// is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver {
	case "memory":
		return newMemory(cfg.MemoryLimit), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}
