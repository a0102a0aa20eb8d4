// Package storage keeps a durable history of scheduling lifecycle events
// and async task outcomes.
//
// Drivers:
//   - "sqlite": a SQLite database file (modernc.org/sqlite, no cgo)
//   - "memory": a bounded in-process ring, lost on restart
package storage
