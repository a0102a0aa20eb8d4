// Package host describes the server the schedulers run against.
//
// Two server shapes exist:
//   - Server: one global tick thread with a single scheduler queue.
//   - RegionizedServer: many region threads, each owning a spatial partition,
//     plus a global region, per-entity schedulers and a wall-clock async pool.
//
// The contracts here are what the facade in internal/schedule consumes.
// Concrete servers live in internal/host/mainthread and internal/host/regionized.
package host
