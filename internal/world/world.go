// Package world holds the minimal entity/location model the schedulers need:
// where something is, and whether it still exists.
package world

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Location is a point in a named world.
type Location struct {
	World string
	X     float64
	Y     float64
	Z     float64
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%.1f, %.1f, %.1f)", l.World, l.X, l.Y, l.Z)
}

// ChunkX is the 16-block column index containing X.
func (l Location) ChunkX() int32 { return int32(math.Floor(l.X)) >> 4 }

// ChunkZ is the 16-block column index containing Z.
func (l Location) ChunkZ() int32 { return int32(math.Floor(l.Z)) >> 4 }

// Add returns l offset by the given deltas.
func (l Location) Add(dx, dy, dz float64) Location {
	return Location{World: l.World, X: l.X + dx, Y: l.Y + dy, Z: l.Z + dz}
}

// Entity is a weak reference to something living in a world. Holders must
// tolerate it becoming invalid at any time.
type Entity interface {
	ID() uuid.UUID
	IsValid() bool
	Location() Location
}

// Actor is the in-memory Entity used by the bundled hosts.
type Actor struct {
	id    uuid.UUID
	kind  string
	valid atomic.Bool

	mu  sync.RWMutex
	loc Location
}

func (a *Actor) ID() uuid.UUID { return a.id }
func (a *Actor) Kind() string  { return a.kind }
func (a *Actor) IsValid() bool { return a.valid.Load() }

func (a *Actor) Location() Location {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loc
}

// Teleport moves the actor. It reports false if the actor is no longer valid.
func (a *Actor) Teleport(to Location) bool {
	if !a.IsValid() {
		return false
	}
	a.mu.Lock()
	a.loc = to
	a.mu.Unlock()
	return true
}

// Remove invalidates the actor. It reports whether this call did it.
func (a *Actor) Remove() bool { return a.valid.CompareAndSwap(true, false) }

// Registry tracks live actors.
type Registry struct {
	mu     sync.RWMutex
	actors map[uuid.UUID]*Actor
}

func NewRegistry() *Registry {
	return &Registry{actors: map[uuid.UUID]*Actor{}}
}

// Spawn creates a valid actor at loc.
func (r *Registry) Spawn(kind string, loc Location) *Actor {
	a := &Actor{id: uuid.New(), kind: kind, loc: loc}
	a.valid.Store(true)
	r.mu.Lock()
	r.actors[a.id] = a
	r.mu.Unlock()
	return a
}

// Get returns a live actor by id.
func (r *Registry) Get(id uuid.UUID) (*Actor, bool) {
	r.mu.RLock()
	a, ok := r.actors[id]
	r.mu.RUnlock()
	if !ok || !a.IsValid() {
		return nil, false
	}
	return a, true
}

// Remove invalidates and forgets the actor with id.
func (r *Registry) Remove(id uuid.UUID) bool {
	r.mu.Lock()
	a, ok := r.actors[id]
	delete(r.actors, id)
	r.mu.Unlock()
	return ok && a.Remove()
}

// Len returns the number of tracked actors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

// Each calls fn for every live actor. fn must not call back into r.
func (r *Registry) Each(fn func(a *Actor)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.actors {
		if a.IsValid() {
			fn(a)
		}
	}
}
