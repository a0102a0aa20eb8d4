package host

import (
	"sort"
	"sync"
)

// Capability markers a server may advertise.
const (
	// CapRegionizedServer marks a server that implements RegionizedServer.
	CapRegionizedServer = "threadedregions.RegionizedServer"
	// CapAsyncPool marks a server with a background pool for async work.
	CapAsyncPool = "scheduler.async"
)

// Capabilities answers "is this marker present" and lists what is.
type Capabilities interface {
	Has(marker string) bool
	List() []string
}

// CapabilitySet is a concurrency-safe set of markers.
type CapabilitySet struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

func NewCapabilitySet(markers ...string) *CapabilitySet {
	c := &CapabilitySet{set: make(map[string]struct{}, len(markers))}
	for _, m := range markers {
		c.Add(m)
	}
	return c
}

func (c *CapabilitySet) Add(marker string) {
	if marker == "" {
		return
	}
	c.mu.Lock()
	if c.set == nil {
		c.set = map[string]struct{}{}
	}
	c.set[marker] = struct{}{}
	c.mu.Unlock()
}

func (c *CapabilitySet) Has(marker string) bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.set[marker]
	return ok
}

// List returns the markers in sorted order.
func (c *CapabilitySet) List() []string {
	if c == nil {
		return nil
	}
	c.mu.RLock()
	out := make([]string, 0, len(c.set))
	for m := range c.set {
		out = append(out, m)
	}
	c.mu.RUnlock()
	sort.Strings(out)
	return out
}
