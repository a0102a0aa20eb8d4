package storage

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu    sync.Mutex
	limit int
	recs  []Record
}

func newMemory(limit int) *memoryStore {
	if limit <= 0 {
		limit = 4096
	}
	return &memoryStore{limit: limit}
}

func (m *memoryStore) Append(_ context.Context, r Record) error {
	if r.At.IsZero() {
		r.At = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recs) >= m.limit {
		copy(m.recs, m.recs[1:])
		m.recs = m.recs[:len(m.recs)-1]
	}
	m.recs = append(m.recs, r)
	return nil
}

func (m *memoryStore) Recent(_ context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := min(limit, len(m.recs))
	out := make([]Record, 0, n)
	for i := len(m.recs) - 1; i >= len(m.recs)-n; i-- {
		out = append(out, m.recs[i])
	}
	return out, nil
}

func (m *memoryStore) Summary(context.Context) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := Summary{}
	for _, r := range m.recs {
		out[r.Kind]++
	}
	return out, nil
}

func (m *memoryStore) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.recs[:0]
	for _, r := range m.recs {
		if !r.At.Before(before) {
			kept = append(kept, r)
		}
	}
	n := int64(len(m.recs) - len(kept))
	m.recs = kept
	return n, nil
}

func (m *memoryStore) Close() error { return nil }
