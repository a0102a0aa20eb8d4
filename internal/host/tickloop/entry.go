package tickloop

import "regionsched/internal/host"

// Entry is one scheduled unit in a Loop.
type Entry struct {
	id     uint64
	fn     func(*Entry)
	period int64

	// guarded by Loop.mu
	due   uint64
	seq   uint64
	index int

	state host.State
}

func (e *Entry) ID() uint64        { return e.id }
func (e *Entry) Period() int64     { return e.period }
func (e *Entry) IsRepeating() bool { return e.period > 0 }

func (e *Entry) ExecutionState() host.ExecutionState { return e.state.Load() }

// Cancel stops future firings. A firing already in progress completes.
// It reports whether this call changed the state.
func (e *Entry) Cancel() bool { return e.state.Cancel() }

func (e *Entry) IsCancelled() bool { return e.state.IsCancelled() }

type entryHeap []*Entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*Entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}
