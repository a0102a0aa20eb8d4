package schedule

import "regionsched/internal/host"

// TaskKind names which native handle a Task wraps.
type TaskKind uint8

const (
	KindNone TaskKind = iota
	KindGlobal
	KindRegion
)

func (k TaskKind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindRegion:
		return "region"
	default:
		return "none"
	}
}

// Task is a cancellable reference to a submission. It wraps at most one
// native handle. The zero Task wraps none and reports itself cancelled.
//
// Cancel never interrupts a firing already in progress; it only prevents
// later ones. Both methods are safe from any goroutine.
type Task struct {
	n native
}

type native interface {
	kind() TaskKind
	cancel()
	cancelled() bool
}

type globalNative struct{ t host.GlobalTask }

func (g globalNative) kind() TaskKind  { return KindGlobal }
func (g globalNative) cancel()         { g.t.Cancel() }
func (g globalNative) cancelled() bool { return g.t.IsCancelled() }

type regionNative struct{ t host.ScheduledTask }

func (r regionNative) kind() TaskKind  { return KindRegion }
func (r regionNative) cancel()         { r.t.Cancel() }
func (r regionNative) cancelled() bool { return r.t.IsCancelled() }

// NoopTask is the handle returned when nothing was left to cancel.
func NoopTask() Task { return Task{} }

func fromGlobal(t host.GlobalTask) Task {
	if t == nil {
		return Task{}
	}
	return Task{n: globalNative{t}}
}

func fromRegion(t host.ScheduledTask) Task {
	if t == nil {
		return Task{}
	}
	return Task{n: regionNative{t}}
}

func (t Task) Kind() TaskKind {
	if t.n == nil {
		return KindNone
	}
	return t.n.kind()
}

// Cancel stops future firings. Calling it again has no effect.
func (t Task) Cancel() {
	if t.n != nil {
		t.n.cancel()
	}
}

func (t Task) IsCancelled() bool {
	if t.n == nil {
		return true
	}
	return t.n.cancelled()
}
