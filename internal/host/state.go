package host

import "sync/atomic"

// State is an atomic ExecutionState with the transitions shared by every
// ScheduledTask implementation.
type State struct {
	v atomic.Int32
}

func (s *State) Load() ExecutionState { return ExecutionState(s.v.Load()) }

// Begin moves Idle to Running. False means the task is cancelled or already running.
func (s *State) Begin() bool {
	return s.v.CompareAndSwap(int32(StateIdle), int32(StateRunning))
}

// End settles a firing. For repeating tasks it returns to Idle and reports
// true; otherwise it moves to Finished. A cancel that arrived mid-run wins.
func (s *State) End(repeating bool) bool {
	if repeating {
		if s.v.CompareAndSwap(int32(StateRunning), int32(StateIdle)) {
			return true
		}
	} else if s.v.CompareAndSwap(int32(StateRunning), int32(StateFinished)) {
		return false
	}
	s.v.Store(int32(StateCancelled))
	return false
}

// Cancel stops future firings. It reports whether this call changed the state.
func (s *State) Cancel() bool {
	for {
		cur := s.Load()
		var next ExecutionState
		switch cur {
		case StateIdle:
			next = StateCancelled
		case StateRunning:
			next = StateCancelledRunning
		default:
			return false
		}
		if s.v.CompareAndSwap(int32(cur), int32(next)) {
			return true
		}
	}
}

func (s *State) IsCancelled() bool {
	cur := s.Load()
	return cur == StateCancelled || cur == StateCancelledRunning
}
