package host

import "testing"

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		repeating bool
		cancelMid bool
		wantMore  bool
		want      ExecutionState
	}{
		{name: "one-shot finishes", want: StateFinished},
		{name: "repeating returns to idle", repeating: true, wantMore: true, want: StateIdle},
		{name: "cancel mid-run one-shot", cancelMid: true, want: StateCancelled},
		{name: "cancel mid-run repeating", repeating: true, cancelMid: true, want: StateCancelled},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var s State
			if !s.Begin() {
				t.Fatal("Begin from idle failed")
			}
			if s.Begin() {
				t.Fatal("second Begin succeeded")
			}
			if tt.cancelMid {
				if !s.Cancel() {
					t.Fatal("Cancel while running failed")
				}
				if got := s.Load(); got != StateCancelledRunning {
					t.Fatalf("state = %v, want cancelled_running", got)
				}
			}
			if more := s.End(tt.repeating); more != tt.wantMore {
				t.Fatalf("End = %v, want %v", more, tt.wantMore)
			}
			if got := s.Load(); got != tt.want {
				t.Fatalf("state = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStateCancelIsTerminal(t *testing.T) {
	t.Parallel()
	var s State
	if !s.Cancel() {
		t.Fatal("Cancel from idle failed")
	}
	if s.Cancel() {
		t.Fatal("second Cancel reported a change")
	}
	if s.Begin() {
		t.Fatal("Begin after Cancel succeeded")
	}
	if !s.IsCancelled() {
		t.Fatal("IsCancelled = false")
	}
}
