package schedule

import (
	"errors"
	"testing"
	"time"

	"regionsched/internal/host"
)

func TestDetect(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		caps host.Capabilities
		want Mode
	}{
		{name: "nil", caps: nil, want: GlobalSingleThread},
		{name: "empty", caps: host.NewCapabilitySet(), want: GlobalSingleThread},
		{name: "async only", caps: host.NewCapabilitySet(host.CapAsyncPool), want: GlobalSingleThread},
		{name: "regionized", caps: host.NewCapabilitySet(host.CapRegionizedServer), want: RegionParallel},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Detect(tt.caps); got != tt.want {
				t.Fatalf("Detect = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectorResolvesOnce(t *testing.T) {
	t.Parallel()
	var d Detector
	if got := d.Mode(host.NewCapabilitySet(host.CapRegionizedServer)); got != RegionParallel {
		t.Fatalf("first Mode = %v", got)
	}
	if got := d.Mode(host.NewCapabilitySet()); got != RegionParallel {
		t.Fatalf("second Mode = %v, want the memoized regions", got)
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]Mode{"single": GlobalSingleThread, " Regions ": RegionParallel, "regionized": RegionParallel} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("threads"); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("err = %v, want ErrUnknownMode", err)
	}
}

func TestTicksTruncate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{1000 * time.Millisecond, 20},
		{100 * time.Millisecond, 2},
		{120 * time.Millisecond, 2},
		{49 * time.Millisecond, 0},
		{50 * time.Millisecond, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := Ticks(tt.in); got != tt.want {
			t.Fatalf("Ticks(%v) = %d, want %d", tt.in, got, tt.want)
		}
		if got := MillisToTicks(tt.in.Milliseconds()); got != tt.want {
			t.Fatalf("MillisToTicks(%d) = %d, want %d", tt.in.Milliseconds(), got, tt.want)
		}
	}
}

func TestNoopTask(t *testing.T) {
	t.Parallel()
	var zero Task
	if !zero.IsCancelled() || !NoopTask().IsCancelled() {
		t.Fatal("no-op task must report cancelled")
	}
	zero.Cancel()
	zero.Cancel()
	if zero.Kind() != KindNone {
		t.Fatalf("Kind = %v, want none", zero.Kind())
	}
}
