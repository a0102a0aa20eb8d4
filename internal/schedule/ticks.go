package schedule

import (
	"time"

	"regionsched/internal/host"
)

// Ticks converts d to whole host ticks, truncating: 120ms is 2 ticks.
func Ticks(d time.Duration) int64 {
	return int64(d / host.TickDuration)
}

// MillisToTicks is Ticks for a millisecond count.
func MillisToTicks(ms int64) int64 {
	return Ticks(time.Duration(ms) * time.Millisecond)
}
