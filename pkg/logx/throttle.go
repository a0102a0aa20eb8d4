package logx

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Throttled drops log lines above a fixed rate and reports how many were
// suppressed on the next line that gets through.
//
// Use it on paths that can fire every tick (loop overruns, queue-full drops).
type Throttled struct {
	log        Logger
	lim        *rate.Limiter
	suppressed atomic.Uint64
}

// NewThrottled allows one line per every, with a burst of burst.
func NewThrottled(log Logger, every time.Duration, burst int) *Throttled {
	if every <= 0 {
		every = 5 * time.Second
	}
	if burst <= 0 {
		burst = 1
	}
	return &Throttled{log: log, lim: rate.NewLimiter(rate.Every(every), burst)}
}

func (t *Throttled) Warn(msg string, fields ...Field) {
	if t == nil {
		return
	}
	if !t.lim.Allow() {
		t.suppressed.Add(1)
		return
	}
	if n := t.suppressed.Swap(0); n > 0 {
		fields = append(fields, Uint64("suppressed", n))
	}
	t.log.Warn(msg, fields...)
}

// Suppressed returns the number of lines dropped since the last emitted one.
func (t *Throttled) Suppressed() uint64 {
	if t == nil {
		return 0
	}
	return t.suppressed.Load()
}
