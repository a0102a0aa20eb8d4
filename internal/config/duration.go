package config

import (
	"fmt"
	"strings"
	"time"
)

// durationField is one duration setting. An empty or zero value takes def;
// a set value below min is rejected.
type durationField struct {
	path string
	def  time.Duration
	min  time.Duration
}

var (
	tickIntervalField  = durationField{path: "server.tick_interval", def: 50 * time.Millisecond, min: time.Millisecond}
	asyncTimeoutField  = durationField{path: "async.default_timeout"}
	cronMaxSpreadField = durationField{path: "cron.max_spread", def: 30 * time.Second}
	storageBusyField   = durationField{path: "storage.busy_timeout", def: 5 * time.Second, min: time.Millisecond}
	storageRetainField = durationField{path: "storage.retention", def: 24 * time.Hour, min: time.Second}
)

func (f durationField) parse(raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return f.def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", f.path, raw, err)
	}
	switch {
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", f.path)
	case d == 0:
		return f.def, nil
	case d < f.min:
		return 0, fmt.Errorf("%s: %v is below the minimum %v", f.path, d, f.min)
	}
	return d, nil
}
