package schedule

import (
	"fmt"
	"strings"
	"sync"

	"regionsched/internal/host"
)

// Mode is the execution backend present in the process.
type Mode uint8

const (
	// GlobalSingleThread: every sync task runs on one global tick thread.
	GlobalSingleThread Mode = iota
	// RegionParallel: sync tasks run on the thread owning their region.
	RegionParallel
)

func (m Mode) String() string {
	switch m {
	case GlobalSingleThread:
		return "single"
	case RegionParallel:
		return "regions"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode accepts the names produced by String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "single", "global", "mainthread":
		return GlobalSingleThread, nil
	case "regions", "region", "regionized":
		return RegionParallel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Detect checks caps for the region-parallel marker. A missing marker is the
// normal single-thread case.
func Detect(caps host.Capabilities) Mode {
	if caps != nil && caps.Has(host.CapRegionizedServer) {
		return RegionParallel
	}
	return GlobalSingleThread
}

// Detector memoizes the first Detect result. Later calls ignore their argument.
type Detector struct {
	once sync.Once
	mode Mode
}

func (d *Detector) Mode(caps host.Capabilities) Mode {
	d.once.Do(func() { d.mode = Detect(caps) })
	return d.mode
}
