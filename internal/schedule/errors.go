package schedule

import "errors"

var (
	ErrInvalidPeriod = errors.New("period must be at least one tick")
	ErrInvalidDelay  = errors.New("delay must not be negative")
	ErrNilWork       = errors.New("work func is nil")
	ErrNilEntity     = errors.New("entity is nil")
	ErrUnknownMode   = errors.New("unknown execution mode")
	ErrNotRegionized = errors.New("server does not provide region schedulers")
)
