package runnable

import "errors"

var (
	ErrAlreadyScheduled = errors.New("timer already scheduled")
	ErrStartCancelled   = errors.New("timer cancelled during its start hook")
	ErrNoSuccessCheck   = errors.New("poller needs a success check")
	ErrInvalidMaxRuns   = errors.New("poller max runs must not be negative")
)
