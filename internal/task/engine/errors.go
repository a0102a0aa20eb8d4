package engine

import "errors"

var (
	ErrStopped   = errors.New("async pool stopped")
	ErrStopping  = errors.New("async pool stopping")
	ErrQueueFull = errors.New("async pool queue full")
	ErrNoRun     = errors.New("task Run is nil")
)
