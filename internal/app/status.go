package app

import (
	"context"

	"regionsched/internal/host/tickloop"
	"regionsched/internal/storage"
	"regionsched/internal/task/cron"
)

// Status is the daemon's self-report, served on /debug/sched.
type Status struct {
	Mode         string              `json:"mode"`
	Server       string              `json:"server"`
	Capabilities []string            `json:"capabilities"`
	Loops        []tickloop.Snapshot `json:"loops"`
	Async        AsyncStatus         `json:"async"`
	Cron         cron.Snapshot       `json:"cron"`
	Actors       int                 `json:"actors"`
	History      storage.Summary     `json:"history,omitempty"`
	Demo         *DemoStatus         `json:"demo,omitempty"`
}

type AsyncStatus struct {
	Running     bool   `json:"running"`
	Workers     int    `json:"workers"`
	InFlight    int    `json:"in_flight"`
	QueueLen    int    `json:"queue_len"`
	OverflowLen int    `json:"overflow_len"`
	Executed    uint64 `json:"executed"`
	Failed      uint64 `json:"failed"`
	Dropped     uint64 `json:"dropped"`
	Overflowed  uint64 `json:"overflowed"`
}

func (a *App) Status(ctx context.Context) Status {
	ps := a.pool.Snapshot()
	st := Status{
		Mode:         a.sched.Mode().String(),
		Server:       a.srv.Name(),
		Capabilities: a.srv.Capabilities().List(),
		Loops:        a.loops(),
		Async: AsyncStatus{
			Running:     ps.Running,
			Workers:     ps.Workers,
			InFlight:    ps.InFlight,
			QueueLen:    ps.QueueLen,
			OverflowLen: ps.OverflowLen,
			Executed:    ps.Executed,
			Failed:      ps.Failed,
			Dropped:     ps.DroppedQueueFull,
			Overflowed:  ps.Overflowed,
		},
		Cron:   a.cron.Snapshot(),
		Actors: a.world.Len(),
	}
	if a.store != nil {
		if sum, err := a.store.Summary(ctx); err == nil {
			st.History = sum
		}
	}
	if a.demo != nil {
		ds := a.demo.status()
		st.Demo = &ds
	}
	return st
}
