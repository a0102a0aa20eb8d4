package app

import (
	"context"

	"regionsched/internal/config"
	"regionsched/internal/host"
	"regionsched/internal/host/mainthread"
	"regionsched/internal/host/regionized"
	"regionsched/internal/host/tickloop"
	"regionsched/internal/task/engine"
	logx "regionsched/pkg/logx"
)

// runtimeHost is a host the daemon drives in the background.
type runtimeHost interface {
	host.Server
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// buildHost constructs the host named by server.kind. snap reports every
// tick loop it runs.
func buildHost(r config.Resolved, pool *engine.Service, log logx.Logger) (srv runtimeHost, snap func() []tickloop.Snapshot) {
	if r.ServerKind == config.KindRegionized {
		rs := regionized.New(regionized.Config{
			Name:         r.ServerName,
			TickInterval: r.TickInterval,
			Regions:      r.Regions,
			RegionShift:  r.RegionShift,
		}, pool, log)
		return rs, rs.Snapshot
	}
	ms := mainthread.New(mainthread.Config{Name: r.ServerName, TickInterval: r.TickInterval}, pool, log)
	return ms, func() []tickloop.Snapshot { return []tickloop.Snapshot{ms.Snapshot()} }
}
