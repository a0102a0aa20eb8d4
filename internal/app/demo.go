package app

import (
	"sync"
	"sync/atomic"

	"regionsched/internal/config"
	"regionsched/internal/runnable"
	"regionsched/internal/schedule"
	"regionsched/internal/world"
	logx "regionsched/pkg/logx"
)

const (
	groundY     = 64
	pollPeriod  = 5
	despawnWait = 40
)

// demo is the sample workload: an exclusive heartbeat timer and a batch of
// dropped items that fall across region borders until they land, each
// watched by a poller.
type demo struct {
	s   *schedule.Scheduler
	reg *world.Registry
	log logx.Logger
	cfg config.DemoConfig

	heartbeat *runnable.Timer
	beats     atomic.Uint64
	landed    atomic.Uint64

	mu      sync.Mutex
	pollers []*runnable.Poller[*world.Actor]
}

// DemoStatus summarizes the workload.
type DemoStatus struct {
	Beats    uint64         `json:"beats"`
	Items    int            `json:"items"`
	Landed   uint64         `json:"landed"`
	Outcomes map[string]int `json:"outcomes"`
	Alive    int            `json:"alive"`
	Timer    string         `json:"timer"`
}

func newDemo(s *schedule.Scheduler, reg *world.Registry, cfg config.DemoConfig, log logx.Logger) *demo {
	d := &demo{s: s, reg: reg, cfg: cfg, log: log.With(logx.String("comp", "demo"))}
	d.heartbeat = runnable.NewTimer(s, d.beat)
	return d
}

func (d *demo) beat() {
	n := d.beats.Add(1)
	d.log.Debug("heartbeat", logx.Uint64("beat", n), logx.Int("actors", d.reg.Len()))
}

func (d *demo) start() error {
	if _, err := d.heartbeat.RunTimer(1, d.cfg.HeartbeatTicks); err != nil {
		return err
	}
	for i := range d.cfg.Items {
		loc := world.Location{World: "overworld", X: float64(i * 40), Y: float64(groundY + 12 + i%8), Z: float64(i * 24)}
		item := d.reg.Spawn("item", loc)
		if err := d.drop(item); err != nil {
			return err
		}
	}
	d.log.Info("demo workload scheduled", logx.Int("items", d.cfg.Items), logx.Int64("heartbeat_ticks", d.cfg.HeartbeatTicks))
	return nil
}

// drop makes item fall one block per tick, drifting along X so it crosses
// chunk and region borders, and polls for the landing.
func (d *demo) drop(item *world.Actor) error {
	_, err := d.s.RunEntityTimer(item, func(self schedule.Task) {
		loc := item.Location()
		if loc.Y <= groundY {
			self.Cancel()
			return
		}
		item.Teleport(loc.Add(3, -1, 0))
	}, nil, 1, 1)
	if err != nil {
		return err
	}

	p, err := runnable.NewPoller(item, d.cfg.SettleMaxRuns, runnable.Checks[*world.Actor]{
		Success: func(a *world.Actor) bool { return a.Location().Y <= groundY },
		OnSuccess: func(a *world.Actor) {
			d.landed.Add(1)
			d.log.Debug("item landed", logx.String("id", a.ID().String()), logx.String("at", a.Location().String()))
			_, _ = d.s.RunEntityLater(a, func() { d.reg.Remove(a.ID()) }, nil, despawnWait)
		},
	})
	if err != nil {
		return err
	}
	if _, err := p.Schedule(d.s, 1, pollPeriod); err != nil {
		return err
	}
	d.mu.Lock()
	d.pollers = append(d.pollers, p)
	d.mu.Unlock()
	return nil
}

func (d *demo) stop() {
	d.heartbeat.Cancel()
}

func (d *demo) status() DemoStatus {
	st := DemoStatus{
		Beats:    d.beats.Load(),
		Landed:   d.landed.Load(),
		Alive:    d.reg.Len(),
		Timer:    d.heartbeat.State().String(),
		Outcomes: map[string]int{},
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	st.Items = len(d.pollers)
	for _, p := range d.pollers {
		st.Outcomes[p.Outcome().String()]++
	}
	return st
}
