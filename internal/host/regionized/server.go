// Package regionized is a host whose world is split into regions, each with
// its own tick thread, plus a global region thread, per-entity schedulers and
// a wall-clock async scheduler.
package regionized

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"regionsched/internal/host"
	"regionsched/internal/host/tickloop"
	rtsup "regionsched/internal/runtime/supervisor"
	"regionsched/internal/task/engine"
	"regionsched/internal/world"
	logx "regionsched/pkg/logx"
)

var (
	ErrAlreadyStarted = errors.New("server already started")
	// ErrLegacyScheduler is the panic value raised by the single-queue
	// scheduler, which a regionized server does not provide.
	ErrLegacyScheduler = errors.New("regionized server has no global tick queue; use the region schedulers")
)

type Config struct {
	Name         string
	TickInterval time.Duration
	// Regions is the number of region threads.
	Regions int
	// RegionShift groups 2^RegionShift x 2^RegionShift chunks into one region.
	RegionShift uint
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "regions"
	}
	if c.Regions <= 0 {
		c.Regions = 4
	}
	if c.RegionShift == 0 {
		c.RegionShift = 3
	}
	return c
}

type Server struct {
	cfg     Config
	global  *tickloop.Loop
	regions []*tickloop.Loop
	pool    *engine.Service
	caps    *host.CapabilitySet
	log     logx.Logger

	mu  sync.Mutex
	sup *rtsup.Supervisor
}

// New builds a server. pool may be nil, in which case async work runs on a
// fresh goroutine per firing.
func New(cfg Config, pool *engine.Service, log logx.Logger) *Server {
	cfg = cfg.withDefaults()
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "host.regionized"))

	s := &Server{
		cfg:  cfg,
		pool: pool,
		caps: host.NewCapabilitySet(host.CapRegionizedServer, host.CapAsyncPool),
		log:  log,
	}
	s.global = tickloop.New(tickloop.Config{Name: cfg.Name + ".global", TickInterval: cfg.TickInterval}, log)
	s.regions = make([]*tickloop.Loop, cfg.Regions)
	for i := range s.regions {
		s.regions[i] = tickloop.New(tickloop.Config{Name: fmt.Sprintf("%s.region.%d", cfg.Name, i), TickInterval: cfg.TickInterval}, log)
	}
	return s
}

func (s *Server) Name() string                    { return s.cfg.Name }
func (s *Server) Capabilities() host.Capabilities { return s.caps }

// Scheduler panics with ErrLegacyScheduler.
func (s *Server) Scheduler() host.GlobalScheduler { return legacyScheduler{} }

func (s *Server) GlobalRegionScheduler() host.GlobalRegionScheduler { return globalScheduler{s} }
func (s *Server) RegionScheduler() host.RegionScheduler             { return regionScheduler{s} }
func (s *Server) AsyncScheduler() host.AsyncScheduler               { return asyncScheduler{s} }

func (s *Server) EntityScheduler(e world.Entity) host.EntityScheduler {
	return &entityScheduler{srv: s, ent: e}
}

// RegionOf returns the index of the region thread owning loc.
func (s *Server) RegionOf(loc world.Location) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(loc.World))
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[:4], uint32(loc.ChunkX()>>s.cfg.RegionShift))
	binary.LittleEndian.PutUint32(buf[4:], uint32(loc.ChunkZ()>>s.cfg.RegionShift))
	_, _ = h.Write(buf[:])
	return int(h.Sum32() % uint32(len(s.regions)))
}

func (s *Server) regionFor(loc world.Location) (int, *tickloop.Loop) {
	idx := s.RegionOf(loc)
	return idx, s.regions[idx]
}

// TickAll advances the global region and then every region once, on the
// calling goroutine. It returns the number of entries fired.
func (s *Server) TickAll() int {
	n := s.global.Tick()
	for _, r := range s.regions {
		n += r.Tick()
	}
	return n
}

// Snapshot lists the global loop first, then each region in index order.
func (s *Server) Snapshot() []tickloop.Snapshot {
	out := make([]tickloop.Snapshot, 0, len(s.regions)+1)
	out = append(out, s.global.Snapshot())
	for _, r := range s.regions {
		out = append(out, r.Snapshot())
	}
	return out
}

// Start runs every region thread in the background until Stop or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return ErrAlreadyStarted
	}
	s.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(s.log))
	s.sup.Go(s.global.Name(), s.global.Run)
	for _, r := range s.regions {
		s.sup.Go(r.Name(), r.Run)
	}
	s.log.Info("server started",
		logx.String("name", s.cfg.Name),
		logx.Int("regions", len(s.regions)),
		logx.Duration("tick", s.global.TickInterval()),
	)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	err := sup.Stop(ctx)
	s.log.Info("server stopped", logx.String("name", s.cfg.Name))
	return err
}

// dispatch hands fn to the async pool. A full queue spills into the pool's
// overflow; a stopped pool falls back to a plain goroutine. fn always runs.
func (s *Server) dispatch(name string, fn func()) {
	if s.pool == nil {
		go fn()
		return
	}
	if err := s.pool.Dispatch(name, fn); err != nil {
		s.log.Debug("async pool unavailable, running detached", logx.String("task", name), logx.Err(err))
		go fn()
	}
}

type legacyScheduler struct{}

func (legacyScheduler) RunTask(func()) host.GlobalTask                { panic(ErrLegacyScheduler) }
func (legacyScheduler) RunTaskLater(func(), int64) host.GlobalTask    { panic(ErrLegacyScheduler) }
func (legacyScheduler) RunTaskAsynchronously(func()) host.GlobalTask  { panic(ErrLegacyScheduler) }
func (legacyScheduler) RunTaskTimer(func(host.GlobalTask), int64, int64) host.GlobalTask {
	panic(ErrLegacyScheduler)
}
func (legacyScheduler) RunTaskTimerAsynchronously(func(host.GlobalTask), int64, int64) host.GlobalTask {
	panic(ErrLegacyScheduler)
}
