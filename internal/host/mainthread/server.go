// Package mainthread is a host with one global tick thread. Every sync task
// runs on it; async work goes to a background pool.
package mainthread

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"regionsched/internal/host"
	"regionsched/internal/host/tickloop"
	rtsup "regionsched/internal/runtime/supervisor"
	"regionsched/internal/task/engine"
	logx "regionsched/pkg/logx"
)

var ErrAlreadyStarted = errors.New("server already started")

type Config struct {
	Name         string
	TickInterval time.Duration
}

// Server runs a single tick loop. Drive it with Start, or call Tick directly.
type Server struct {
	name string
	loop *tickloop.Loop
	pool *engine.Service
	caps *host.CapabilitySet
	log  logx.Logger

	ids atomic.Uint64

	mu  sync.Mutex
	sup *rtsup.Supervisor
}

// New builds a server. pool may be nil, in which case async work runs on a
// fresh goroutine per submission.
func New(cfg Config, pool *engine.Service, log logx.Logger) *Server {
	if cfg.Name == "" {
		cfg.Name = "main"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "host.mainthread"))
	caps := host.NewCapabilitySet()
	if pool != nil {
		caps.Add(host.CapAsyncPool)
	}
	return &Server{
		name: cfg.Name,
		loop: tickloop.New(tickloop.Config{Name: cfg.Name, TickInterval: cfg.TickInterval}, log),
		pool: pool,
		caps: caps,
		log:  log,
	}
}

func (s *Server) Name() string                    { return s.name }
func (s *Server) Capabilities() host.Capabilities { return s.caps }
func (s *Server) Scheduler() host.GlobalScheduler { return (*scheduler)(s) }

// Tick advances the tick thread once on the calling goroutine.
func (s *Server) Tick() int { return s.loop.Tick() }

func (s *Server) CurrentTick() uint64 { return s.loop.CurrentTick() }

func (s *Server) Snapshot() tickloop.Snapshot { return s.loop.Snapshot() }

// Start drives the tick loop in the background until Stop or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return ErrAlreadyStarted
	}
	s.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(s.log))
	s.sup.Go("tick."+s.name, s.loop.Run)
	s.log.Info("server started", logx.String("name", s.name), logx.Duration("tick", s.loop.TickInterval()))
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
	s.log.Info("server stopped", logx.String("name", s.name), logx.Uint64("tick", s.loop.CurrentTick()))
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
