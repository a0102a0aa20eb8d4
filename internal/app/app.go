package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"regionsched/internal/config"
	"regionsched/internal/eventbus"
	"regionsched/internal/host/tickloop"
	"regionsched/internal/observability/debughttp"
	"regionsched/internal/observability/tracing"
	rtsup "regionsched/internal/runtime/supervisor"
	"regionsched/internal/schedule"
	"regionsched/internal/storage"
	"regionsched/internal/task/cron"
	"regionsched/internal/task/engine"
	"regionsched/internal/world"
	logx "regionsched/pkg/logx"
	"regionsched/pkg/systemd"
)

type App struct {
	cfgm *config.Manager
	res  config.Resolved

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store    storage.Store
	recorder *storage.Recorder

	pool     *engine.Service
	srv      runtimeHost
	loops    func() []tickloop.Snapshot
	detector schedule.Detector
	sched    *schedule.Scheduler
	cron     *cron.Service
	debug    *debughttp.Service
	world    *world.Registry
	demo     *demo
	jobs     map[string]bool

	traceShutdown func(context.Context) error

	sup *rtsup.Supervisor
}

type options struct {
	environ map[string]string
}

type Option func(*options)

// WithEnviron replaces the process environment as the source of REGIOND_*
// overrides.
func WithEnviron(environ map[string]string) Option {
	return func(o *options) { o.environ = environ }
}

func New(cfgPath string, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	cfgm := config.NewManager(cfgPath)
	if o.environ != nil {
		cfgm.SetEnviron(o.environ)
	}
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(res.Logging)
	log = log.With(logx.String("comp", "app"))
	bus := eventbus.New()

	var store storage.Store
	if res.StorageEnabled {
		store, err = storage.Open(storage.Config{
			Driver:      res.StorageDriver,
			Path:        res.StoragePath,
			BusyTimeout: res.StorageBusyTimeout,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			return nil, fmt.Errorf("open history: %w", err)
		}
	}

	pool := engine.New(engine.Config{
		Workers:        res.AsyncWorkers,
		QueueSize:      res.AsyncQueueSize,
		DefaultTimeout: res.AsyncTimeout,
		HistorySize:    res.AsyncHistorySize,
	}, log.With(logx.String("comp", "async")), bus)

	srv, loops := buildHost(res, pool, log)

	a := &App{
		cfgm:  cfgm,
		res:   res,
		log:   log,
		logs:  logSvc,
		bus:   bus,
		store: store,
		pool:  pool,
		srv:   srv,
		loops: loops,
		world: world.NewRegistry(),
		jobs:  map[string]bool{},
	}

	mode := a.detector.Mode(srv.Capabilities())
	backend, err := schedule.NewBackend(srv, mode)
	if err != nil {
		return nil, err
	}
	a.sched = schedule.New(backend, log.With(logx.String("comp", "schedule")), bus)

	a.cron = cron.New(cronConfig(res), a.sched, log.With(logx.String("comp", "cron")))
	if err := a.syncJobs(res.CronJobs); err != nil {
		return nil, err
	}
	if res.Demo.Enabled {
		a.demo = newDemo(a.sched, a.world, res.Demo, log)
	}
	a.debug = debughttp.New(debughttp.Config{
		Enabled:       res.Debug.Enabled,
		Addr:          res.Debug.Addr,
		Token:         res.Debug.Token,
		AllowInsecure: res.Debug.AllowInsecure,
	}, func(ctx context.Context) any { return a.Status(ctx) }, log)
	if store != nil {
		a.recorder = storage.NewRecorder(store, bus, log.With(logx.String("comp", "history")))
	}
	return a, nil
}

func cronConfig(r config.Resolved) cron.Config {
	return cron.Config{Enabled: r.CronEnabled, Timezone: r.CronTimezone, MaxSpread: r.CronMaxSpread}
}

// Scheduler is the facade every workload schedules through.
func (a *App) Scheduler() *schedule.Scheduler { return a.sched }

// World is the entity registry the daemon's work operates on.
func (a *App) World() *world.Registry { return a.world }

// Done is closed when the app context is cancelled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	run := a.sup.Context()

	if t := a.res.Tracing; t != nil {
		shutdown, err := tracing.Setup(run, tracing.Config{
			Enabled:     t.Enabled,
			Endpoint:    t.Endpoint,
			Insecure:    t.Insecure,
			ServiceName: t.ServiceName,
			SampleRatio: t.SampleRatio,
		}, a.log)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		a.traceShutdown = shutdown
	}

	a.pool.Start(run)
	if a.recorder != nil {
		a.sup.Go("history.record", a.recorder.Run)
	}
	if err := a.srv.Start(run); err != nil {
		return err
	}
	a.cron.Start(run)
	if a.demo != nil {
		if err := a.demo.start(); err != nil {
			return fmt.Errorf("demo: %w", err)
		}
	}
	if err := a.debug.Start(run); err != nil {
		return err
	}

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return systemd.Watchdog(c, a.pool.Running)
	})

	a.log.Info("app started",
		logx.String("mode", a.sched.Mode().String()),
		logx.String("server", a.srv.Name()),
		logx.Strs("capabilities", a.srv.Capabilities().List()),
	)
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest config matters.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(ctx context.Context, prev, next *config.Config) {
	change := config.SummarizeChange(prev, next)
	if len(change.Sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	res, err := config.Resolve(next)
	if err != nil {
		a.log.Warn("config reload rejected", logx.Err(err))
		return
	}
	if len(change.NeedsRestart) > 0 {
		a.log.Warn("config sections changed that need a restart", logx.String("sections", strings.Join(change.NeedsRestart, ",")))
	}

	a.logs.Apply(res.Logging)

	wasEnabled := a.cron.Enabled()
	a.cron.Apply(cronConfig(res))
	if err := a.syncJobs(res.CronJobs); err != nil {
		a.log.Warn("cron jobs not fully applied", logx.Err(err))
	}
	switch {
	case wasEnabled && !res.CronEnabled:
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.cron.Stop(stopCtx)
		cancel()
	case !wasEnabled && res.CronEnabled:
		a.cron.Start(ctx)
	}

	fields := append([]logx.Field{logx.String("changed", strings.Join(change.Sections, ","))}, change.Fields...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	_, _ = systemd.Stopping()

	// Cancel first so background loops begin unwinding.
	a.sup.Cancel()

	a.step(ctx, "demo", time.Second, func(context.Context) error {
		if a.demo != nil {
			a.demo.stop()
		}
		return nil
	})
	a.step(ctx, "debug", time.Second, func(c context.Context) error { a.debug.Stop(c); return nil })
	a.step(ctx, "cron", 2*time.Second, func(c context.Context) error { a.cron.Stop(c); return nil })
	a.step(ctx, "host", 2*time.Second, a.srv.Stop)
	a.step(ctx, "async", 2*time.Second, func(c context.Context) error { a.pool.Stop(c); return nil })
	a.step(ctx, "tracing", 2*time.Second, func(c context.Context) error {
		if a.traceShutdown != nil {
			return a.traceShutdown(c)
		}
		return nil
	})
	// Recorder and config goroutines must be gone before the store closes.
	a.step(ctx, "supervisor", 2*time.Second, a.sup.Wait)
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// step runs one shutdown step bounded by max and the caller's deadline,
// whichever is sooner. A step that overruns is logged and left behind.
func (a *App) step(ctx context.Context, name string, max time.Duration, fn func(context.Context) error) {
	start := time.Now()
	stepCtx, cancel := context.WithTimeout(ctx, max)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
	case <-stepCtx.Done():
		a.log.Warn("stop step deadline reached (continuing)", logx.String("name", name), logx.Duration("elapsed", time.Since(start)))
	}
}
