package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	logx "regionsched/pkg/logx"
)

const (
	KindMainThread = "mainthread"
	KindRegionized = "regionized"
)

var ErrInvalid = errors.New("invalid config")

// Resolved is Config with defaults filled in and durations parsed.
type Resolved struct {
	Logging logx.Config

	ServerKind   string
	ServerName   string
	TickInterval time.Duration
	Regions      int
	RegionShift  uint

	AsyncWorkers     int
	AsyncQueueSize   int
	AsyncHistorySize int
	AsyncTimeout     time.Duration

	CronEnabled   bool
	CronTimezone  string
	CronMaxSpread time.Duration
	CronJobs      []CronJobConfig

	Demo  DemoConfig
	Debug DebugConfig

	StorageEnabled     bool
	StorageDriver      string
	StoragePath        string
	StorageBusyTimeout time.Duration
	StorageRetention   time.Duration

	Tracing *TracingConfig
}

// Resolve validates cfg and fills in defaults. Every problem found is
// reported, joined into one error.
func Resolve(cfg *Config) (Resolved, error) {
	if cfg == nil {
		return Resolved{}, fmt.Errorf("%w: config is nil", ErrInvalid)
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	r := Resolved{
		Logging: logx.Config{
			Level:   strings.TrimSpace(cfg.Logging.Level),
			Console: cfg.Logging.Console,
			File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: strings.TrimSpace(cfg.Logging.File.Path)},
		},
		ServerKind:       strings.ToLower(strings.TrimSpace(cfg.Server.Kind)),
		ServerName:       strings.TrimSpace(cfg.Server.Name),
		Regions:          cfg.Server.Regions,
		RegionShift:      cfg.Server.RegionShift,
		AsyncWorkers:     cfg.Async.Workers,
		AsyncQueueSize:   cfg.Async.QueueSize,
		AsyncHistorySize: cfg.Async.HistorySize,
		CronEnabled:      cfg.Cron.Enabled,
		CronTimezone:     strings.TrimSpace(cfg.Cron.Timezone),
		CronJobs:         append([]CronJobConfig(nil), cfg.Cron.Jobs...),
		Demo:             cfg.Demo,
		Debug:            cfg.Debug,
	}

	if r.Logging.Level == "" {
		r.Logging.Level = "info"
	}
	if !logx.ValidLevel(r.Logging.Level) {
		add(fmt.Errorf("logging.level: unknown level %q", r.Logging.Level))
	}
	if r.Logging.File.Enabled && r.Logging.File.Path == "" {
		add(errors.New("logging.file.path: required when file logging is enabled"))
	}

	switch r.ServerKind {
	case "":
		r.ServerKind = KindMainThread
	case KindMainThread, KindRegionized:
	default:
		add(fmt.Errorf("server.kind: want %q or %q, got %q", KindMainThread, KindRegionized, cfg.Server.Kind))
	}
	if r.ServerName == "" {
		r.ServerName = r.ServerKind
	}
	var err error
	r.TickInterval, err = tickIntervalField.parse(cfg.Server.TickInterval)
	add(err)
	if r.Regions < 0 {
		add(errors.New("server.regions: must be >= 0"))
	}
	if r.Regions == 0 {
		r.Regions = 4
	}
	if r.RegionShift == 0 {
		r.RegionShift = 3
	}
	if r.RegionShift > 16 {
		add(errors.New("server.region_shift: must be <= 16"))
	}

	if r.AsyncWorkers < 0 || r.AsyncQueueSize < 0 || r.AsyncHistorySize < 0 {
		add(errors.New("async: sizes must be >= 0"))
	}
	r.AsyncTimeout, err = asyncTimeoutField.parse(cfg.Async.DefaultTimeout)
	add(err)

	r.CronMaxSpread, err = cronMaxSpreadField.parse(cfg.Cron.MaxSpread)
	add(err)
	if r.CronTimezone != "" {
		if _, err := time.LoadLocation(r.CronTimezone); err != nil {
			add(fmt.Errorf("cron.timezone: %w", err))
		}
	}
	seen := map[string]bool{}
	for i, j := range r.CronJobs {
		name := strings.TrimSpace(j.Name)
		switch {
		case name == "":
			add(fmt.Errorf("cron.jobs[%d].name: required", i))
		case seen[name]:
			add(fmt.Errorf("cron.jobs[%d].name: duplicate %q", i, name))
		}
		seen[name] = true
		if strings.TrimSpace(j.Schedule) == "" {
			add(fmt.Errorf("cron.jobs[%d].schedule: required", i))
		}
		switch j.Target {
		case "", "global", "async":
		default:
			add(fmt.Errorf("cron.jobs[%d].target: want global or async, got %q", i, j.Target))
		}
		switch j.Action {
		case "snapshot", "gc":
		default:
			add(fmt.Errorf("cron.jobs[%d].action: want snapshot or gc, got %q", i, j.Action))
		}
	}

	if r.Demo.HeartbeatTicks < 0 || r.Demo.Items < 0 || r.Demo.SettleMaxRuns < 0 {
		add(errors.New("demo: values must be >= 0"))
	}
	if r.Demo.HeartbeatTicks == 0 {
		r.Demo.HeartbeatTicks = 20
	}
	if r.Demo.SettleMaxRuns == 0 {
		r.Demo.SettleMaxRuns = 10
	}

	if s := cfg.Storage; s != nil {
		driver := strings.ToLower(strings.TrimSpace(s.Driver))
		switch driver {
		case "", "none":
		case "memory":
			r.StorageEnabled = true
			r.StorageDriver = driver
		case "sqlite":
			r.StorageEnabled = true
			r.StorageDriver = driver
			r.StoragePath = strings.TrimSpace(s.Path)
			if r.StoragePath == "" {
				add(errors.New("storage.path: required for sqlite"))
			}
		default:
			add(fmt.Errorf("storage.driver: unsupported %q", s.Driver))
		}
		r.StorageBusyTimeout, err = storageBusyField.parse(s.BusyTimeout)
		add(err)
		r.StorageRetention, err = storageRetainField.parse(s.Retention)
		add(err)
	}

	if t := cfg.Tracing; t != nil && t.Enabled {
		tc := *t
		if tc.SampleRatio < 0 || tc.SampleRatio > 1 {
			add(errors.New("tracing.sample_ratio: must be within [0,1]"))
		}
		if tc.ServiceName == "" {
			tc.ServiceName = "regiond"
		}
		r.Tracing = &tc
	}

	if len(errs) > 0 {
		return Resolved{}, fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return r, nil
}
