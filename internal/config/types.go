package config

// Config is the daemon configuration file. Durations are Go duration strings
// ("50ms", "10s").
type Config struct {
	Logging LoggingConfig `json:"logging"`
	Server  ServerConfig  `json:"server"`
	Async   AsyncConfig   `json:"async"`
	Cron    CronConfig    `json:"cron"`
	Demo    DemoConfig    `json:"demo"`
	Debug   DebugConfig   `json:"debug"`

	// Storage is optional; nil disables the lifecycle history.
	Storage *StorageConfig `json:"storage,omitempty"`
	// Tracing is optional; nil disables span export.
	Tracing *TracingConfig `json:"tracing,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ServerConfig picks and sizes the simulated host.
//
// Defaults: kind "mainthread", tick_interval "50ms", regions 4, region_shift 3.
type ServerConfig struct {
	// Kind is "mainthread" (one global tick thread) or "regionized".
	Kind         string `json:"kind"`
	Name         string `json:"name,omitempty"`
	TickInterval string `json:"tick_interval,omitempty"`
	Regions      int    `json:"regions,omitempty"`
	RegionShift  uint   `json:"region_shift,omitempty"`
}

// AsyncConfig sizes the background pool.
//
// Defaults: workers 4, queue_size 1024, history_size 200, default_timeout "0s".
type AsyncConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
}

type CronConfig struct {
	Enabled   bool   `json:"enabled"`
	Timezone  string `json:"timezone,omitempty"`
	MaxSpread string `json:"max_spread,omitempty"`
	// Jobs are built-in diagnostics triggered on a schedule.
	Jobs []CronJobConfig `json:"jobs,omitempty"`
}

type CronJobConfig struct {
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	// Target is "global" or "async".
	Target string `json:"target,omitempty"`
	// Action is "snapshot" (log host and pool state) or "gc" (prune history).
	Action string `json:"action"`
}

// DemoConfig drives the sample workload the daemon schedules on start.
type DemoConfig struct {
	Enabled bool `json:"enabled"`
	// Heartbeat is the period of the exclusive heartbeat timer, in ticks.
	HeartbeatTicks int64 `json:"heartbeat_ticks,omitempty"`
	// Items is how many dropped items to spawn and watch until they settle.
	Items int `json:"items,omitempty"`
	// SettleMaxRuns bounds how many fruitless polls an item gets.
	SettleMaxRuns int64 `json:"settle_max_runs,omitempty"`
}

// DebugConfig controls the local pprof and status endpoint.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

type StorageConfig struct {
	// Driver is "sqlite", "memory" or "none".
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
	// Retention drops history older than this when the gc action runs.
	Retention string `json:"retention,omitempty"`
}

type TracingConfig struct {
	Enabled     bool    `json:"enabled"`
	Endpoint    string  `json:"endpoint,omitempty"`
	Insecure    bool    `json:"insecure,omitempty"`
	ServiceName string  `json:"service_name,omitempty"`
	SampleRatio float64 `json:"sample_ratio,omitempty"`
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	out := *c
	out.Cron.Jobs = append([]CronJobConfig(nil), c.Cron.Jobs...)
	if c.Storage != nil {
		s := *c.Storage
		out.Storage = &s
	}
	if c.Tracing != nil {
		t := *c.Tracing
		out.Tracing = &t
	}
	return &out
}
