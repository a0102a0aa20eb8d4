package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides are REGIOND_* variables layered over the file. Zero values
// leave the file's setting alone.
type envOverrides struct {
	LogLevel        string `env:"REGIOND_LOG_LEVEL"`
	ServerKind      string `env:"REGIOND_SERVER_KIND"`
	TickInterval    string `env:"REGIOND_TICK_INTERVAL"`
	Regions         int    `env:"REGIOND_REGIONS"`
	AsyncWorkers    int    `env:"REGIOND_ASYNC_WORKERS"`
	CronTimezone    string `env:"REGIOND_CRON_TIMEZONE"`
	StoragePath     string `env:"REGIOND_STORAGE_PATH"`
	TracingEndpoint string `env:"REGIOND_OTLP_ENDPOINT"`
}

// ApplyEnv layers the process environment over cfg.
func ApplyEnv(cfg *Config) error { return applyEnv(cfg, nil) }

func applyEnv(cfg *Config, environ map[string]string) error {
	var raw envOverrides
	var err error
	if environ == nil {
		err = env.Parse(&raw)
	} else {
		err = env.ParseWithOptions(&raw, env.Options{Environment: environ})
	}
	if err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if raw.LogLevel != "" {
		cfg.Logging.Level = raw.LogLevel
	}
	if raw.ServerKind != "" {
		cfg.Server.Kind = raw.ServerKind
	}
	if raw.TickInterval != "" {
		cfg.Server.TickInterval = raw.TickInterval
	}
	if raw.Regions != 0 {
		cfg.Server.Regions = raw.Regions
	}
	if raw.AsyncWorkers != 0 {
		cfg.Async.Workers = raw.AsyncWorkers
	}
	if raw.CronTimezone != "" {
		cfg.Cron.Timezone = raw.CronTimezone
	}
	if raw.StoragePath != "" {
		if cfg.Storage == nil {
			cfg.Storage = &StorageConfig{Driver: "sqlite"}
		}
		cfg.Storage.Path = raw.StoragePath
	}
	if raw.TracingEndpoint != "" {
		if cfg.Tracing == nil {
			cfg.Tracing = &TracingConfig{Enabled: true}
		}
		cfg.Tracing.Endpoint = raw.TracingEndpoint
	}
	return nil
}
