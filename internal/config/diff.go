package config

import (
	"reflect"

	logx "regionsched/pkg/logx"
)

// Restart-only sections cannot be applied to a running daemon. Everything
// else is hot.
var restartOnly = map[string]bool{"server": true, "async": true, "storage": true, "tracing": true, "demo": true, "debug": true}

// Change describes what a reload touched.
type Change struct {
	Sections []string
	// NeedsRestart lists sections that only take effect on restart.
	NeedsRestart []string
	Fields       []logx.Field
}

// SummarizeChange compares two configs section by section.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var c Change
	mark := func(name string, fields ...logx.Field) {
		c.Sections = append(c.Sections, name)
		if restartOnly[name] {
			c.NeedsRestart = append(c.NeedsRestart, name)
		}
		c.Fields = append(c.Fields, fields...)
	}

	if oldCfg.Logging != newCfg.Logging {
		mark("logging",
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Server != newCfg.Server {
		mark("server", logx.String("server.kind", newCfg.Server.Kind))
	}
	if oldCfg.Async != newCfg.Async {
		mark("async", logx.Int("async.workers", newCfg.Async.Workers))
	}
	if !reflect.DeepEqual(oldCfg.Cron, newCfg.Cron) {
		mark("cron",
			logx.Bool("cron.enabled", newCfg.Cron.Enabled),
			logx.String("cron.timezone", newCfg.Cron.Timezone),
			logx.Int("cron.jobs", len(newCfg.Cron.Jobs)),
		)
	}
	if oldCfg.Demo != newCfg.Demo {
		mark("demo")
	}
	if oldCfg.Debug != newCfg.Debug {
		// Token is never logged.
		mark("debug", logx.Bool("debug.enabled", newCfg.Debug.Enabled), logx.String("debug.addr", newCfg.Debug.Addr))
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		mark("storage")
	}
	if !reflect.DeepEqual(oldCfg.Tracing, newCfg.Tracing) {
		mark("tracing")
	}
	return c
}
