package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"regionsched/internal/config"
	"regionsched/internal/task/cron"
	logx "regionsched/pkg/logx"
)

// syncJobs makes the cron job set match jobs: new and changed jobs are
// (re)registered, dropped ones removed.
func (a *App) syncJobs(jobs []config.CronJobConfig) error {
	var errs []error
	want := make(map[string]bool, len(jobs))
	for _, j := range jobs {
		want[j.Name] = true
		target := cron.TargetGlobal
		if j.Target == "async" {
			target = cron.TargetAsync
		}
		if err := a.cron.Add(j.Name, j.Schedule, target, a.jobAction(j)); err != nil {
			errs = append(errs, fmt.Errorf("cron job %s: %w", j.Name, err))
		}
	}
	for name := range a.jobs {
		if !want[name] {
			a.cron.Remove(name)
		}
	}
	a.jobs = want
	return errors.Join(errs...)
}

func (a *App) jobAction(j config.CronJobConfig) func() {
	log := a.log.With(logx.String("job", j.Name))
	switch j.Action {
	case "gc":
		return func() { a.pruneHistory(log) }
	default:
		return func() { a.logSnapshot(log) }
	}
}

// pruneHistory drops history older than storage.retention.
func (a *App) pruneHistory(log logx.Logger) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	n, err := a.store.Prune(ctx, time.Now().Add(-a.res.StorageRetention))
	if err != nil {
		log.Warn("history prune failed", logx.Err(err))
		return
	}
	log.Info("history pruned", logx.Int64("rows", n))
}

func (a *App) logSnapshot(log logx.Logger) {
	st := a.Status(context.Background())
	var pending int
	var fired uint64
	for _, l := range st.Loops {
		pending += l.Pending
		fired += l.Fired
	}
	log.Info("scheduler snapshot",
		logx.String("mode", st.Mode),
		logx.Int("loops", len(st.Loops)),
		logx.Int("pending", pending),
		logx.Uint64("fired", fired),
		logx.Int("async_queue", st.Async.QueueLen),
		logx.Uint64("async_failed", st.Async.Failed),
	)
}
