package cron

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	rcron "github.com/robfig/cron/v3"

	logx "regionsched/pkg/logx"
)

func New(cfg Config, sub Submitter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg: cfg,
		sub: sub,
		log: log.With(logx.String("comp", "cron")),
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: rcron.NewParser(rcron.SecondOptional | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor),
	}
}

func (s *Service) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Enabled
}

// Apply swaps the config. A timezone change re-registers every schedule.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oldTZ := strings.TrimSpace(s.cfg.Timezone)
	s.cfg = cfg
	if s.c != nil && oldTZ != strings.TrimSpace(cfg.Timezone) {
		s.restartLocked()
	}
}

// Start begins triggering. It does nothing when disabled or already running.
func (s *Service) Start(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil || !s.cfg.Enabled {
		return
	}
	s.startLocked()
	s.log.Info("cron started", logx.String("tz", s.loc.String()), logx.Int("schedules", len(s.defs)))
}

func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	for i := range s.defs {
		s.defs[i].entryID = 0
	}
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("cron stopped")
}

func (s *Service) startLocked() {
	s.loc = s.loadLocationLocked()
	s.c = rcron.New(rcron.WithParser(s.parser), rcron.WithLocation(s.loc))
	for i := range s.defs {
		if err := s.registerLocked(&s.defs[i]); err != nil {
			s.log.Error("schedule register failed", logx.String("name", s.defs[i].name), logx.Err(err))
		}
	}
	s.c.Start()
}

func (s *Service) restartLocked() {
	<-s.c.Stop().Done()
	s.startLocked()
	s.log.Info("cron restarted", logx.String("tz", s.loc.String()))
}

// Add registers job under name, replacing any schedule with the same name.
//
// Accepted forms: cron ("*/5 * * * *", "@hourly", "@every 10s"), a Go
// duration ("90s"), or HH:MM as an interval ("01:30").
func (s *Service) Add(name, schedule string, target Target, job func()) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if job == nil {
		return ErrNilJob
	}
	ps, err := ParseSchedule(schedule)
	if err != nil {
		return err
	}
	spec := ps.Cron
	if ps.Kind == SpecInterval {
		spec = "@every " + ps.Every.String()
	} else if _, err := s.parser.Parse(spec); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidSchedule, spec, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	s.defs = append(s.defs, scheduleDef{name: name, spec: spec, target: target, job: job, fired: &atomic.Uint64{}})
	if s.c == nil {
		return nil
	}
	d := &s.defs[len(s.defs)-1]
	if err := s.registerLocked(d); err != nil {
		return err
	}
	s.log.Debug("schedule registered", logx.String("name", name), logx.String("spec", spec), logx.String("target", target.String()), logx.Duration("spread", d.spread))
	return nil
}

// AddDaily runs job every day at HH:MM in the service timezone.
func (s *Service) AddDaily(name, atHHMM string, target Target, job func()) error {
	h, m, err := parseClock(atHHMM)
	if err != nil {
		return err
	}
	return s.Add(name, fmt.Sprintf("cron:%d %d * * *", m, h), target, job)
}

// Remove reports whether a schedule named name existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.removeLocked(strings.TrimSpace(name))
	if removed {
		s.log.Debug("schedule removed", logx.String("name", name))
	}
	return removed
}

func (s *Service) removeLocked(name string) bool {
	n := 0
	removed := false
	for _, d := range s.defs {
		if d.name == name {
			if s.c != nil && d.entryID != 0 {
				s.c.Remove(d.entryID)
			}
			removed = true
			continue
		}
		s.defs[n] = d
		n++
	}
	s.defs = s.defs[:n]
	return removed
}

func (s *Service) registerLocked(d *scheduleDef) error {
	name, target, job, fired := d.name, d.target, d.job, d.fired
	trigger := rcron.FuncJob(func() {
		fired.Add(1)
		if target == TargetAsync {
			s.sub.RunAsync(job)
			return
		}
		s.sub.Run(job)
	})

	if every, ok := strings.CutPrefix(d.spec, "@every "); ok {
		if dur, err := time.ParseDuration(every); err == nil && dur > 0 {
			var sched rcron.Schedule
			sched, d.spread = withStartupSpread(dur, time.Now().In(s.loc), s.cfg.MaxSpread)
			d.entryID = s.c.Schedule(sched, trigger)
			return nil
		}
	}
	id, err := s.c.AddJob(d.spec, trigger)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidSchedule, name, err)
	}
	d.entryID = id
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Snapshot{Enabled: s.cfg.Enabled, Running: s.c != nil, Timezone: s.cfg.Timezone}
	if s.loc != nil {
		out.Timezone = s.loc.String()
	}
	for _, d := range s.defs {
		it := ScheduleInfo{Name: d.name, Spec: d.spec, Target: d.target.String(), Spread: d.spread, Fired: d.fired.Load()}
		if s.c != nil && d.entryID != 0 {
			e := s.c.Entry(d.entryID)
			it.Next, it.Prev = e.Next, e.Prev
		}
		out.Schedules = append(out.Schedules, it)
	}
	return out
}
