package cron

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	rcron "github.com/robfig/cron/v3"
)

type SpecKind int

const (
	SpecCron SpecKind = iota
	SpecInterval
)

// ParsedSpec is a schedule string sorted into cron or fixed interval.
type ParsedSpec struct {
	Kind  SpecKind
	Cron  string
	Every time.Duration
}

// ParseSchedule accepts "cron:" and "every:" prefixes to force a kind.
// Without one, anything containing spaces or starting with '@' is cron,
// HH:MM is an interval, and so is a Go duration.
func ParseSchedule(raw string) (ParsedSpec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ParsedSpec{}, fmt.Errorf("%w: empty", ErrInvalidSchedule)
	}
	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		expr := strings.TrimSpace(s[len("cron:"):])
		if expr == "" {
			return ParsedSpec{}, fmt.Errorf("%w: empty cron expression", ErrInvalidSchedule)
		}
		return ParsedSpec{Kind: SpecCron, Cron: expr}, nil
	case strings.HasPrefix(low, "every:"):
		d, err := parseInterval(s[len("every:"):])
		return ParsedSpec{Kind: SpecInterval, Every: d}, err
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return ParsedSpec{Kind: SpecCron, Cron: s}, nil
	}
	d, err := parseInterval(s)
	if err != nil {
		return ParsedSpec{}, fmt.Errorf("%w: %q (use cron like '*/5 * * * *', HH:MM, or a duration like '90s')", ErrInvalidSchedule, raw)
	}
	return ParsedSpec{Kind: SpecInterval, Every: d}, nil
}

func parseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	var d time.Duration
	if h, m, ok := strings.Cut(v, ":"); ok {
		hh, err1 := strconv.Atoi(h)
		mm, err2 := strconv.Atoi(m)
		if err1 != nil || err2 != nil || hh < 0 || mm < 0 || mm > 59 || len(m) != 2 {
			return 0, fmt.Errorf("%w: bad HH:MM %q", ErrInvalidSchedule, v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: interval must be > 0", ErrInvalidSchedule)
	}
	return d, nil
}

func parseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: time %q, expected HH:MM", ErrInvalidSchedule, s)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: hour in %q", ErrInvalidSchedule, s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: minute in %q", ErrInvalidSchedule, s)
	}
	return hour, minute, nil
}

// spreadSchedule delays the first run so schedules registered together do
// not all fire on the same second.
type spreadSchedule struct {
	base  rcron.Schedule
	first time.Time
}

func (s *spreadSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

func withStartupSpread(every time.Duration, now time.Time, maxSpread time.Duration) (rcron.Schedule, time.Duration) {
	base := rcron.Every(every)
	limit := min(every, maxSpread)
	if limit <= 0 {
		return base, 0
	}
	jitter := rand.N(limit)
	return &spreadSchedule{base: base, first: now.Add(every + jitter)}, jitter
}
