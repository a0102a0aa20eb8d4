package cron

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	rcron "github.com/robfig/cron/v3"

	logx "regionsched/pkg/logx"
)

var (
	ErrNameRequired    = errors.New("schedule name required")
	ErrInvalidSchedule = errors.New("invalid schedule")
	ErrNilJob          = errors.New("schedule job is nil")
)

// Target is where a trigger's job runs.
type Target uint8

const (
	// TargetGlobal runs the job on the global thread (or global region).
	TargetGlobal Target = iota
	// TargetAsync runs the job on the background pool.
	TargetAsync
)

func (t Target) String() string {
	if t == TargetAsync {
		return "async"
	}
	return "global"
}

// Submitter is the part of the schedule facade triggers go through.
type Submitter interface {
	Run(work func())
	RunAsync(work func())
}

type Config struct {
	Enabled  bool
	Timezone string // IANA name; empty means local time
	// MaxSpread caps the random delay added to the first run of an interval
	// schedule. 0 disables it.
	MaxSpread time.Duration
}

type scheduleDef struct {
	name    string
	spec    string
	target  Target
	job     func()
	entryID rcron.EntryID
	spread  time.Duration
	fired   *atomic.Uint64
}

// Service owns one robfig cron runner. Definitions survive Stop and are
// registered again on the next Start.
type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	sub Submitter

	parser rcron.Parser
	c      *rcron.Cron
	defs   []scheduleDef
}

type ScheduleInfo struct {
	Name   string        `json:"name"`
	Spec   string        `json:"spec"`
	Target string        `json:"target"`
	Spread time.Duration `json:"spread"`
	Next   time.Time     `json:"next"`
	Prev   time.Time     `json:"prev"`
	Fired  uint64        `json:"fired"`
}

type Snapshot struct {
	Enabled   bool           `json:"enabled"`
	Running   bool           `json:"running"`
	Timezone  string         `json:"timezone"`
	Schedules []ScheduleInfo `json:"schedules"`
}
