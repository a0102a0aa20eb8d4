package runnable

import (
	"sync"

	"regionsched/internal/schedule"
	"regionsched/internal/world"
)

// PollOutcome is where a Poller run stands. Everything but Polling is final.
type PollOutcome uint8

const (
	Polling PollOutcome = iota
	Invalidated
	Exhausted
	Failed
	Succeeded
)

func (o PollOutcome) String() string {
	switch o {
	case Polling:
		return "polling"
	case Invalidated:
		return "invalidated"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	case Succeeded:
		return "succeeded"
	default:
		return "unknown"
	}
}

// Checks are the caller's predicates against the watched item.
type Checks[T world.Entity] struct {
	// Success is required.
	Success func(T) bool
	// Fail defaults to never.
	Fail func(T) bool
	// OnSuccess runs once, before the schedule is cancelled.
	OnSuccess func(T)
}

// Poller checks an item once per firing, at most MaxRuns fruitless times.
//
// Each step, in order: an invalid item ends the run silently; a spent
// budget ends it silently; Fail ends it; Success runs OnSuccess and ends it.
// Otherwise the attempt is counted, and the run ends once the count
// reaches the budget. Timing out has no hook of its own.
type Poller[T world.Entity] struct {
	item    T
	maxRuns int64
	checks  Checks[T]

	mu      sync.Mutex
	counter int64
	outcome PollOutcome
	task    schedule.Task
}

func NewPoller[T world.Entity](item T, maxRuns int64, checks Checks[T]) (*Poller[T], error) {
	if checks.Success == nil {
		return nil, ErrNoSuccessCheck
	}
	if maxRuns < 0 {
		return nil, ErrInvalidMaxRuns
	}
	return &Poller[T]{item: item, maxRuns: maxRuns, checks: checks}, nil
}

// Schedule polls every period ticks on the thread owning the item.
func (p *Poller[T]) Schedule(s *schedule.Scheduler, delay, period int64) (schedule.Task, error) {
	t, err := s.RunEntityTimer(p.item, func(self schedule.Task) {
		p.SetTask(self)
		p.Step()
	}, p.invalidate, delay, period)
	if err != nil {
		return t, err
	}
	p.SetTask(t)
	return t, nil
}

// SetTask binds the schedule the Poller cancels when it finishes.
func (p *Poller[T]) SetTask(t schedule.Task) {
	p.mu.Lock()
	p.task = t
	p.mu.Unlock()
}

func (p *Poller[T]) Outcome() PollOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}

func (p *Poller[T]) Attempts() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counter
}

// Step is one polling attempt. Steps after the run finished do nothing.
// The checks run without the Poller's lock, so they may read Attempts or
// Outcome; a step that finds the run finished meanwhile changes nothing.
func (p *Poller[T]) Step() PollOutcome {
	p.mu.Lock()
	out, counter := p.outcome, p.counter
	p.mu.Unlock()
	if out != Polling {
		return out
	}

	next := Polling
	switch {
	case !p.item.IsValid():
		next = Invalidated
	case counter >= p.maxRuns:
		next = Exhausted
	case p.checks.Fail != nil && p.checks.Fail(p.item):
		next = Failed
	case p.checks.Success(p.item):
		next = Succeeded
	}

	p.mu.Lock()
	if p.outcome != Polling {
		out := p.outcome
		p.mu.Unlock()
		return out
	}
	if next == Polling {
		p.counter++
		if p.counter >= p.maxRuns {
			next = Exhausted
		}
	}
	p.outcome = next
	task := p.task
	p.mu.Unlock()

	if next == Succeeded && p.checks.OnSuccess != nil {
		p.checks.OnSuccess(p.item)
	}
	if next != Polling {
		task.Cancel()
	}
	return next
}

// invalidate is the retired callback: the item went away between firings.
func (p *Poller[T]) invalidate() {
	p.mu.Lock()
	if p.outcome == Polling {
		p.outcome = Invalidated
	}
	task := p.task
	p.mu.Unlock()
	task.Cancel()
}
