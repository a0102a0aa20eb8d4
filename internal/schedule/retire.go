package schedule

import "regionsched/internal/world"

// Outcome is how one invocation of entity-bound work ended.
//
// Each firing of a repeating submission ends independently as Fired or
// Retired; Cancelled ends the whole series.
type Outcome uint8

const (
	Active Outcome = iota
	Fired
	Retired
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Active:
		return "active"
	case Fired:
		return "fired"
	case Retired:
		return "retired"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// invokeEntity runs work if e is still valid and retired otherwise. Never both.
// Retiring does not cancel a repeating series; retired may do that itself.
func invokeEntity(e world.Entity, work, retired func()) Outcome {
	if !e.IsValid() {
		if retired != nil {
			retired()
		}
		return Retired
	}
	work()
	return Fired
}
