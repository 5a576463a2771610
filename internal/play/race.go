package play

import (
	"math"

	"diamondsim/engine/internal/baserunning"
)

// Verdict is the call on a single runner.
type Verdict int

const (
	Safe Verdict = iota
	OutCall
)

func (v Verdict) String() string {
	if v == OutCall {
		return "out"
	}
	return "safe"
}

// Call rules a runner out only when the ball was controlled at the base more
// than epsilon before the runner arrived. Anything within epsilon is a tie and ties
// go to the runner. The same rule covers force and tag plays since the tag
// is applied the moment ball and runner meet.
func Call(control, arrival, epsilon float64) Verdict {
	if control < arrival-epsilon {
		return OutCall
	}
	return Safe
}

// race compares the ball's control time with the runner's arrival at their
// target. A runner still on their way is treated as arriving after now.
func race(control float64, runner *baserunning.Baserunner, epsilon float64) (Verdict, float64) {
	arrival, ok := runner.Arrival()
	if !ok {
		arrival = math.Inf(1)
	}
	return Call(control, arrival, epsilon), arrival
}
