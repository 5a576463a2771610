package baserunning

import (
	"math"

	"diamondsim/engine/internal/fielding"
)

// Options tune the running decisions.
type Options struct {
	TurnRadius    float64 `json:"turn_radius" yaml:"turn_radius"`       // ft
	PredictStep   float64 `json:"predict_step" yaml:"predict_step"`     // s
	Horizon       float64 `json:"horizon" yaml:"horizon"`               // s
	SafetyMargin  float64 `json:"safety_margin" yaml:"safety_margin"`   // s
	TagUpDepth    float64 `json:"tag_up_depth" yaml:"tag_up_depth"`     // ft
	TwoOutJump    float64 `json:"two_out_jump" yaml:"two_out_jump"`     // s off the reaction delay
	ContactJump   float64 `json:"contact_jump" yaml:"contact_jump"`     // s off the reaction delay on grounders
	SecondaryLead float64 `json:"secondary_lead" yaml:"secondary_lead"` // ft of walking lead when a grounder gets through
}

func DefaultOptions() Options {
	return Options{
		TurnRadius:    12,
		PredictStep:   0.005,
		Horizon:       20,
		SafetyMargin:  0.3,
		TagUpDepth:    250,
		TwoOutJump:    0.1,
		ContactJump:   0.05,
		SecondaryLead: 12,
	}
}

// Trigger is the event that releases a runner.
type Trigger int

const (
	// Hold keeps the runner off their base on a grounder until the ball gets
	// through the infield; a ball an infielder stops leaves them where they are.
	Hold Trigger = iota
	// OnContact sends the runner as soon as the ball is hit.
	OnContact
	// OnLanding holds the runner until the ball drops uncaught.
	OnLanding
)

func (t Trigger) String() string {
	switch t {
	case OnContact:
		return "on_contact"
	case OnLanding:
		return "on_landing"
	}
	return "hold"
}

// Plan is a runner's intent when the ball is hit.
type Plan struct {
	Trigger Trigger `json:"trigger"`
	Target  int     `json:"target"`
	Forced  bool    `json:"forced"`
	// Jump is taken off the runner's reaction delay.
	Jump float64 `json:"jump"`
}

// PlanFor picks the opening intent. The batter and everyone with two outs go
// on contact. Forced runners go on ground balls while other runners hold
// until the ball is through. On balls in the air runners wait on the bag
// until the ball lands.
func PlanFor(r Runner, forced bool, outs int, kind fielding.BattedBallType, opts Options) Plan {
	plan := Plan{Target: r.Start + 1, Forced: forced}
	switch {
	case r.IsBatter():
		plan.Trigger = OnContact
	case outs >= 2:
		plan.Trigger = OnContact
		plan.Jump = opts.TwoOutJump
	case kind != fielding.GroundBall:
		plan.Trigger = OnLanding
	case forced:
		plan.Trigger = OnContact
		plan.Jump = opts.ContactJump
	default:
		plan.Trigger = Hold
		plan.Target = r.Start
	}
	return plan
}

// TagsUp reports whether a runner on third scores after a catch at the given depth.
func TagsUp(r Runner, outs int, catchDepth float64, opts Options) bool {
	return r.Start == 3 && outs < 2 && catchDepth >= opts.TagUpDepth
}

// ShouldAdvance is the extra-base rule: take the next base only when the
// runner beats the ball there by at least the safety margin.
func ShouldAdvance(runnerArrival, ballArrival float64, opts Options) bool {
	if math.IsInf(ballArrival, 1) {
		return true
	}
	return runnerArrival+opts.SafetyMargin < ballArrival
}
