package kinematics

import (
	"math"

	"diamondsim/engine/internal/physics"
)

// Attributes is the motion bundle shared by fielders and runners.
type Attributes struct {
	ReactionDelay float64 `json:"reaction_delay" yaml:"reaction_delay"` // s
	Acceleration  float64 `json:"acceleration" yaml:"acceleration"`     // ft/s²
	TopSpeed      float64 `json:"top_speed" yaml:"top_speed"`           // ft/s
	LateralAccel  float64 `json:"lateral_accel" yaml:"lateral_accel"`   // ft/s², centripetal cap
	SlideDecel    float64 `json:"slide_decel" yaml:"slide_decel"`       // ft/s²
	SlideTrigger  float64 `json:"slide_trigger" yaml:"slide_trigger"`   // ft
	SlideMinSpeed float64 `json:"slide_min_speed" yaml:"slide_min_speed"`
}

// DefaultRunner is a league-average runner: roughly 4.3 s home to first.
func DefaultRunner() Attributes {
	return Attributes{
		ReactionDelay: 0.25,
		Acceleration:  18,
		TopSpeed:      27.5,
		LateralAccel:  28,
		SlideDecel:    32,
		SlideTrigger:  12,
		SlideMinSpeed: 15,
	}
}

// DefaultFielder is a league-average fielder.
func DefaultFielder() Attributes {
	return Attributes{
		ReactionDelay: 0.3,
		Acceleration:  30,
		TopSpeed:      27,
		LateralAccel:  30,
	}
}

// Validate rejects bundles that would stall or teleport an actor.
func (a Attributes) Validate() error {
	switch {
	case a.ReactionDelay < 0 || math.IsNaN(a.ReactionDelay):
		return &physics.ConfigurationError{Field: "reaction_delay", Reason: "must not be negative"}
	case !(a.Acceleration > 0) || math.IsInf(a.Acceleration, 0):
		return &physics.ConfigurationError{Field: "acceleration", Reason: "must be positive"}
	case !(a.TopSpeed > 0) || math.IsInf(a.TopSpeed, 0):
		return &physics.ConfigurationError{Field: "top_speed", Reason: "must be positive"}
	case a.LateralAccel < 0:
		return &physics.ConfigurationError{Field: "lateral_accel", Reason: "must not be negative"}
	case a.SlideDecel < 0 || a.SlideTrigger < 0 || a.SlideMinSpeed < 0:
		return &physics.ConfigurationError{Field: "slide", Reason: "slide parameters must not be negative"}
	}
	return nil
}

// rampDistance is the distance covered while accelerating from rest to top speed.
func (a Attributes) rampDistance() float64 {
	return a.TopSpeed * a.TopSpeed / (2 * a.Acceleration)
}

// TimeToCover returns the time from the trigger event until the actor has
// covered distance d in a straight line, reaction delay included.
func (a Attributes) TimeToCover(d float64) float64 {
	if d <= 0 {
		return a.ReactionDelay
	}
	ramp := a.rampDistance()
	if d <= ramp {
		return a.ReactionDelay + math.Sqrt(2*d/a.Acceleration)
	}
	return a.ReactionDelay + a.TopSpeed/a.Acceleration + (d-ramp)/a.TopSpeed
}

// TimeToReach is TimeToCover for the ground distance between two points.
func (a Attributes) TimeToReach(from, to physics.Vec3) float64 {
	return a.TimeToCover(physics.HorizontalDistance(from, to))
}

// DistanceCovered is the inverse of TimeToCover: how far the actor gets in the
// given time since the trigger event.
func (a Attributes) DistanceCovered(elapsed float64) float64 {
	moving := elapsed - a.ReactionDelay
	if moving <= 0 {
		return 0
	}
	rampTime := a.TopSpeed / a.Acceleration
	if moving <= rampTime {
		return 0.5 * a.Acceleration * moving * moving
	}
	return a.rampDistance() + (moving-rampTime)*a.TopSpeed
}
