package physics

import "math"

// Spin is a rotation rate about a unit axis. The Magnus force points along
// Axis × v, so backspin on a ball travelling along d has its axis along d × ẑ.
type Spin struct {
	RateRPM float64 `json:"rate_rpm" yaml:"rate_rpm"`
	Axis    Vec3    `json:"axis" yaml:"axis"`
}

// BackspinSidespin composes backspin and sidespin for a ball heading along
// direction. Positive sidespin curves the ball to the left of its direction of
// travel; negative backspin is topspin.
func BackspinSidespin(direction Vec3, backspinRPM, sidespinRPM float64) Spin {
	//1.- Build the backspin axis from the horizontal heading.
	heading := Direction(Horizontal(direction))
	if heading == (Vec3{}) {
		heading = Vec3{0, 1, 0}
	}
	back := heading.Cross(Vec3{0, 0, 1})
	//2.- Sum both components as an angular velocity and split it back into rate and axis.
	omega := back.Mul(backspinRPM).Add(Vec3{0, 0, sidespinRPM})
	rate := omega.Len()
	if rate == 0 {
		return Spin{}
	}
	return Spin{RateRPM: rate, Axis: omega.Mul(1 / rate)}
}

// RadPerSec converts the spin rate into rad/s.
func (s Spin) RadPerSec() float64 { return s.RateRPM * rpmToRadPerSec }

func (s Spin) validate() error {
	if s.RateRPM < 0 || math.IsNaN(s.RateRPM) || math.IsInf(s.RateRPM, 0) {
		return configErr("spin.rate_rpm", "must be a non-negative finite value, got %v", s.RateRPM)
	}
	if s.RateRPM > 0 {
		if l := s.Axis.Len(); !(l > 0) || math.IsInf(l, 0) {
			return configErr("spin.axis", "must be a non-zero finite vector")
		}
	}
	return nil
}
