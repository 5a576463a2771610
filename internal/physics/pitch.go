package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

const (
	// PlateFrontY is the distance from the plate point to the front edge of home plate.
	PlateFrontY = 17.0 / 12.0
	// StrikeZoneHalfWidth is half the plate width in feet.
	StrikeZoneHalfWidth = 17.0 / 24.0
	StrikeZoneBottom    = 1.5
	StrikeZoneTop       = 3.5

	inchesPerFoot = 12.0
)

// DefaultReleasePoint is a typical over-the-top release six feet in front of the rubber.
var DefaultReleasePoint = Vec3{0, 54.5, 6}

// PitchRelease describes a pitch leaving the hand. Angles are in degrees:
// a negative vertical angle aims downhill and a positive horizontal angle aims
// toward the first-base side.
type PitchRelease struct {
	Name               string  `json:"name" yaml:"name"`
	SpeedMPH           float64 `json:"speed_mph" yaml:"speed_mph"`
	BackspinRPM        float64 `json:"backspin_rpm" yaml:"backspin_rpm"`
	SidespinRPM        float64 `json:"sidespin_rpm" yaml:"sidespin_rpm"`
	VerticalAngleDeg   float64 `json:"vertical_angle_deg" yaml:"vertical_angle_deg"`
	HorizontalAngleDeg float64 `json:"horizontal_angle_deg" yaml:"horizontal_angle_deg"`
	Release            Vec3    `json:"release" yaml:"release"`
}

// PitchResult is the state of a pitch at the front of home plate.
type PitchResult struct {
	Plate             Sample
	FlightTime        float64
	VerticalBreakIn   float64
	HorizontalBreakIn float64
	InStrikeZone      bool
	Trajectory        *Trajectory
}

// Four-seam, sinker, curveball, slider and changeup templates. Callers adjust
// speed, spin and angles around them.
func FourSeam() PitchRelease {
	return PitchRelease{Name: "four_seam", SpeedMPH: 93, BackspinRPM: 2200, VerticalAngleDeg: -2.2, Release: DefaultReleasePoint}
}

func Sinker() PitchRelease {
	return PitchRelease{Name: "sinker", SpeedMPH: 92, BackspinRPM: 1500, SidespinRPM: 1000, VerticalAngleDeg: -1.9, HorizontalAngleDeg: -1.0, Release: DefaultReleasePoint}
}

func Curveball() PitchRelease {
	return PitchRelease{Name: "curveball", SpeedMPH: 79, BackspinRPM: -2300, SidespinRPM: -700, VerticalAngleDeg: 2.5, HorizontalAngleDeg: 0.7, Release: DefaultReleasePoint}
}

func Slider() PitchRelease {
	return PitchRelease{Name: "slider", SpeedMPH: 85, BackspinRPM: 300, SidespinRPM: -2300, VerticalAngleDeg: -0.3, HorizontalAngleDeg: 2.0, Release: DefaultReleasePoint}
}

func Changeup() PitchRelease {
	return PitchRelease{Name: "changeup", SpeedMPH: 84, BackspinRPM: 1400, SidespinRPM: 800, VerticalAngleDeg: -1.3, HorizontalAngleDeg: -0.9, Release: DefaultReleasePoint}
}

// PitchTemplates lists the named templates in the order above.
func PitchTemplates() []PitchRelease {
	return []PitchRelease{FourSeam(), Sinker(), Curveball(), Slider(), Changeup()}
}

// PitchTemplate looks a template up by name.
func PitchTemplate(name string) (PitchRelease, bool) {
	for _, p := range PitchTemplates() {
		if p.Name == name {
			return p, true
		}
	}
	return PitchRelease{}, false
}

// launch converts the release description into an integrator launch toward the plate.
func (p PitchRelease) launch(withSpin bool) Launch {
	va := mgl64.DegToRad(p.VerticalAngleDeg)
	ha := mgl64.DegToRad(p.HorizontalAngleDeg)
	speed := MPH(p.SpeedMPH)
	horizontal := speed * math.Cos(va)
	velocity := Vec3{horizontal * math.Sin(ha), -horizontal * math.Cos(ha), speed * math.Sin(va)}
	launch := Launch{Position: p.Release, Velocity: velocity}
	if withSpin {
		launch.Spin = BackspinSidespin(velocity, p.BackspinRPM, p.SidespinRPM)
	}
	return launch
}

// SimulatePitch flies the pitch to the front edge of home plate and measures
// its break against the same release thrown without spin.
func SimulatePitch(env Environment, ball ProjectileParams, pitch PitchRelease, opts Options) (*PitchResult, error) {
	//1.- Treat a missing release point as the standard one.
	if pitch.Release == (Vec3{}) {
		pitch.Release = DefaultReleasePoint
	}
	if !(pitch.SpeedMPH > 0) {
		return nil, configErr("pitch.speed_mph", "must be positive")
	}
	opts.Plane = &Plane{Point: Vec3{0, PlateFrontY, 0}, Normal: Vec3{0, -1, 0}}
	//2.- Integrate the spinning pitch and a spinless reference to isolate the Magnus break.
	tr, err := Integrate(env, ball, pitch.launch(true), opts)
	if err != nil {
		return nil, err
	}
	reference, err := Integrate(env, ball, pitch.launch(false), opts)
	if err != nil {
		return nil, err
	}
	if tr.Termination != TerminatedPlane {
		return nil, &UnreachableTargetWarning{Actor: "pitch", Target: Vec3{0, PlateFrontY, 0}, Reason: "pitch terminated " + tr.Termination.String()}
	}
	plate := tr.End()
	result := &PitchResult{Plate: plate, FlightTime: tr.Duration(), Trajectory: tr}
	//3.- Break is the displacement from the spinless crossing point, in inches.
	offset := plate.Position.Sub(reference.End().Position)
	result.VerticalBreakIn = offset.Z() * inchesPerFoot
	result.HorizontalBreakIn = offset.X() * inchesPerFoot
	result.InStrikeZone = InStrikeZone(plate.Position, ball.RadiusFt())
	return result, nil
}

// InStrikeZone reports whether any part of the ball crosses the zone.
func InStrikeZone(p Vec3, radiusFt float64) bool {
	return math.Abs(p.X()) <= StrikeZoneHalfWidth+radiusFt &&
		p.Z() >= StrikeZoneBottom-radiusFt && p.Z() <= StrikeZoneTop+radiusFt
}
