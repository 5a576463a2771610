package physics

import "math"

// Aerodynamics maps the spin factor S = ωr/|v| onto drag and lift coefficients.
// Lift rises with S and saturates at LiftMax; drag keeps a small spin-dependent term.
type Aerodynamics struct {
	DragBase      float64 `json:"drag_base" yaml:"drag_base"`
	DragSpin      float64 `json:"drag_spin" yaml:"drag_spin"`
	DragSpinScale float64 `json:"drag_spin_scale" yaml:"drag_spin_scale"`
	LiftMax       float64 `json:"lift_max" yaml:"lift_max"`
	LiftScale     float64 `json:"lift_scale" yaml:"lift_scale"`
}

// DefaultAerodynamics returns coefficients tuned for a regulation baseball.
func DefaultAerodynamics() Aerodynamics {
	return Aerodynamics{
		DragBase:      0.37,
		DragSpin:      0.03,
		DragSpinScale: 0.35,
		LiftMax:       0.36,
		LiftScale:     0.22,
	}
}

// Coefficients evaluates the drag and lift coefficients for a spin factor.
func (a Aerodynamics) Coefficients(spinFactor float64) (drag, lift float64) {
	if spinFactor < 0 {
		spinFactor = 0
	}
	drag = a.DragBase + a.DragSpin*math.Tanh(spinFactor/a.DragSpinScale)
	lift = a.LiftMax * math.Tanh(spinFactor/a.LiftScale)
	return drag, lift
}

// Validate rejects curves that would produce negative or undefined coefficients.
func (a Aerodynamics) Validate() error {
	switch {
	case !(a.DragBase > 0):
		return configErr("aero.drag_base", "must be positive")
	case a.DragSpin < 0:
		return configErr("aero.drag_spin", "must not be negative")
	case !(a.DragSpinScale > 0):
		return configErr("aero.drag_spin_scale", "must be positive")
	case a.LiftMax < 0:
		return configErr("aero.lift_max", "must not be negative")
	case !(a.LiftScale > 0):
		return configErr("aero.lift_scale", "must be positive")
	}
	return nil
}

// ProjectileParams describe the ball for the whole flight.
type ProjectileParams struct {
	MassKg  float64      `json:"mass_kg" yaml:"mass_kg"`
	RadiusM float64      `json:"radius_m" yaml:"radius_m"`
	Aero    Aerodynamics `json:"aero" yaml:"aero"`
}

// Baseball returns a regulation ball.
func Baseball() ProjectileParams {
	return ProjectileParams{MassKg: 0.145, RadiusM: 0.0365, Aero: DefaultAerodynamics()}
}

// Validate checks the projectile before integration.
func (p ProjectileParams) Validate() error {
	if !(p.MassKg > 0) || math.IsInf(p.MassKg, 0) {
		return configErr("mass_kg", "must be positive, got %v", p.MassKg)
	}
	if !(p.RadiusM > 0) || math.IsInf(p.RadiusM, 0) {
		return configErr("radius_m", "must be positive, got %v", p.RadiusM)
	}
	return p.Aero.Validate()
}

// RadiusFt is the ball radius in feet.
func (p ProjectileParams) RadiusFt() float64 { return p.RadiusM * feetPerMeter }

// forceScale returns ½ρA/m rescaled so that scale·C·|v|² is an acceleration in
// ft/s² when v is expressed in ft/s.
func (p ProjectileParams) forceScale(airDensity float64) float64 {
	area := math.Pi * p.RadiusM * p.RadiusM
	return 0.5 * airDensity * area / p.MassKg / feetPerMeter
}
