package physics

import (
	"math"
	"sort"
)

const (
	// DefaultStep is the integration step in seconds.
	DefaultStep = 0.001
	// MinStep and MaxStep bound caller supplied steps.
	MinStep = 0.0001
	MaxStep = 0.005
	// DefaultMaxTime caps any single flight.
	DefaultMaxTime = 12.0

	divergenceRetries = 2
)

// Termination records why a flight stopped.
type Termination int

const (
	TerminatedTimeout Termination = iota
	TerminatedGround
	TerminatedPlane
)

func (t Termination) String() string {
	switch t {
	case TerminatedGround:
		return "ground"
	case TerminatedPlane:
		return "plane"
	default:
		return "timeout"
	}
}

// Plane is an intercept surface. A flight crosses it when it moves from the
// back side to the side Normal points at.
type Plane struct {
	Point  Vec3
	Normal Vec3
}

func (p Plane) side(x Vec3) float64 { return p.Normal.Dot(x.Sub(p.Point)) }

// Options tune a single integration run.
type Options struct {
	Step         float64
	MaxTime      float64
	GroundHeight float64
	Plane        *Plane
}

func (o Options) withDefaults() Options {
	if o.Step == 0 {
		o.Step = DefaultStep
	}
	if o.MaxTime == 0 {
		o.MaxTime = DefaultMaxTime
	}
	return o
}

func (o Options) validate() error {
	if !(o.Step >= MinStep && o.Step <= MaxStep) {
		return configErr("step", "must be within [%g, %g], got %v", MinStep, MaxStep, o.Step)
	}
	if !(o.MaxTime > 0) || math.IsInf(o.MaxTime, 0) {
		return configErr("max_time", "must be positive, got %v", o.MaxTime)
	}
	if o.Plane != nil && !(o.Plane.Normal.Len() > 0) {
		return configErr("plane.normal", "must be a non-zero vector")
	}
	return nil
}

// Launch is the initial state of a flight on the shared play clock.
type Launch struct {
	Position Vec3
	Velocity Vec3
	Spin     Spin
	Time     float64
}

// Sample is one integrated state.
type Sample struct {
	T        float64 `msgpack:"t"`
	Position Vec3    `msgpack:"p"`
	Velocity Vec3    `msgpack:"v"`
}

// Trajectory is the ordered sample sequence of one flight.
type Trajectory struct {
	Samples     []Sample
	Termination Termination
	Step        float64
}

// Integrate flies the projectile under gravity, drag and Magnus lift until it
// reaches the ground, crosses the optional plane or exhausts MaxTime.
func Integrate(env Environment, ball ProjectileParams, launch Launch, opts Options) (*Trajectory, error) {
	//1.- Reject degenerate inputs before touching the state.
	opts = opts.withDefaults()
	if err := env.Validate(); err != nil {
		return nil, err
	}
	if err := ball.Validate(); err != nil {
		return nil, err
	}
	if err := launch.Spin.validate(); err != nil {
		return nil, err
	}
	if !finiteVec(launch.Position) || !finiteVec(launch.Velocity) {
		return nil, configErr("launch", "position and velocity must be finite")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	model := newFlightModel(env, ball, launch.Spin)
	//2.- Retry a diverging flight with a finer step before surfacing the failure.
	step := opts.Step
	var lastErr error
	for attempt := 0; attempt <= divergenceRetries; attempt++ {
		tr, err := model.run(launch, opts, step)
		if err == nil {
			return tr, nil
		}
		lastErr = err
		step /= 4
	}
	return nil, lastErr
}

type flightModel struct {
	gravity  float64
	wind     Vec3
	scale    float64
	radiusFt float64
	omega    float64
	axis     Vec3
	aero     Aerodynamics
}

func newFlightModel(env Environment, ball ProjectileParams, spin Spin) *flightModel {
	return &flightModel{
		gravity:  env.Gravity,
		wind:     env.Wind,
		scale:    ball.forceScale(env.AirDensity),
		radiusFt: ball.RadiusFt(),
		omega:    spin.RadPerSec(),
		axis:     Direction(spin.Axis),
		aero:     ball.Aero,
	}
}

func (m *flightModel) accel(v Vec3) Vec3 {
	a := Vec3{0, 0, -m.gravity}
	rel := v.Sub(m.wind)
	speed := rel.Len()
	if speed == 0 {
		return a
	}
	cd, cl := m.aero.Coefficients(m.omega * m.radiusFt / speed)
	q := m.scale * speed * speed
	//1.- Drag opposes the air-relative velocity.
	a = a.Sub(rel.Mul(q * cd / speed))
	//2.- Lift acts along axis × v_rel and vanishes when the two are parallel.
	if m.omega > 0 {
		dir := m.axis.Cross(rel)
		if n := dir.Len(); n > 0 {
			a = a.Add(dir.Mul(q * cl / n))
		}
	}
	return a
}

func (m *flightModel) rk4(s Sample, h float64) Sample {
	v1 := s.Velocity
	a1 := m.accel(v1)
	v2 := v1.Add(a1.Mul(h / 2))
	a2 := m.accel(v2)
	v3 := v1.Add(a2.Mul(h / 2))
	a3 := m.accel(v3)
	v4 := v1.Add(a3.Mul(h))
	a4 := m.accel(v4)
	return Sample{
		T:        s.T + h,
		Position: s.Position.Add(v1.Add(v2.Mul(2)).Add(v3.Mul(2)).Add(v4).Mul(h / 6)),
		Velocity: v1.Add(a1.Add(a2.Mul(2)).Add(a3.Mul(2)).Add(a4).Mul(h / 6)),
	}
}

func (m *flightModel) run(launch Launch, opts Options, step float64) (*Trajectory, error) {
	ground := opts.GroundHeight
	capacity := int(math.Min(opts.MaxTime/step, 16384)) + 2
	cur := Sample{T: launch.Time, Position: launch.Position, Velocity: launch.Velocity}
	tr := &Trajectory{Samples: make([]Sample, 0, capacity), Step: step}
	tr.Samples = append(tr.Samples, cur)
	//1.- A ball resting on or moving into the ground has already landed.
	if cur.Position.Z() <= ground && cur.Velocity.Z() <= 0 {
		tr.Termination = TerminatedGround
		return tr, nil
	}
	end := launch.Time + opts.MaxTime
	for cur.T < end {
		next := m.rk4(cur, math.Min(step, end-cur.T))
		if !finiteVec(next.Position) || !finiteVec(next.Velocity) {
			return nil, &IntegrationError{Time: cur.T, Step: step, Reason: "state is no longer finite"}
		}
		//2.- Find the earliest crossing inside this step and interpolate to it.
		frac, kind := 2.0, TerminatedTimeout
		if prev := cur.Position.Z(); prev > ground && next.Position.Z() <= ground {
			frac, kind = (prev-ground)/(prev-next.Position.Z()), TerminatedGround
		}
		if opts.Plane != nil {
			before, after := opts.Plane.side(cur.Position), opts.Plane.side(next.Position)
			if before < 0 && after >= 0 {
				if f := before / (before - after); f < frac {
					frac, kind = f, TerminatedPlane
				}
			}
		}
		if kind != TerminatedTimeout {
			tr.Samples = append(tr.Samples, interpolateSample(cur, next, frac))
			tr.Termination = kind
			return tr, nil
		}
		tr.Samples = append(tr.Samples, next)
		cur = next
	}
	tr.Termination = TerminatedTimeout
	return tr, nil
}

func interpolateSample(a, b Sample, f float64) Sample {
	return Sample{
		T:        a.T + (b.T-a.T)*f,
		Position: lerpVec(a.Position, b.Position, f),
		Velocity: lerpVec(a.Velocity, b.Velocity, f),
	}
}

// Start returns the launch sample.
func (tr *Trajectory) Start() Sample { return tr.Samples[0] }

// End returns the terminal sample.
func (tr *Trajectory) End() Sample { return tr.Samples[len(tr.Samples)-1] }

// Duration is the hang time of the flight.
func (tr *Trajectory) Duration() float64 { return tr.End().T - tr.Start().T }

// Carry is the horizontal distance between launch and the terminal sample.
func (tr *Trajectory) Carry() float64 {
	return HorizontalDistance(tr.Start().Position, tr.End().Position)
}

// At interpolates the state at time t, clamped to the flight interval.
func (tr *Trajectory) At(t float64) Sample {
	n := len(tr.Samples)
	if t <= tr.Samples[0].T {
		return tr.Samples[0]
	}
	if t >= tr.Samples[n-1].T {
		return tr.Samples[n-1]
	}
	i := sort.Search(n, func(i int) bool { return tr.Samples[i].T >= t })
	a, b := tr.Samples[i-1], tr.Samples[i]
	if b.T == a.T {
		return b
	}
	return interpolateSample(a, b, (t-a.T)/(b.T-a.T))
}

// Apex returns the highest sample.
func (tr *Trajectory) Apex() Sample {
	best := tr.Samples[0]
	for _, s := range tr.Samples[1:] {
		if s.Position.Z() > best.Position.Z() {
			best = s
		}
	}
	return best
}

// FirstWhere returns the earliest sample satisfying match.
func (tr *Trajectory) FirstWhere(match func(Sample) bool) (Sample, bool) {
	for _, s := range tr.Samples {
		if match(s) {
			return s, true
		}
	}
	return Sample{}, false
}
