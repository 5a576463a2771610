package physics

import "math"

// GroundModel describes how a landed ball hops and then rolls.
type GroundModel struct {
	Restitution   float64 `json:"restitution" yaml:"restitution"`
	Retention     float64 `json:"retention" yaml:"retention"`
	RollThreshold float64 `json:"roll_threshold" yaml:"roll_threshold"`
	RollDecel     float64 `json:"roll_decel" yaml:"roll_decel"`
	MaxHops       int     `json:"max_hops" yaml:"max_hops"`
}

// DefaultGroundModel approximates a grass infield and outfield.
func DefaultGroundModel() GroundModel {
	return GroundModel{Restitution: 0.5, Retention: 0.8, RollThreshold: 3, RollDecel: 10, MaxHops: 6}
}

// Validate checks the surface constants.
func (g GroundModel) Validate() error {
	switch {
	case !(g.Restitution >= 0 && g.Restitution < 1):
		return configErr("ground.restitution", "must be within [0, 1)")
	case !(g.Retention >= 0 && g.Retention <= 1):
		return configErr("ground.retention", "must be within [0, 1]")
	case g.RollThreshold < 0:
		return configErr("ground.roll_threshold", "must not be negative")
	case !(g.RollDecel > 0):
		return configErr("ground.roll_decel", "must be positive")
	case g.MaxHops < 0:
		return configErr("ground.max_hops", "must not be negative")
	}
	return nil
}

// Boundary reports whether a ground point lies beyond the playable field.
type Boundary func(p Vec3) bool

// GroundPath is everything that happens after the first landing: a series of
// integrated hops followed by a constant-deceleration roll.
type GroundPath struct {
	Hops      []*Trajectory
	RollStart Sample
	RollDecel float64
	RollEnd   Sample
}

// RollOut continues a landed ball along the ground until it stops or reaches the boundary.
func RollOut(env Environment, ball ProjectileParams, landing Sample, model GroundModel, boundary Boundary, opts Options) (*GroundPath, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	path := &GroundPath{RollDecel: model.RollDecel}
	cur := landing
	cur.Position[2] = opts.GroundHeight
	//1.- Bounce while the rebound is strong enough to leave the ground again.
	for hop := 0; hop < model.MaxHops; hop++ {
		rebound := Vec3{cur.Velocity.X() * model.Retention, cur.Velocity.Y() * model.Retention, -cur.Velocity.Z() * model.Restitution}
		cur.Velocity = rebound
		if rebound.Z() < model.RollThreshold {
			break
		}
		hopOpts := opts
		hopOpts.Plane = nil
		tr, err := Integrate(env, ball, Launch{Position: cur.Position, Velocity: rebound, Time: cur.T}, hopOpts)
		if err != nil {
			return nil, err
		}
		path.Hops = append(path.Hops, tr)
		cur = tr.End()
		cur.Position[2] = opts.GroundHeight
		if boundary != nil && boundary(cur.Position) {
			cur.Velocity = Vec3{}
			break
		}
	}
	//2.- Roll in a straight line, decelerating to rest or stopping at the boundary.
	cur.Velocity[2] = 0
	path.RollStart = cur
	speed := cur.Velocity.Len()
	stopTime := speed / model.RollDecel
	if boundary != nil && speed > 0 && boundary(path.rollPosition(stopTime)) {
		lo, hi := 0.0, stopTime
		for i := 0; i < 40; i++ {
			mid := (lo + hi) / 2
			if boundary(path.rollPosition(mid)) {
				hi = mid
			} else {
				lo = mid
			}
		}
		stopTime = lo
	}
	path.RollEnd = Sample{T: cur.T + stopTime, Position: path.rollPosition(stopTime)}
	return path, nil
}

func (g *GroundPath) rollPosition(elapsed float64) Vec3 {
	v := g.RollStart.Velocity
	speed := v.Len()
	if speed == 0 {
		return g.RollStart.Position
	}
	elapsed = math.Min(elapsed, speed/g.RollDecel)
	distance := speed*elapsed - 0.5*g.RollDecel*elapsed*elapsed
	return g.RollStart.Position.Add(v.Mul(distance / speed))
}

// At returns the ball state at time t along the ground path.
func (g *GroundPath) At(t float64) Sample {
	for _, hop := range g.Hops {
		if t < hop.End().T {
			return hop.At(t)
		}
	}
	if t >= g.RollEnd.T {
		return Sample{T: t, Position: g.RollEnd.Position}
	}
	elapsed := math.Max(0, t-g.RollStart.T)
	v := g.RollStart.Velocity
	speed := v.Len()
	remaining := math.Max(0, speed-g.RollDecel*elapsed)
	var vel Vec3
	if speed > 0 {
		vel = v.Mul(remaining / speed)
	}
	return Sample{T: t, Position: g.rollPosition(elapsed), Velocity: vel}
}

// BallPhase classifies the ball along its whole path.
type BallPhase int

const (
	PhaseAir BallPhase = iota
	PhaseBouncing
	PhaseRolling
	PhaseAtRest
)

func (p BallPhase) String() string {
	return [...]string{"air", "bouncing", "rolling", "at_rest"}[p]
}

// BallPath joins the initial flight with the ground path that follows it.
type BallPath struct {
	Flight *Trajectory
	Ground *GroundPath
}

// Landed reports whether the first flight ended on the ground.
func (b *BallPath) Landed() bool { return b.Flight.Termination == TerminatedGround }

// LandingTime is when the first flight ends.
func (b *BallPath) LandingTime() float64 { return b.Flight.End().T }

// RestTime is when the ball stops moving.
func (b *BallPath) RestTime() float64 {
	if b.Ground == nil {
		return b.Flight.End().T
	}
	return b.Ground.RollEnd.T
}

// At returns the ball state and phase at time t.
func (b *BallPath) At(t float64) (Sample, BallPhase) {
	if t < b.Flight.End().T {
		return b.Flight.At(t), PhaseAir
	}
	if b.Ground == nil {
		rest := b.Flight.End()
		rest.T, rest.Velocity = t, Vec3{}
		return rest, PhaseAtRest
	}
	s := b.Ground.At(t)
	switch {
	case t >= b.Ground.RollEnd.T:
		return s, PhaseAtRest
	case t < b.Ground.RollStart.T:
		return s, PhaseBouncing
	default:
		return s, PhaseRolling
	}
}
