package fielding

import (
	"fmt"
	"math"

	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/physics"
)

// infieldDepth is where a ground ball's direction decides the responsible infielder.
const infieldDepth = 110.0

// Kind tells how the ball was first controlled.
type Kind int

const (
	Caught Kind = iota + 1
	Fielded
	Retrieved
)

func (k Kind) String() string {
	switch k {
	case Caught:
		return "caught"
	case Fielded:
		return "fielded"
	case Retrieved:
		return "retrieved"
	}
	return "none"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(text []byte) error {
	for candidate := Caught; candidate <= Retrieved; candidate++ {
		if candidate.String() == string(text) {
			*k = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown play kind %q", text)
}

// Play is the first moment a fielder controls the ball.
type Play struct {
	Kind     Kind           `json:"kind"`
	Fielder  field.Position `json:"fielder"`
	Primary  field.Position `json:"primary"`
	Time     float64        `json:"time"`
	Location physics.Vec3   `json:"location"`
}

// Resolver decides who fields a batted ball and flies their throws.
type Resolver struct {
	env  physics.Environment
	ball physics.ProjectileParams
	opts Options
}

// NewResolver binds the per-play environment.
func NewResolver(env physics.Environment, ball physics.ProjectileParams, opts Options) *Resolver {
	return &Resolver{env: env, ball: ball, opts: opts}
}

// Options exposes the fielding constants.
func (r *Resolver) Options() Options { return r.opts }

// ResponsibleFor maps the ball path onto its primary fielder: the landing
// zone for balls in the air and the infield crossing point for grounders.
func ResponsibleFor(path *physics.BallPath, kind BattedBallType) field.Position {
	if kind != GroundBall || path.Ground == nil {
		return field.ResponsibleFielder(path.Flight.End().Position)
	}
	for t := path.LandingTime(); t <= path.RestTime(); t += 0.01 {
		s, _ := path.At(t)
		if field.DistanceFromHome(s.Position) >= infieldDepth {
			return field.ResponsibleFielder(s.Position)
		}
	}
	return field.ResponsibleFielder(path.Ground.RollEnd.Position)
}

// Field scans the ball path for the first moment the responsible fielder can
// control it. A ball that gets through the infield is retrieved by the
// outfielder behind it.
func (r *Resolver) Field(path *physics.BallPath, kind BattedBallType, defense Defense, contact float64) (Play, error) {
	//1.- Look up the primary fielder for the zone.
	primary := ResponsibleFor(path, kind)
	fielder, ok := defense[primary]
	if !ok {
		return Play{}, &physics.ConfigurationError{Field: "fielders", Reason: fmt.Sprintf("no fielder at %s", primary)}
	}
	zone := math.Inf(1)
	if primary.Infielder() {
		zone = field.DistanceFromHome(fielder.Location) + r.opts.InfieldRange
	}
	if play, ok := r.scan(path, fielder, zone, contact); ok {
		play.Primary = primary
		if play.Kind == Retrieved {
			play.Kind = Fielded
		}
		return play, nil
	}
	//2.- The ball got through: the outfielder behind the play retrieves it.
	retriever := primary
	if primary.Infielder() {
		rest := path.Flight.End().Position
		if path.Ground != nil {
			rest = path.Ground.RollEnd.Position
		}
		retriever = field.OutfielderBehind(rest)
	}
	backup, ok := defense[retriever]
	if !ok {
		return Play{}, &physics.ConfigurationError{Field: "fielders", Reason: fmt.Sprintf("no fielder at %s", retriever)}
	}
	play, ok := r.scan(path, backup, math.Inf(1), contact)
	if !ok {
		return Play{}, &physics.UnreachableTargetWarning{Actor: retriever.String(), Target: path.Flight.End().Position, Reason: "ball never reachable within the scan horizon"}
	}
	play.Primary = primary
	return play, nil
}

// scan walks the path and returns the earliest reachable sample.
func (r *Resolver) scan(path *physics.BallPath, f Fielder, zone, contact float64) (Play, bool) {
	reachable := func(t float64) (physics.Sample, physics.BallPhase, bool) {
		s, phase := path.At(t)
		if s.Position.Z() > r.opts.ReachHeight || field.DistanceFromHome(s.Position) > zone {
			return s, phase, false
		}
		arrive := contact + f.Motion.TimeToReach(f.Location, s.Position)
		if phase == physics.PhaseAir {
			return s, phase, arrive <= t+r.opts.CatchWindow
		}
		return s, phase, arrive <= t
	}
	end := path.RestTime() + r.opts.ScanHorizon
	prev := contact
	for t := contact; t <= end; t += r.opts.ScanStep {
		if _, _, ok := reachable(t); !ok {
			prev = t
			continue
		}
		//1.- Refine the first reachable moment inside the last scan interval.
		lo, hi := prev, t
		for i := 0; i < 30 && hi-lo > 1e-6; i++ {
			mid := (lo + hi) / 2
			if _, _, ok := reachable(mid); ok {
				hi = mid
			} else {
				lo = mid
			}
		}
		s, phase, _ := reachable(hi)
		kind := Retrieved
		if phase == physics.PhaseAir {
			kind = Caught
		}
		return Play{Kind: kind, Fielder: f.Position, Time: hi, Location: s.Position}, true
	}
	return Play{}, false
}
