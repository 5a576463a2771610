package fielding

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"

	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/physics"
)

// minThrowDistance below which a fielder walks the ball to the base instead.
const minThrowDistance = 3.0

var errOutOfRange = errors.New("target is beyond the fielder's throwing range")

// ThrowRecord is one throw from release to its arrival at the target plane.
type ThrowRecord struct {
	From         field.Position      `json:"from"`
	To           field.Position      `json:"to"`
	Target       field.Base          `json:"target"`
	Release      physics.Vec3        `json:"release"`
	ReleaseTime  float64             `json:"release_time"`
	Arrival      float64             `json:"arrival"`
	Crossing     physics.Vec3        `json:"crossing"`
	Miss         float64             `json:"miss"`
	Error        bool                `json:"error"`
	Flight       *physics.Trajectory `json:"-"`
	Continuation *physics.Trajectory `json:"-"`
}

// Throw releases a throw from the fielder at from after their transfer delay,
// aimed at a point TargetHeight above the base, with Gaussian aim error.
func (r *Resolver) Throw(thrower Fielder, from physics.Vec3, control float64, receiver field.Position, target field.Base, rng *rand.Rand) (*ThrowRecord, error) {
	//1.- Fix the release and target points on the play clock.
	release := physics.Vec3{from.X(), from.Y(), r.opts.ReleaseHeight}
	aimPoint := target.Position().Add(physics.Vec3{0, 0, r.opts.TargetHeight})
	distance := physics.HorizontalDistance(release, aimPoint)
	if distance < minThrowDistance {
		return nil, &physics.UnreachableTargetWarning{Actor: thrower.Position.String(), Target: aimPoint, Reason: "fielder is standing on the base"}
	}
	heading := physics.Direction(physics.Horizontal(aimPoint.Sub(release)))
	plane := &physics.Plane{Point: aimPoint, Normal: heading}
	record := &ThrowRecord{
		From:        thrower.Position,
		To:          receiver,
		Target:      target,
		Release:     release,
		ReleaseTime: control + thrower.TransferDelay,
	}
	speed := physics.MPH(thrower.ThrowSpeedMPH)
	yaw := math.Atan2(heading.Y(), heading.X())
	//2.- Solve the elevation that puts an error-free throw on the target.
	elevation, err := r.aim(release, aimPoint, plane, speed, yaw, record.ReleaseTime)
	if err != nil {
		return nil, &physics.UnreachableTargetWarning{Actor: thrower.Position.String(), Target: aimPoint, Reason: err.Error()}
	}
	//3.- Perturb the aim by the fielder's accuracy and fly the real throw.
	if sigma := mgl64.DegToRad(thrower.ThrowAccuracyDeg); sigma > 0 && rng != nil {
		yaw += rng.NormFloat64() * sigma
		elevation += rng.NormFloat64() * sigma
	}
	flight, err := r.fly(release, speed, yaw, elevation, plane, record.ReleaseTime)
	if err != nil {
		return nil, err
	}
	end := flight.End()
	record.Flight = flight
	record.Arrival = end.T
	record.Crossing = end.Position
	record.Miss = end.Position.Sub(aimPoint).Len()
	record.Error = flight.Termination != physics.TerminatedPlane || record.Miss > r.opts.ErrorThreshold
	//4.- A wild throw keeps going past the receiver.
	if record.Error && flight.Termination == physics.TerminatedPlane {
		cont, err := physics.Integrate(r.env, r.ball, physics.Launch{
			Position: end.Position,
			Velocity: end.Velocity,
			Spin:     physics.BackspinSidespin(end.Velocity, r.opts.ThrowBackspinRPM, 0),
			Time:     end.T,
		}, physics.Options{Step: r.opts.IntegrationStep})
		if err != nil {
			return nil, err
		}
		record.Continuation = cont
	}
	return record, nil
}

func (r *Resolver) launch(release physics.Vec3, speed, yaw, elevation, at float64) physics.Launch {
	horizontal := speed * math.Cos(elevation)
	velocity := physics.Vec3{horizontal * math.Cos(yaw), horizontal * math.Sin(yaw), speed * math.Sin(elevation)}
	return physics.Launch{
		Position: release,
		Velocity: velocity,
		Spin:     physics.BackspinSidespin(velocity, r.opts.ThrowBackspinRPM, 0),
		Time:     at,
	}
}

func (r *Resolver) fly(release physics.Vec3, speed, yaw, elevation float64, plane *physics.Plane, at float64) (*physics.Trajectory, error) {
	return physics.Integrate(r.env, r.ball, r.launch(release, speed, yaw, elevation, at), physics.Options{Step: r.opts.IntegrationStep, Plane: plane})
}

// aim bisects the release elevation so the throw crosses the target plane at the target height.
func (r *Resolver) aim(release, aimPoint physics.Vec3, plane *physics.Plane, speed, yaw, at float64) (float64, error) {
	miss := func(elevation float64) (float64, error) {
		tr, err := r.fly(release, speed, yaw, elevation, plane, at)
		if err != nil {
			return 0, err
		}
		if tr.Termination != physics.TerminatedPlane {
			return math.Inf(-1), nil
		}
		return tr.End().Position.Z() - aimPoint.Z(), nil
	}
	lo, hi := mgl64.DegToRad(-45), mgl64.DegToRad(45)
	high, err := miss(hi)
	if err != nil {
		return 0, err
	}
	if high < 0 {
		return 0, errOutOfRange
	}
	for i := 0; i < 40; i++ {
		mid := (lo + hi) / 2
		m, err := miss(mid)
		if err != nil {
			return 0, err
		}
		if m < 0 {
			lo = mid
		} else {
			hi = mid
		}
		if math.Abs(m) < 0.01 {
			return mid, nil
		}
	}
	return (lo + hi) / 2, nil
}
