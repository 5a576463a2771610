package baserunning

import (
	"fmt"
	"math"

	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/kinematics"
	"diamondsim/engine/internal/physics"
)

// Status is where a runner stands in the play.
type Status int

const (
	Waiting Status = iota
	Running
	Safe
	Out
)

func (s Status) String() string {
	return [...]string{"waiting", "running", "safe", "out"}[s]
}

// Baserunner is the live entity for one runner during a play.
type Baserunner struct {
	Runner
	Plan      Plan
	opts      Options
	motion    kinematics.Attributes
	route     *field.Route
	mover     *kinematics.Mover
	status    Status
	outAt     float64
	contested bool
}

// NewBaserunner places the runner on their base with the given plan.
func NewBaserunner(r Runner, plan Plan, opts Options) *Baserunner {
	motion := r.Motion
	motion.ReactionDelay = math.Max(0, motion.ReactionDelay-plan.Jump)
	return &Baserunner{Runner: r, Plan: plan, opts: opts, motion: motion}
}

// Go releases the runner toward target at play time at. The runner is then
// caught up to now so they line up with the shared clock.
func (b *Baserunner) Go(at, now float64, target int) error {
	if b.status != Waiting {
		return fmt.Errorf("runner %d already %s", b.Start, b.status)
	}
	route, err := field.NewRoute(b.Start, target, b.opts.TurnRadius)
	if err != nil {
		return err
	}
	b.route = route
	b.contested = b.Plan.Forced
	b.mover = kinematics.NewMover(b.motion, route, b.moverOptions(at, target, b.contested))
	b.status = Running
	b.mover.Advance(now - at)
	return nil
}

// moverOptions picks how the run ends. The batter runs through first and an
// unchallenged runner crosses the plate; a contested base is slid into and
// any other base is braked onto.
func (b *Baserunner) moverOptions(at float64, target int, contested bool) kinematics.MoverOptions {
	through := (b.IsBatter() && target == 1) || (!contested && target == field.ScoreStation)
	opts := kinematics.MoverOptions{Start: at, StopAtEnd: !through, Slide: contested && !through}
	// Runners on the move at contact keep their lead and holders on a grounder
	// add the walking lead; runners waiting on a ball in the air went back to the bag.
	switch b.Plan.Trigger {
	case OnContact:
		opts.Offset = b.Lead
	case Hold:
		opts.Offset = b.Lead + b.opts.SecondaryLead
	}
	return opts
}

// Contest tells a running runner a play is coming at their base, so they
// slide into it.
func (b *Baserunner) Contest() {
	if b.status != Running || b.contested {
		return
	}
	b.contested = true
	b.mover.SetOptions(b.moverOptions(0, b.route.To, true))
}

// Contested reports whether the runner expects a play at their target.
func (b *Baserunner) Contested() bool { return b.contested }

// Extend sends a running runner on to a further base without losing ground.
func (b *Baserunner) Extend(target int) error {
	if b.status != Running || b.route == nil {
		return fmt.Errorf("runner %d is not running", b.Start)
	}
	route, err := b.route.Extend(target, b.mover.Distance())
	if err != nil {
		return err
	}
	b.route = route
	b.contested = false
	b.mover.Retarget(route)
	b.mover.SetOptions(b.moverOptions(0, target, false))
	return nil
}

// Advance moves a running runner along their route.
func (b *Baserunner) Advance(dt float64) {
	if b.status != Running {
		return
	}
	b.mover.Advance(dt)
}

// Target is the base the runner is heading for or holding.
func (b *Baserunner) Target() int {
	if b.route == nil {
		return b.Start
	}
	return b.route.To
}

// Arrival reports when the runner reached their target.
func (b *Baserunner) Arrival() (float64, bool) {
	if b.mover == nil {
		return 0, b.status != Out
	}
	return b.mover.Arrival()
}

// Arrived reports whether the runner stands on their target.
func (b *Baserunner) Arrived() bool {
	_, ok := b.Arrival()
	return ok && b.status != Out
}

// Reached is the furthest station the runner has touched.
func (b *Baserunner) Reached() int {
	if b.route == nil {
		return b.Start
	}
	reached := b.Start
	for station := b.Start + 1; station <= b.route.To; station++ {
		d, ok := b.route.TouchDistance(station)
		if !ok || b.mover.Distance() < d-1e-9 {
			break
		}
		reached = station
	}
	return reached
}

// Predict returns when the runner touches station if the defence makes a
// play there, so the runner slides in. Stations past the current target are
// answered for a hypothetical extension without disturbing the run.
func (b *Baserunner) Predict(station int) (float64, bool) {
	if b.status != Running {
		return 0, false
	}
	if arrival, ok := b.mover.Arrival(); ok && station == b.route.To {
		return arrival, true
	}
	route, mover := b.route, b.mover.Clone()
	if station > b.route.To {
		extended, err := b.route.Extend(station, b.mover.Distance())
		if err != nil {
			return 0, false
		}
		route = extended
		mover.Retarget(extended)
	}
	if station == route.To {
		mover.SetOptions(b.moverOptions(0, station, true))
	}
	d, ok := route.TouchDistance(station)
	if !ok {
		return 0, false
	}
	profile := kinematics.Predict(mover, b.opts.PredictStep, b.opts.Horizon)
	if station == route.To {
		return profile.Arrival()
	}
	return profile.TimeAt(d)
}

// MarkOut stops the runner where they are.
func (b *Baserunner) MarkOut(at float64) {
	b.status = Out
	b.outAt = at
}

// Settle marks a runner who holds or finished their run as safe.
func (b *Baserunner) Settle() {
	if b.status != Out {
		b.status = Safe
	}
}

// Position is the runner's ground point.
func (b *Baserunner) Position() physics.Vec3 {
	if b.mover == nil {
		return field.StationPosition(b.Start)
	}
	return b.mover.Position()
}

func (b *Baserunner) Status() Status  { return b.status }
func (b *Baserunner) OutAt() float64 { return b.outAt }
func (b *Baserunner) Speed() float64 {
	if b.mover == nil {
		return 0
	}
	return b.mover.Speed()
}
func (b *Baserunner) Sliding() bool { return b.mover != nil && b.mover.Sliding() }

// ArrivalTimes predicts when a runner leaving at start touches every base on
// the way home when sent all the way.
func ArrivalTimes(r Runner, start float64, opts Options) (map[int]float64, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	route, err := field.NewRoute(r.Start, field.ScoreStation, opts.TurnRadius)
	if err != nil {
		return nil, err
	}
	profile := kinematics.NewProfile(r.Motion, route, kinematics.MoverOptions{Start: start, StopAtEnd: true, Slide: true, Offset: r.Lead}, opts.PredictStep, opts.Horizon)
	times := make(map[int]float64, field.ScoreStation-r.Start)
	for station := r.Start + 1; station <= field.ScoreStation; station++ {
		d, _ := route.TouchDistance(station)
		t, ok := profile.TimeAt(d)
		if station == field.ScoreStation {
			t, ok = profile.Arrival()
		}
		if !ok {
			return nil, &physics.UnreachableTargetWarning{Actor: r.ID, Target: field.StationPosition(station), Reason: "runner did not reach the base within the horizon"}
		}
		times[station] = t
	}
	return times, nil
}
