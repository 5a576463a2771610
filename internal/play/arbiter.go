package play

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/google/uuid"

	"diamondsim/engine/internal/baserunning"
	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/fielding"
	"diamondsim/engine/internal/kinematics"
	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/physics"
	"diamondsim/engine/internal/simulation"
)

const (
	// onBagDistance is how close a fielder must be to take the base without a throw.
	onBagDistance = 3.0
	// throwCarry discounts the release speed for the drag a throw suffers.
	throwCarry = 0.92
	// cancelCheckSteps is how often a long play looks at its context.
	cancelCheckSteps = 200
)

// State is the single owned aggregate of one play.
type State struct {
	ID    string    `json:"id"`
	Phase Phase     `json:"phase"`
	Ball  BallState `json:"ball"`
	Clock float64   `json:"clock"`
	Outs  int       `json:"outs"`
}

// Arbiter resolves plays. It keeps no per-play state and may be shared by
// concurrent callers; every call builds its own entities.
type Arbiter struct {
	opts   Options
	logger *logging.Logger
}

// NewArbiter validates the options and binds the logger used for warnings.
func NewArbiter(opts Options, logger *logging.Logger) (*Arbiter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.L()
	}
	return &Arbiter{opts: opts, logger: logger}, nil
}

// Options exposes the arbiter constants.
func (a *Arbiter) Options() Options { return a.opts }

// Resolve runs one play from contact to resolution. Configuration problems
// are returned as errors; a flight that diverges resolves the play as
// indeterminate with Outcome.Err set.
func (a *Arbiter) Resolve(ctx context.Context, in Input, observe Observer) (*Outcome, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	r := a.newResolution(ctx, in, observe)
	outcome, err := r.resolve()
	if err != nil {
		return r.failed(err)
	}
	return outcome, nil
}

type fielder struct {
	fielding.Fielder
	mover  *kinematics.Mover
	target physics.Vec3
}

func (f *fielder) Advance(dt float64) { f.mover.Advance(dt) }

func (f *fielder) position() physics.Vec3 {
	if f.mover == nil {
		return f.Location
	}
	return f.mover.Position()
}

func (f *fielder) speed() float64 {
	if f.mover == nil {
		return 0
	}
	return f.mover.Speed()
}

// run sends the fielder toward target as if the break came at start.
func (f *fielder) run(target physics.Vec3, start, now float64) {
	path := kinematics.Line{From: f.position(), To: target}
	f.target = target
	if path.Length() < 1e-6 {
		return
	}
	f.mover = kinematics.NewMover(f.Motion, path, kinematics.MoverOptions{Start: start, StopAtEnd: true})
	f.mover.Advance(now - start)
}

// arrivalAt is when the fielder can stand on target, given a break at start.
func (f *fielder) arrivalAt(target physics.Vec3, start float64) float64 {
	return start + f.Motion.TimeToReach(f.position(), target)
}

type throwEvent struct {
	record   *fielding.ThrowRecord
	thrower  field.Position
	receiver field.Position
	base     field.Base
	control  float64
	runner   *baserunning.Baserunner
	race     RaceKind
	released bool
}

type resolution struct {
	ctx      context.Context
	opts     Options
	log      *logging.Logger
	in       Input
	contact  float64
	rng      *rand.Rand
	resolver *fielding.Resolver
	defense  fielding.Defense
	fielders map[field.Position]*fielder
	order    []*fielder
	runners  []*baserunning.Baserunner
	batter   *baserunning.Baserunner
	races    map[*baserunning.Baserunner]RaceKind
	ball     *ball
	state    State
	kind     fielding.BattedBallType
	path     *physics.BallPath
	play     *fielding.Play
	landed   bool
	through  bool
	pending  *throwEvent
	chain    []field.Position
	erred    bool
	noRuns   bool
	sched    *simulation.Scheduler
	observe  Observer
	outcome  *Outcome
}

func (a *Arbiter) newResolution(ctx context.Context, in Input, observe Observer) *resolution {
	defense, _ := fielding.NewDefense(in.Defense)
	r := &resolution{
		ctx:      ctx,
		opts:     a.opts,
		log:      a.logger.With(logging.String("play", in.ID)),
		in:       in,
		contact:  in.Launch.Time,
		rng:      rand.New(rand.NewPCG(in.Seed, in.Seed^0x9e3779b97f4a7c15)),
		resolver: fielding.NewResolver(in.Environment, in.Ball, a.opts.Fielding),
		defense:  defense,
		fielders: make(map[field.Position]*fielder, len(defense)),
		races:    make(map[*baserunning.Baserunner]RaceKind),
		observe:  observe,
		state:    State{ID: in.ID, Phase: Started, Clock: in.Launch.Time, Outs: in.Outs},
		outcome:  &Outcome{ID: in.ID},
	}
	for _, pos := range field.Positions() {
		if f, ok := defense[pos]; ok {
			entity := &fielder{Fielder: f}
			r.fielders[pos] = entity
			r.order = append(r.order, entity)
		}
	}
	r.ball = &ball{position: in.Launch.Position, clock: r.contact, holder: func(p field.Position) physics.Vec3 {
		if f, ok := r.fielders[p]; ok {
			return f.position()
		}
		return physics.Vec3{}
	}}
	return r
}

func (r *resolution) resolve() (*Outcome, error) {
	//1.- Fly the batted ball and lay its ground path out to rest or the wall.
	flight, err := physics.Integrate(r.in.Environment, r.in.Ball, r.in.Launch, physics.Options{Step: r.opts.Fielding.IntegrationStep})
	if err != nil {
		return nil, err
	}
	r.kind = fielding.Classify(launchAngle(r.in.Launch.Velocity))
	wall, reached, cleared := r.in.Park.WallCrossing(flight)
	path, err := r.ballPath(flight, wall, reached, cleared)
	if err != nil {
		return nil, err
	}
	r.path = path
	r.outcome.Path = path
	first := path.Flight.End().Position
	r.outcome.Batted = BattedBall{
		Type:     r.kind,
		Landing:  first,
		HangTime: path.Flight.End().T - r.contact,
		Carry:    flight.Carry(),
		Apex:     flight.Apex().Position.Z(),
		Fair:     field.Fair(first),
		Wall:     reached,
	}
	r.setupRunners()
	//2.- A ball over the fence ends the play before anyone moves.
	if cleared {
		r.log.Debug("home run", logging.Float64("carry", flight.Carry()))
		return r.shortCircuit(HomeRun, path.Flight.End().T), nil
	}
	//3.- Find the first fielder who controls the ball.
	play, err := r.resolver.Field(path, r.kind, r.defense, r.contact)
	if err != nil {
		var warn *physics.UnreachableTargetWarning
		if !errors.As(err, &warn) {
			return nil, err
		}
		r.warn(warn)
	} else {
		r.play = &play
		r.outcome.Fielding = &play
		r.outcome.Batted.Caught = play.Kind == fielding.Caught
	}
	if !r.outcome.Batted.Caught && !r.outcome.Batted.Fair {
		return r.shortCircuit(FoulBall, path.Flight.End().T), nil
	}
	//4.- Step every entity on the shared clock until the play settles.
	r.start()
	err = r.sched.Run(r.contact+r.opts.MaxDuration, r.evaluate)
	if errors.Is(err, simulation.ErrHorizon) {
		r.outcome.Warnings = append(r.outcome.Warnings, err.Error())
		r.log.Warn("play did not settle", logging.Float64("horizon", r.opts.MaxDuration))
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return r.finish(r.sched.Clock()), nil
}

// ballPath joins the flight with what the ball does after it first comes down.
func (r *resolution) ballPath(flight *physics.Trajectory, wall physics.Sample, reached, cleared bool) (*physics.BallPath, error) {
	env, ball := r.in.Environment, r.in.Ball
	opts := physics.Options{Step: r.opts.Fielding.IntegrationStep}
	if reached {
		//1.- Stop the flight at the wall. A ball that stays in the park drops back off it.
		truncated := truncate(flight, wall)
		if cleared {
			return &physics.BallPath{Flight: truncated}, nil
		}
		out := physics.Direction(physics.Horizontal(wall.Position))
		velocity := wall.Velocity
		if radial := velocity.Dot(out); radial > 0 {
			velocity = velocity.Sub(out.Mul((1 + r.opts.Carom) * radial))
		}
		drop, err := physics.Integrate(env, ball, physics.Launch{Position: wall.Position.Sub(out.Mul(0.5)), Velocity: velocity, Time: wall.T}, opts)
		if err != nil {
			return nil, err
		}
		ground, err := physics.RollOut(env, ball, drop.End(), r.opts.Ground, r.in.Park.BeyondWall, opts)
		if err != nil {
			return nil, err
		}
		ground.Hops = append([]*physics.Trajectory{drop}, ground.Hops...)
		return &physics.BallPath{Flight: truncated, Ground: ground}, nil
	}
	if flight.Termination != physics.TerminatedGround {
		return &physics.BallPath{Flight: flight}, nil
	}
	ground, err := physics.RollOut(env, ball, flight.End(), r.opts.Ground, r.in.Park.BeyondWall, opts)
	if err != nil {
		return nil, err
	}
	return &physics.BallPath{Flight: flight, Ground: ground}, nil
}

// truncate cuts a flight at the given sample.
func truncate(tr *physics.Trajectory, at physics.Sample) *physics.Trajectory {
	n := sort.Search(len(tr.Samples), func(i int) bool { return tr.Samples[i].T >= at.T })
	samples := append(append([]physics.Sample(nil), tr.Samples[:n]...), at)
	return &physics.Trajectory{Samples: samples, Termination: physics.TerminatedPlane, Step: tr.Step}
}

func launchAngle(v physics.Vec3) float64 {
	return math.Atan2(v.Z(), physics.Horizontal(v).Len()) * 180 / math.Pi
}

// setupRunners builds the live runners, lead runner first.
func (r *resolution) setupRunners() {
	occupied := make([]int, 0, len(r.in.Runners))
	for _, runner := range r.in.Runners {
		occupied = append(occupied, runner.Start)
	}
	forces := baserunning.Forces(occupied)
	runners := append([]baserunning.Runner(nil), r.in.Runners...)
	sort.Slice(runners, func(i, j int) bool { return runners[i].Start > runners[j].Start })
	for _, runner := range runners {
		plan := baserunning.PlanFor(runner, forces[runner.Start], r.in.Outs, r.kind, r.opts.Running)
		b := baserunning.NewBaserunner(runner, plan, r.opts.Running)
		if runner.IsBatter() {
			r.batter = b
		}
		r.runners = append(r.runners, b)
	}
}

// start puts the entities on the scheduler in ball, fielders, runners order.
func (r *resolution) start() {
	r.state.Phase = BallInFlight
	r.state.Ball = BallState{Kind: InFlight, Since: r.contact, Path: r.path}
	r.ball.state = r.state.Ball
	if r.play != nil {
		r.fielders[r.play.Fielder].run(r.play.Location, r.contact, r.contact)
	}
	for _, b := range r.runners {
		if b.Plan.Trigger == baserunning.OnContact {
			r.send(b, r.contact, r.contact, b.Plan.Target)
		}
	}
	r.sched = simulation.NewScheduler(r.opts.Step, r.contact)
	r.sched.Stage(r.ball)
	actors := r.sched.Stage()
	for _, f := range r.order {
		r.sched.Add(actors, f)
	}
	runners := r.sched.Stage()
	for _, b := range r.runners {
		r.sched.Add(runners, b)
	}
	r.emit(r.contact)
}

func (r *resolution) send(b *baserunning.Baserunner, at, now float64, target int) {
	if err := b.Go(at, now, target); err != nil {
		r.warn(&physics.UnreachableTargetWarning{Actor: b.ID, Target: field.StationPosition(target), Reason: err.Error()})
	}
}

// evaluate reads the frozen post-step state and fires every event that is due.
func (r *resolution) evaluate(now float64) (bool, error) {
	r.state.Clock = now
	if r.sched.Steps()%cancelCheckSteps == 0 {
		if err := r.ctx.Err(); err != nil {
			return false, err
		}
	}
	switch r.state.Phase {
	case BallInFlight:
		if err := r.checkLanding(now); err != nil {
			return false, err
		}
		r.checkThrough(now)
		if r.play != nil && now >= r.play.Time {
			if err := r.controlled(now); err != nil {
				return false, err
			}
		}
	case BallFielded, ThrowInFlight:
		if err := r.checkThrow(now); err != nil {
			return false, err
		}
	}
	r.state.Ball = r.ball.state
	if r.opts.FrameEvery > 0 && r.sched.Steps()%r.opts.FrameEvery == 0 {
		r.emit(now)
	}
	return r.settled(), nil
}

// checkLanding releases the runners who waited for the ball to come down.
func (r *resolution) checkLanding(now float64) error {
	landing := r.path.LandingTime()
	if r.landed || now < landing || (r.play != nil && r.play.Time < landing) {
		return nil
	}
	r.landed = true
	if err := r.ball.loose(nil, landing); err != nil {
		return err
	}
	for _, b := range r.runners {
		if b.Status() == baserunning.Waiting && b.Plan.Trigger == baserunning.OnLanding {
			r.send(b, landing, now, b.Plan.Target)
		}
	}
	return nil
}

// checkThrough sends the runners holding on a grounder once the ball is past
// the infielder whose zone it crossed and an outfielder will have to get it.
func (r *resolution) checkThrough(now float64) {
	if r.through || r.play == nil || r.play.Fielder.Infielder() || !r.play.Primary.Infielder() {
		return
	}
	primary, ok := r.fielders[r.play.Primary]
	if !ok {
		return
	}
	ball, _ := r.path.At(now)
	if field.DistanceFromHome(ball.Position) < field.DistanceFromHome(primary.Location) && now < r.play.Time {
		return
	}
	r.through = true
	for _, b := range r.runners {
		if b.Status() == baserunning.Waiting && b.Plan.Trigger == baserunning.Hold {
			r.send(b, now, now, b.Start+1)
			r.log.Debug("runner breaks on the ball through", logging.String("runner", b.ID), logging.Float64("at", now))
		}
	}
}

// controlled handles the first fielder to gain control of the batted ball.
func (r *resolution) controlled(now float64) error {
	p := r.play
	f := r.fielders[p.Fielder]
	if err := r.ball.catch(p.Fielder, p.Time); err != nil {
		return err
	}
	r.state.Phase = BallFielded
	r.chain = []field.Position{p.Fielder}
	if p.Kind == fielding.Caught {
		r.recordOut(r.batter, p.Time, field.HomePlate, CatchRace)
		if r.outs() >= 3 {
			return nil
		}
		//1.- A deep enough catch sends the runner on third home after the catch.
		depth := field.DistanceFromHome(p.Location)
		for _, b := range r.runners {
			if b.Status() == baserunning.Waiting && baserunning.TagsUp(b.Runner, r.in.Outs, depth, r.opts.Running) {
				r.send(b, p.Time, now, field.ScoreStation)
				r.races[b] = TagRace
				return r.throwTo(f, p.Location, p.Time, now, b, TagRace)
			}
		}
		return nil
	}
	//2.- Runners read a ball in the outfield and take what the arm allows.
	if !p.Fielder.Infielder() {
		if err := r.stretch(f, p.Location, p.Time); err != nil {
			return err
		}
	}
	return r.chooseThrow(f, p.Location, p.Time, now)
}

// stretch extends running runners, lead runner first, while they beat the
// estimated throw by the safety margin. Nobody passes the runner ahead.
func (r *resolution) stretch(f *fielder, from physics.Vec3, control float64) error {
	limit := field.ScoreStation + 1
	for _, b := range r.runners {
		switch b.Status() {
		case baserunning.Waiting:
			limit = b.Start
			continue
		case baserunning.Running:
		default:
			continue
		}
		for next := b.Target() + 1; next <= field.ScoreStation && (next < limit || next == field.ScoreStation); next++ {
			arrival, ok := b.Predict(next)
			if !ok || !baserunning.ShouldAdvance(arrival, r.estimate(f, from, control, field.BaseForStation(next)), r.opts.Running) {
				break
			}
			if err := b.Extend(next); err != nil {
				return err
			}
		}
		limit = b.Target()
	}
	return nil
}

// estimate is the defence's guess at when the ball can be controlled on base.
func (r *resolution) estimate(f *fielder, from physics.Vec3, control float64, base field.Base) float64 {
	distance := physics.HorizontalDistance(from, base.Position())
	if distance < onBagDistance {
		return control
	}
	release := control + f.TransferDelay
	arrival := release + distance/(physics.MPH(f.ThrowSpeedMPH)*throwCarry)
	cov, ok := r.cover(base, f.Position, control)
	if !ok {
		return math.Inf(1)
	}
	receiver := r.fielders[cov.Receiver]
	return math.Max(arrival, math.Max(cov.Arrival, release+receiver.Motion.ReactionDelay))
}

// cover finds the receiver for base. Receivers who have not moved yet broke
// for their base at contact; anyone already on the move heads there from now.
func (r *resolution) cover(base field.Base, thrower field.Position, now float64) (fielding.Coverage, bool) {
	receiver := fielding.Receiver(base, thrower)
	f, ok := r.fielders[receiver]
	if !ok {
		return fielding.Coverage{}, false
	}
	if f.mover == nil {
		return fielding.Cover(r.defense, base, thrower, r.contact)
	}
	if f.target == base.Position() {
		if arrival, ok := f.mover.Arrival(); ok {
			return fielding.Coverage{Receiver: receiver, Base: base, Arrival: arrival}, true
		}
	}
	return fielding.Coverage{Receiver: receiver, Base: base, Arrival: f.arrivalAt(base.Position(), now)}, true
}

// chooseThrow throws at the lead runner the defence can beat. An infielder
// with nobody to get still makes the routine throw to first.
func (r *resolution) chooseThrow(f *fielder, from physics.Vec3, control, now float64) error {
	var target *baserunning.Baserunner
	for _, b := range r.runners {
		if b.Status() != baserunning.Running {
			continue
		}
		arrival, ok := b.Predict(b.Target())
		if !ok {
			continue
		}
		estimate := r.estimate(f, from, control, field.BaseForStation(b.Target()))
		if Call(estimate, arrival, r.opts.TieEpsilon) == OutCall {
			target = b
			break
		}
	}
	if target == nil && f.Position.Infielder() && r.batter.Status() == baserunning.Running && r.batter.Target() == 1 && !r.batter.Arrived() {
		target = r.batter
	}
	if target == nil {
		return nil
	}
	kind := TagRace
	if target.Plan.Forced && target.Target() == target.Start+1 {
		kind = ForceRace
	}
	return r.throwTo(f, from, control, now, target, kind)
}

// throwTo launches a throw at the base the runner is heading for.
func (r *resolution) throwTo(f *fielder, from physics.Vec3, control, now float64, runner *baserunning.Baserunner, kind RaceKind) error {
	base := field.BaseForStation(runner.Target())
	ev := &throwEvent{thrower: f.Position, receiver: f.Position, base: base, runner: runner, race: kind}
	//1.- A fielder standing on the bag makes the play without a throw.
	if physics.HorizontalDistance(from, base.Position()) < onBagDistance {
		ev.control = control
		r.pending = ev
		runner.Contest()
		return nil
	}
	cov, ok := r.cover(base, f.Position, now)
	if !ok {
		r.warn(&physics.UnreachableTargetWarning{Actor: f.Position.String(), Target: base.Position(), Reason: "nobody covers the base"})
		return nil
	}
	receiver := r.fielders[cov.Receiver]
	if receiver.target != base.Position() {
		start := r.contact
		if receiver.mover != nil {
			start = now
		}
		receiver.run(base.Position(), start, now)
	}
	record, err := r.resolver.Throw(f.Fielder, from, control, cov.Receiver, base, r.rng)
	if err != nil {
		var warn *physics.UnreachableTargetWarning
		if errors.As(err, &warn) {
			r.warn(warn)
			return nil
		}
		return err
	}
	ev.record = record
	ev.receiver = cov.Receiver
	ev.control = fielding.Control(cov, record, receiver.Fielder)
	if record.Error {
		ev.control = record.Arrival
	}
	r.outcome.Throws = append(r.outcome.Throws, *record)
	r.pending = ev
	runner.Contest()
	return nil
}

// checkThrow releases the pending throw and calls the race once it is decided.
func (r *resolution) checkThrow(now float64) error {
	ev := r.pending
	if ev == nil {
		return nil
	}
	if ev.record != nil && !ev.released && now >= ev.record.ReleaseTime {
		if err := r.ball.release(ev.record.Flight, ev.record.ReleaseTime); err != nil {
			return err
		}
		ev.released = true
		r.state.Phase = ThrowInFlight
	}
	//1.- Wait out the tie window so a runner arriving inside it is seen.
	if now < ev.control+r.opts.TieEpsilon {
		return nil
	}
	r.pending = nil
	if ev.record != nil && ev.record.Error {
		return r.throwingError(ev)
	}
	if ev.record != nil {
		if err := r.ball.catch(ev.receiver, ev.control); err != nil {
			return err
		}
		r.chain = append(r.chain, ev.receiver)
	}
	r.state.Phase = BallFielded
	r.races[ev.runner] = ev.race
	verdict, arrival := race(ev.control, ev.runner, r.opts.TieEpsilon)
	r.log.Debug("race",
		logging.String("runner", ev.runner.ID),
		logging.String("base", ev.base.String()),
		logging.Float64("control", ev.control),
		logging.Float64("arrival", arrival),
		logging.String("call", verdict.String()))
	if verdict != OutCall {
		return nil
	}
	r.recordOut(ev.runner, ev.control, ev.base, ev.race)
	if r.outs() >= 3 || ev.race != ForceRace || ev.base == field.FirstBase {
		return nil
	}
	//2.- Turn two: after a force the receiver relays to first for the batter.
	batter := r.batter
	if batter.Status() != baserunning.Running || batter.Target() != 1 || batter.Arrived() {
		return nil
	}
	pivot := r.fielders[ev.receiver]
	arrival, ok := batter.Predict(1)
	if !ok {
		return nil
	}
	if ev.base != field.SecondBase && Call(r.estimate(pivot, ev.base.Position(), ev.control, field.FirstBase), arrival, r.opts.TieEpsilon) != OutCall {
		return nil
	}
	return r.throwTo(pivot, ev.base.Position(), ev.control, now, batter, ForceRace)
}

// throwingError lets a wild throw get away. The targeted runner is safe and
// every runner still moving takes one more base.
func (r *resolution) throwingError(ev *throwEvent) error {
	r.erred = true
	r.outcome.Errors = append(r.outcome.Errors, ev.thrower)
	r.log.Debug("throwing error", logging.String("fielder", ev.thrower.String()), logging.Float64("miss", ev.record.Miss))
	rest := ev.record.Continuation
	if rest == nil {
		rest = ev.record.Flight
	}
	if err := r.ball.loose(rest, ev.record.Arrival); err != nil {
		return err
	}
	limit := field.ScoreStation + 1
	for _, b := range r.runners {
		switch b.Status() {
		case baserunning.Waiting:
			limit = b.Start
		case baserunning.Running:
			next := b.Target() + 1
			if next <= field.ScoreStation && (next < limit || next == field.ScoreStation) {
				if err := b.Extend(next); err != nil {
					return err
				}
			}
			limit = b.Target()
		}
	}
	return nil
}

// recordOut credits the out to the last fielder to handle the ball and
// assists to everyone who handled it before the putout since the previous out.
func (r *resolution) recordOut(b *baserunning.Baserunner, at float64, base field.Base, kind RaceKind) {
	b.MarkOut(at)
	putout := r.chain[len(r.chain)-1]
	var assists []field.Position
	for _, p := range r.chain[:len(r.chain)-1] {
		if p != putout && !containsPosition(assists, p) {
			assists = append(assists, p)
		}
	}
	r.outcome.Outs = append(r.outcome.Outs, OutRecord{Runner: b.ID, Base: base, Time: at, Race: kind, Putout: putout, Assists: assists})
	r.races[b] = kind
	r.state.Outs = r.outs()
	if r.outs() >= 3 && (kind == ForceRace || b == r.batter) {
		r.noRuns = true
	}
	r.chain = []field.Position{putout}
}

func containsPosition(list []field.Position, p field.Position) bool {
	for _, q := range list {
		if q == p {
			return true
		}
	}
	return false
}

func (r *resolution) outs() int { return r.in.Outs + len(r.outcome.Outs) }

// settled reports whether nothing can change the outcome any more.
func (r *resolution) settled() bool {
	if r.outs() >= 3 {
		return true
	}
	if r.pending != nil {
		return false
	}
	if r.state.Phase == BallInFlight && !(r.play == nil && r.landed) {
		return false
	}
	for _, b := range r.runners {
		if b.Status() == baserunning.Running && !b.Arrived() {
			return false
		}
	}
	return true
}

func (r *resolution) warn(w *physics.UnreachableTargetWarning) {
	r.outcome.Warnings = append(r.outcome.Warnings, w.Error())
	r.log.Warn("unreachable target", logging.String("actor", w.Actor), logging.String("reason", w.Reason))
}

// finish settles every runner and labels the play.
func (r *resolution) finish(now float64) *Outcome {
	o := r.outcome
	thirdOut := math.Inf(1)
	if r.outs() >= 3 {
		thirdOut = o.Outs[len(o.Outs)-1].Time
	}
	for _, b := range r.runners {
		b.Settle()
		res := RunnerResult{ID: b.ID, Start: b.Start, Reached: b.Reached(), Out: b.Status() == baserunning.Out, Race: r.races[b]}
		switch arrival, ok := b.Arrival(); {
		case res.Out:
			res.Arrival = b.OutAt()
		case ok && b.Target() != b.Start:
			res.Arrival = arrival
		case b.Target() != b.Start:
			res.Arrival = now
		}
		res.Scored = !res.Out && res.Reached == field.ScoreStation && !r.noRuns && res.Arrival < thirdOut
		if res.Scored {
			o.Runs++
		}
		o.Runners = append(o.Runners, res)
	}
	o.Result = derive(o, r.play, r.kind, r.batter, r.erred)
	o.Duration = now - r.contact
	o.Steps = r.sched.Steps()
	r.state.Phase = Resolved
	o.Phase = Resolved
	r.emit(now)
	return o
}

// shortCircuit resolves a home run or a foul ball without a race.
func (r *resolution) shortCircuit(result Result, at float64) *Outcome {
	o := r.outcome
	for _, b := range r.runners {
		res := RunnerResult{ID: b.ID, Start: b.Start, Reached: b.Start}
		if result == HomeRun {
			res.Reached, res.Scored = field.ScoreStation, true
			o.Runs++
		}
		o.Runners = append(o.Runners, res)
	}
	o.Result = result
	o.Duration = at - r.contact
	o.Phase = Resolved
	r.state.Phase = Resolved
	r.ball.clock = at
	r.ball.position = r.path.Flight.End().Position
	r.emit(at)
	return o
}

// failed turns a diverged flight into an indeterminate play and passes every
// other error through.
func (r *resolution) failed(err error) (*Outcome, error) {
	var diverged *physics.IntegrationError
	if !errors.As(err, &diverged) {
		return nil, err
	}
	r.log.Warn("play indeterminate", logging.Error(err))
	o := r.outcome
	o.Result = Indeterminate
	o.Phase = Resolved
	o.Err = err
	o.Error = err.Error()
	o.Runners = o.Runners[:0]
	for _, runner := range r.in.Runners {
		o.Runners = append(o.Runners, RunnerResult{ID: runner.ID, Start: runner.Start, Reached: runner.Start})
	}
	o.Runs = 0
	return o, nil
}

func (r *resolution) emit(now float64) {
	if r.observe == nil {
		return
	}
	frame := Frame{
		T:        now,
		Phase:    r.state.Phase.String(),
		Ball:     r.ball.position,
		BallKind: r.ball.state.Kind.String(),
		Fielders: make([]ActorFrame, 0, len(r.order)),
		Runners:  make([]ActorFrame, 0, len(r.runners)),
	}
	for _, f := range r.order {
		frame.Fielders = append(frame.Fielders, ActorFrame{ID: f.Position.String(), Position: f.position(), Speed: f.speed()})
	}
	for _, b := range r.runners {
		frame.Runners = append(frame.Runners, ActorFrame{ID: b.ID, Position: b.Position(), Speed: b.Speed()})
	}
	r.observe(frame)
}
