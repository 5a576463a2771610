package fielding

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/kinematics"
	"diamondsim/engine/internal/physics"
)

// popUp flies a spinless ball straight up from (0, 250, 3) in still vacuum so
// that it lands after exactly four seconds.
func popUp(t *testing.T) *physics.BallPath {
	t.Helper()
	env := physics.Environment{Gravity: physics.StandardGravity}
	vz := (0.5*physics.StandardGravity*16 - 3) / 4
	tr, err := physics.Integrate(env, physics.Baseball(), physics.Launch{
		Position: physics.Vec3{0, 250, 3},
		Velocity: physics.Vec3{0, 0, vz},
	}, physics.Options{})
	if err != nil {
		t.Fatalf("integrate pop up: %v", err)
	}
	if math.Abs(tr.End().T-4) > 0.002 {
		t.Fatalf("expected a four second hang, got %.4f", tr.End().T)
	}
	return &physics.BallPath{Flight: tr}
}

func centerFielder(x, reaction, speed float64) Defense {
	return Defense{field.CenterFielder: {
		Position:      field.CenterFielder,
		Location:      physics.Vec3{x, 250, 0},
		Motion:        kinematics.Attributes{ReactionDelay: reaction, Acceleration: 30, TopSpeed: speed},
		ThrowSpeedMPH: 85,
	}}
}

func grounder(t *testing.T, mph, spray float64) *physics.BallPath {
	t.Helper()
	env, ball := physics.SeaLevel(), physics.Baseball()
	velocity := physics.LaunchVelocity(physics.MPH(mph), -5, spray)
	flight, err := physics.Integrate(env, ball, physics.Launch{
		Position: physics.Vec3{0, 0, 3},
		Velocity: velocity,
		Spin:     physics.BackspinSidespin(velocity, -800, 0),
	}, physics.Options{})
	if err != nil {
		t.Fatalf("integrate grounder: %v", err)
	}
	ground, err := physics.RollOut(env, ball, flight.End(), physics.DefaultGroundModel(), nil, physics.Options{})
	if err != nil {
		t.Fatalf("roll out: %v", err)
	}
	return &physics.BallPath{Flight: flight, Ground: ground}
}

func TestFielderCatchesPopUpWhenInTime(t *testing.T) {
	//1.- 100 ft away at 30 ft/s with no reaction the fielder needs 3.83 s for a 4.0 s hang.
	resolver := NewResolver(physics.SeaLevel(), physics.Baseball(), DefaultOptions())
	play, err := resolver.Field(popUp(t), FlyBall, centerFielder(100, 0, 30), 0)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	if play.Kind != Caught || play.Fielder != field.CenterFielder {
		t.Fatalf("expected a catch by the centre fielder, got %s by %s", play.Kind, play.Fielder)
	}
	if play.Time < 3.8 || play.Time > 4 {
		t.Fatalf("expected the catch in the last moments of the flight, got %.3f", play.Time)
	}
	if play.Location.Z() > DefaultOptions().ReachHeight+1e-6 {
		t.Fatalf("caught above reach height: %.2f ft", play.Location.Z())
	}
}

func TestSlowReactionTurnsCatchIntoHit(t *testing.T) {
	//1.- Half a second of reaction pushes the arrival to 4.33 s, after the ball lands.
	resolver := NewResolver(physics.SeaLevel(), physics.Baseball(), DefaultOptions())
	play, err := resolver.Field(popUp(t), FlyBall, centerFielder(100, 0.5, 30), 0)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	if play.Kind == Caught {
		t.Fatalf("expected the ball to drop, got a catch at %.3f", play.Time)
	}
	if play.Time < 4.3 || play.Time > 4.4 {
		t.Fatalf("expected the ball picked up around 4.33 s, got %.3f", play.Time)
	}
}

func TestCatchOutcomeIsMonotonicInSpeedAndReaction(t *testing.T) {
	resolver := NewResolver(physics.SeaLevel(), physics.Baseball(), DefaultOptions())
	path := popUp(t)
	//1.- Once a speed catches the ball, every faster fielder does too.
	caught := false
	for speed := 20.0; speed <= 34; speed += 1 {
		play, err := resolver.Field(path, FlyBall, centerFielder(100, 0, speed), 0)
		if err != nil {
			t.Fatalf("field at %.0f ft/s: %v", speed, err)
		}
		if caught && play.Kind != Caught {
			t.Fatalf("faster fielder at %.0f ft/s lost a ball a slower one caught", speed)
		}
		caught = play.Kind == Caught
	}
	if !caught {
		t.Fatalf("expected the fastest fielder to make the catch")
	}
	//2.- Shrinking the reaction never loses a catch either.
	caught = false
	for reaction := 0.8; reaction >= 0; reaction -= 0.05 {
		play, err := resolver.Field(path, FlyBall, centerFielder(100, reaction, 30), 0)
		if err != nil {
			t.Fatalf("field at reaction %.2f: %v", reaction, err)
		}
		if caught && play.Kind != Caught {
			t.Fatalf("quicker reaction %.2f lost a ball a slower one caught", reaction)
		}
		caught = play.Kind == Caught
	}
}

func TestMissingPrimaryFielderIsConfigurationError(t *testing.T) {
	resolver := NewResolver(physics.SeaLevel(), physics.Baseball(), DefaultOptions())
	_, err := resolver.Field(popUp(t), FlyBall, Defense{}, 0)
	var cfg *physics.ConfigurationError
	if !errors.As(err, &cfg) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestShortstopFieldsGrounderUpTheMiddle(t *testing.T) {
	path := grounder(t, 85, -15)
	if got := ResponsibleFor(path, GroundBall); got != field.Shortstop {
		t.Fatalf("expected the shortstop to own the grounder, got %s", got)
	}
	defense, err := NewDefense(StandardDefense())
	if err != nil {
		t.Fatalf("defense: %v", err)
	}
	resolver := NewResolver(physics.SeaLevel(), physics.Baseball(), DefaultOptions())
	play, err := resolver.Field(path, GroundBall, defense, 0)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	if play.Kind != Fielded || play.Fielder != field.Shortstop {
		t.Fatalf("expected the shortstop to field it, got %s by %s", play.Kind, play.Fielder)
	}
	if play.Time <= path.LandingTime() || play.Time > 2.5 {
		t.Fatalf("fielded at an unexpected time %.3f", play.Time)
	}
}

func TestAccurateThrowHitsTheBag(t *testing.T) {
	//1.- An error-free throw from short to first crosses the plane at the aim point.
	resolver := NewResolver(physics.SeaLevel(), physics.Baseball(), DefaultOptions())
	ss := StandardDefense()[field.Shortstop-1]
	ss.ThrowAccuracyDeg = 0
	throw, err := resolver.Throw(ss, ss.Location, 1.5, field.FirstBaseman, field.FirstBase, nil)
	if err != nil {
		t.Fatalf("throw: %v", err)
	}
	if throw.Error || throw.Miss > 0.1 {
		t.Fatalf("expected a clean throw, missed by %.3f ft", throw.Miss)
	}
	if throw.ReleaseTime != 1.5+ss.TransferDelay {
		t.Fatalf("release should follow the transfer, got %.3f", throw.ReleaseTime)
	}
	flight := throw.Arrival - throw.ReleaseTime
	distance := physics.HorizontalDistance(throw.Release, field.FirstBase.Position())
	if naive := distance / physics.MPH(ss.ThrowSpeedMPH); flight < naive {
		t.Fatalf("throw outran its release speed: %.3f s for %.1f ft", flight, distance)
	}
}

func TestWildThrowGetsAwayFromReceiver(t *testing.T) {
	resolver := NewResolver(physics.SeaLevel(), physics.Baseball(), DefaultOptions())
	ss := StandardDefense()[field.Shortstop-1]
	ss.ThrowAccuracyDeg = 25
	//1.- With a huge spread one of the first seeds sails the throw.
	for seed := uint64(1); seed <= 50; seed++ {
		throw, err := resolver.Throw(ss, ss.Location, 1.5, field.FirstBaseman, field.FirstBase, rand.New(rand.NewPCG(seed, 7)))
		if err != nil {
			t.Fatalf("throw: %v", err)
		}
		if !throw.Error {
			continue
		}
		if throw.Miss <= DefaultOptions().ErrorThreshold && throw.Flight.Termination == physics.TerminatedPlane {
			t.Fatalf("error flagged on a throw that missed by only %.2f ft", throw.Miss)
		}
		//2.- A throw that got past the bag keeps flying.
		if throw.Flight.Termination == physics.TerminatedPlane && throw.Continuation == nil {
			t.Fatalf("expected a continuation for the wild throw")
		}
		return
	}
	t.Fatalf("no wild throw in fifty attempts")
}

func TestThrowIsDeterministicForSeed(t *testing.T) {
	resolver := NewResolver(physics.SeaLevel(), physics.Baseball(), DefaultOptions())
	ss := StandardDefense()[field.Shortstop-1]
	a, err := resolver.Throw(ss, ss.Location, 1, field.FirstBaseman, field.FirstBase, rand.New(rand.NewPCG(42, 42)))
	if err != nil {
		t.Fatalf("throw: %v", err)
	}
	b, err := resolver.Throw(ss, ss.Location, 1, field.FirstBaseman, field.FirstBase, rand.New(rand.NewPCG(42, 42)))
	if err != nil {
		t.Fatalf("throw: %v", err)
	}
	if a.Arrival != b.Arrival || a.Crossing != b.Crossing {
		t.Fatalf("same seed produced different throws: %v vs %v", a.Crossing, b.Crossing)
	}
}

func TestReceiverCoverage(t *testing.T) {
	cases := []struct {
		base    field.Base
		fielder field.Position
		want    field.Position
	}{
		{field.FirstBase, field.Shortstop, field.FirstBaseman},
		{field.FirstBase, field.FirstBaseman, field.Pitcher},
		{field.SecondBase, field.Shortstop, field.SecondBaseman},
		{field.SecondBase, field.SecondBaseman, field.Shortstop},
		{field.ThirdBase, field.ThirdBaseman, field.Shortstop},
		{field.HomePlate, field.CenterFielder, field.Catcher},
		{field.HomePlate, field.Catcher, field.Pitcher},
	}
	for _, tc := range cases {
		if got := Receiver(tc.base, tc.fielder); got != tc.want {
			t.Fatalf("%s fielded by %s: expected %s covering, got %s", tc.base, tc.fielder, tc.want, got)
		}
	}
}

func TestControlWaitsForSlowestLeg(t *testing.T) {
	receiver := Fielder{Position: field.FirstBaseman, Motion: kinematics.DefaultFielder()}
	throw := &ThrowRecord{ReleaseTime: 2, Arrival: 2.2}
	//1.- Receiver already on the bag: their reaction to the release decides.
	if got := Control(Coverage{Arrival: 1}, throw, receiver); math.Abs(got-2.3) > 1e-9 {
		t.Fatalf("expected the receiver to wait out their reaction, got %.3f", got)
	}
	//2.- Receiver still running: their arrival decides.
	if got := Control(Coverage{Arrival: 3}, throw, receiver); got != 3 {
		t.Fatalf("expected the receiver arrival to decide, got %.3f", got)
	}
}

func TestClassifyByLaunchAngle(t *testing.T) {
	cases := map[float64]BattedBallType{-5: GroundBall, 15: LineDrive, 30: FlyBall, 60: PopUp}
	for angle, want := range cases {
		if got := Classify(angle); got != want {
			t.Fatalf("launch %.0f: expected %s, got %s", angle, want, got)
		}
	}
}
