package physics

import (
	"errors"
	"math"
	"testing"
)

func battedBall(mph, launchDeg, sprayDeg, backspin, sidespin float64) Launch {
	velocity := LaunchVelocity(MPH(mph), launchDeg, sprayDeg)
	return Launch{
		Position: Vec3{0, 0, 3},
		Velocity: velocity,
		Spin:     BackspinSidespin(velocity, backspin, sidespin),
	}
}

func mustIntegrate(t *testing.T, launch Launch, opts Options) *Trajectory {
	t.Helper()
	tr, err := Integrate(SeaLevel(), Baseball(), launch, opts)
	if err != nil {
		t.Fatalf("integrate: %v", err)
	}
	return tr
}

func TestIntegrateCarriesTypicalFlyBall(t *testing.T) {
	//1.- A well struck fly ball with backspin should land near the warning track.
	tr := mustIntegrate(t, battedBall(100, 28, 0, 1800, 0), Options{})
	if tr.Termination != TerminatedGround {
		t.Fatalf("expected ground termination, got %s", tr.Termination)
	}
	if carry := tr.Carry(); carry < 390 || carry > 410 {
		t.Fatalf("unexpected carry %.1f ft", carry)
	}
	if hang := tr.Duration(); hang < 5.0 || hang > 5.9 {
		t.Fatalf("unexpected hang time %.2f s", hang)
	}
	//2.- The landing sample is interpolated onto the ground plane.
	if z := tr.End().Position.Z(); math.Abs(z) > 1e-9 {
		t.Fatalf("landing height should be zero, got %.6f", z)
	}
	if apex := tr.Apex().Position.Z(); apex < 80 || apex > 130 {
		t.Fatalf("unexpected apex %.1f ft", apex)
	}
}

func TestDragStrictlyDrainsMechanicalEnergy(t *testing.T) {
	//1.- Magnus lift does no work so drag must remove energy on every step.
	env := SeaLevel()
	launch := battedBall(100, 28, 10, 1800, 500)
	tr := mustIntegrate(t, launch, Options{})
	energy := func(s Sample) float64 {
		return 0.5*s.Velocity.Dot(s.Velocity) + env.Gravity*s.Position.Z()
	}
	for i := 1; i < len(tr.Samples); i++ {
		if energy(tr.Samples[i]) >= energy(tr.Samples[i-1]) {
			t.Fatalf("energy did not decrease at sample %d (t=%.3f)", i, tr.Samples[i].T)
		}
	}
	//2.- The ball lands slower than it left the bat.
	if tr.End().Velocity.Len() >= launch.Velocity.Len() {
		t.Fatalf("landing speed %.1f should be below launch speed %.1f", tr.End().Velocity.Len(), launch.Velocity.Len())
	}
}

func TestMagnusSidespinMirrorsAcrossCentreLine(t *testing.T) {
	//1.- Opposite sidespin on a dead-centre launch mirrors the lateral drift.
	left := mustIntegrate(t, battedBall(100, 28, 0, 1800, 1500), Options{})
	right := mustIntegrate(t, battedBall(100, 28, 0, 1800, -1500), Options{})
	l, r := left.End().Position, right.End().Position
	if l.X() >= 0 || r.X() <= 0 {
		t.Fatalf("expected positive sidespin to hook toward left field, got %.2f and %.2f", l.X(), r.X())
	}
	if math.Abs(l.X()+r.X()) > 1e-6 || math.Abs(l.Y()-r.Y()) > 1e-6 {
		t.Fatalf("landing points are not mirrored: %v vs %v", l, r)
	}
	if math.Abs(left.Duration()-right.Duration()) > 1e-9 {
		t.Fatalf("hang times differ: %.6f vs %.6f", left.Duration(), right.Duration())
	}
}

func TestLiftSaturatesWithSpin(t *testing.T) {
	//1.- Spin adds a large amount of carry compared to a knuckling ball.
	spinless := mustIntegrate(t, battedBall(100, 28, 0, 0, 0), Options{}).Carry()
	typical := mustIntegrate(t, battedBall(100, 28, 0, 1800, 0), Options{}).Carry()
	if spinless > 0.85*typical {
		t.Fatalf("spinless carry %.1f should be at least 15%% shorter than %.1f", spinless, typical)
	}
	//2.- Past the saturation point extra spin barely changes the carry.
	high := mustIntegrate(t, battedBall(100, 28, 0, 4000, 0), Options{}).Carry()
	extreme := mustIntegrate(t, battedBall(100, 28, 0, 6000, 0), Options{}).Carry()
	if diff := math.Abs(extreme-high) / high; diff >= 0.01 {
		t.Fatalf("carry changed by %.2f%% between 4000 and 6000 rpm", diff*100)
	}
}

func TestIntegrateRejectsDegenerateParameters(t *testing.T) {
	launch := battedBall(90, 20, 0, 1500, 0)
	ball := Baseball()
	ball.MassKg = 0
	env := SeaLevel()
	env.AirDensity = -1
	cases := []struct {
		name   string
		env    Environment
		ball   ProjectileParams
		launch Launch
		opts   Options
	}{
		{name: "mass", env: SeaLevel(), ball: ball, launch: launch},
		{name: "density", env: env, ball: Baseball(), launch: launch},
		{name: "step", env: SeaLevel(), ball: Baseball(), launch: launch, opts: Options{Step: 0.05}},
		{name: "launch", env: SeaLevel(), ball: Baseball(), launch: Launch{Velocity: Vec3{math.NaN(), 0, 0}}},
	}
	for _, tc := range cases {
		_, err := Integrate(tc.env, tc.ball, tc.launch, tc.opts)
		var cfgErr *ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("%s: expected configuration error, got %v", tc.name, err)
		}
	}
}

func TestIntegrateReportsDivergence(t *testing.T) {
	//1.- A finite but absurd launch speed overflows the drag term.
	_, err := Integrate(SeaLevel(), Baseball(), Launch{Position: Vec3{0, 0, 3}, Velocity: Vec3{0, 1e200, 0}}, Options{})
	var integrationErr *IntegrationError
	if !errors.As(err, &integrationErr) {
		t.Fatalf("expected integration error, got %v", err)
	}
	if integrationErr.Step >= DefaultStep {
		t.Fatalf("expected retries with a finer step, last step %.6f", integrationErr.Step)
	}
}

func TestIntegrateStopsAtPlane(t *testing.T) {
	//1.- A line drive toward a plane at y=50 stops exactly on it.
	plane := &Plane{Point: Vec3{0, 50, 0}, Normal: Vec3{0, 1, 0}}
	tr := mustIntegrate(t, battedBall(80, 5, 0, 1000, 0), Options{Plane: plane})
	if tr.Termination != TerminatedPlane {
		t.Fatalf("expected plane termination, got %s", tr.Termination)
	}
	if y := tr.End().Position.Y(); math.Abs(y-50) > 1e-6 {
		t.Fatalf("expected crossing at y=50, got %.6f", y)
	}
}

func TestIntegrateTimesOut(t *testing.T) {
	tr := mustIntegrate(t, battedBall(100, 60, 0, 2500, 0), Options{MaxTime: 0.5})
	if tr.Termination != TerminatedTimeout {
		t.Fatalf("expected timeout, got %s", tr.Termination)
	}
	if math.Abs(tr.Duration()-0.5) > 1e-9 {
		t.Fatalf("expected 0.5s of flight, got %.6f", tr.Duration())
	}
}

func TestTrajectoryAtInterpolatesAndClamps(t *testing.T) {
	tr := mustIntegrate(t, battedBall(90, 25, 0, 1500, 0), Options{Step: 0.002})
	//1.- Halfway between two samples the state is the average of both.
	a, b := tr.Samples[10], tr.Samples[11]
	mid := tr.At((a.T + b.T) / 2)
	want := a.Position.Add(b.Position).Mul(0.5)
	if !mid.Position.ApproxEqualThreshold(want, 1e-9) {
		t.Fatalf("unexpected midpoint %v, want %v", mid.Position, want)
	}
	//2.- Times outside the flight clamp to its ends.
	if got := tr.At(-1); got != tr.Start() {
		t.Fatalf("expected start sample, got %+v", got)
	}
	if got := tr.At(1e6); got != tr.End() {
		t.Fatalf("expected end sample, got %+v", got)
	}
}

func TestBackspinAxisFollowsHeading(t *testing.T) {
	spin := BackspinSidespin(Vec3{0, 100, 20}, 2000, 0)
	if !spin.Axis.ApproxEqualThreshold(Vec3{1, 0, 0}, 1e-12) {
		t.Fatalf("backspin toward centre field should spin about +X, got %v", spin.Axis)
	}
	if math.Abs(spin.RateRPM-2000) > 1e-9 {
		t.Fatalf("unexpected rate %.3f", spin.RateRPM)
	}
}
