package field

import (
	"math"
	"testing"

	"diamondsim/engine/internal/physics"
)

func TestRouteRoundsFirstOnTheWayToSecond(t *testing.T) {
	route, err := NewRoute(HomeStation, 2, DefaultTurnRadius)
	if err != nil {
		t.Fatalf("new route: %v", err)
	}
	//1.- Two straight legs shortened by the corner plus the quarter circle.
	r := DefaultTurnRadius
	want := 2*(BaseDistance-r) + r*math.Pi/2
	if math.Abs(route.Length()-want) > 1e-9 {
		t.Fatalf("expected length %.4f, got %.4f", want, route.Length())
	}
	touch, ok := route.TouchDistance(1)
	if !ok || math.Abs(touch-(BaseDistance-r+r*math.Pi/4)) > 1e-9 {
		t.Fatalf("unexpected touch distance %.4f", touch)
	}
	//2.- The route starts on the plate, hugs first and ends on second.
	if p := route.PointAt(0); !p.ApproxEqualThreshold(StationPosition(0), 1e-9) {
		t.Fatalf("route should start at home, got %v", p)
	}
	if p := route.PointAt(route.Length()); !p.ApproxEqualThreshold(StationPosition(2), 1e-9) {
		t.Fatalf("route should end at second, got %v", p)
	}
	gap := physics.HorizontalDistance(route.PointAt(touch), StationPosition(1))
	if math.Abs(gap-r*(math.Sqrt2-1)) > 1e-6 {
		t.Fatalf("unexpected distance from the bag at the touch point %.4f", gap)
	}
	if route.CurvatureAt(touch) != 1/r {
		t.Fatalf("expected curvature %.4f at first base", 1/r)
	}
}

func TestRouteExtendKeepsProgress(t *testing.T) {
	route, err := NewRoute(HomeStation, 1, DefaultTurnRadius)
	if err != nil {
		t.Fatalf("new route: %v", err)
	}
	//1.- Five feet from the bag the corner tightens to five feet.
	progress := 85.0
	extended, err := route.Extend(2, progress)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if extended.CornerRadius(1) != 5 {
		t.Fatalf("expected a 5 ft corner, got %.2f", extended.CornerRadius(1))
	}
	if !extended.PointAt(progress).ApproxEqualThreshold(route.PointAt(progress), 1e-9) {
		t.Fatalf("runner position moved after extension: %v vs %v", extended.PointAt(progress), route.PointAt(progress))
	}
	if _, err := extended.Extend(2, 0); err == nil {
		t.Fatalf("expected extension to the same target to fail")
	}
}

func TestRouteAroundTheBases(t *testing.T) {
	route, err := NewRoute(HomeStation, ScoreStation, DefaultTurnRadius)
	if err != nil {
		t.Fatalf("new route: %v", err)
	}
	r := DefaultTurnRadius
	want := 4*BaseDistance - 6*r + 3*r*math.Pi/2
	if math.Abs(route.Length()-want) > 1e-9 {
		t.Fatalf("expected length %.4f, got %.4f", want, route.Length())
	}
	if _, err := NewRoute(3, 2, r); err == nil {
		t.Fatalf("expected backwards route to fail")
	}
}

func TestResponsibleFielderZones(t *testing.T) {
	cases := map[Position]physics.Vec3{
		Catcher:       {2, 10, 0},
		Pitcher:       {5, 65, 0},
		FirstBaseman:  {70, 100, 0},
		SecondBaseman: {20, 130, 0},
		Shortstop:     {-20, 130, 0},
		ThirdBaseman:  {-70, 100, 0},
		LeftFielder:   {-160, 260, 0},
		CenterFielder: {10, 330, 0},
		RightFielder:  {160, 260, 0},
	}
	for want, point := range cases {
		if got := ResponsibleFielder(point); got != want {
			t.Fatalf("point %v: expected %s, got %s", point, want, got)
		}
	}
}

func TestParkWallInterpolation(t *testing.T) {
	park := GenericPark()
	if err := park.Validate(); err != nil {
		t.Fatalf("generic park invalid: %v", err)
	}
	distance, height := park.WallAt(5.625)
	if math.Abs(distance-393.75) > 1e-9 || height != 8 {
		t.Fatalf("unexpected wall at 5.625°: %.2f ft, %.1f ft high", distance, height)
	}
	if d, _ := park.WallAt(80); d != 330 {
		t.Fatalf("angles past the pole should clamp, got %.1f", d)
	}
}

func TestWallCrossingSeparatesHomeRunsFromWallBalls(t *testing.T) {
	park := GenericPark()
	launch := func(mph float64) *physics.Trajectory {
		velocity := physics.LaunchVelocity(physics.MPH(mph), 28, 0)
		tr, err := physics.Integrate(physics.SeaLevel(), physics.Baseball(), physics.Launch{
			Position: physics.Vec3{0, 0, 3},
			Velocity: velocity,
			Spin:     physics.BackspinSidespin(velocity, 1800, 0),
		}, physics.Options{})
		if err != nil {
			t.Fatalf("integrate: %v", err)
		}
		return tr
	}
	//1.- 110 mph to centre clears the 400 ft wall by a wide margin.
	if _, reached, cleared := park.WallCrossing(launch(110)); !reached || !cleared {
		t.Fatalf("expected a home run (reached=%v cleared=%v)", reached, cleared)
	}
	//2.- 100 mph reaches the wall at its base.
	sample, reached, cleared := park.WallCrossing(launch(100))
	if !reached || cleared {
		t.Fatalf("expected the ball to hit the wall (reached=%v cleared=%v)", reached, cleared)
	}
	if sample.Position.Z() > 8 {
		t.Fatalf("wall ball should be below the wall height, got %.2f", sample.Position.Z())
	}
}

func TestFairTerritory(t *testing.T) {
	if !Fair(physics.Vec3{0, 100, 0}) || Fair(physics.Vec3{-50, 20, 0}) {
		t.Fatalf("fair/foul classification is wrong")
	}
	if p, err := ParsePosition("ss"); err != nil || p != Shortstop {
		t.Fatalf("expected SS to parse, got %v %v", p, err)
	}
	if p, err := ParsePosition("8"); err != nil || p != CenterFielder {
		t.Fatalf("expected 8 to parse as CF, got %v %v", p, err)
	}
}
