package baserunning

import (
	"errors"
	"math"
	"testing"

	"diamondsim/engine/internal/fielding"
	"diamondsim/engine/internal/kinematics"
	"diamondsim/engine/internal/physics"
)

func runUntilArrival(t *testing.T, b *Baserunner, dt, limit float64) float64 {
	t.Helper()
	for clock := 0.0; clock < limit; clock += dt {
		if arrival, ok := b.Arrival(); ok {
			return arrival
		}
		b.Advance(dt)
	}
	t.Fatalf("runner never arrived within %.1f s", limit)
	return 0
}

func TestForceChain(t *testing.T) {
	cases := []struct {
		occupied []int
		forced   []int
		free     []int
	}{
		{occupied: []int{0}, forced: []int{0}},
		{occupied: []int{0, 1, 3}, forced: []int{0, 1}, free: []int{3}},
		{occupied: []int{0, 2}, forced: []int{0}, free: []int{2}},
		{occupied: []int{0, 1, 2, 3}, forced: []int{0, 1, 2, 3}},
	}
	for _, tc := range cases {
		forces := Forces(tc.occupied)
		for _, s := range tc.forced {
			if !forces[s] {
				t.Fatalf("occupied %v: expected station %d forced", tc.occupied, s)
			}
		}
		for _, s := range tc.free {
			if forces[s] {
				t.Fatalf("occupied %v: station %d should not be forced", tc.occupied, s)
			}
		}
	}
}

func TestPlanForOpeningIntent(t *testing.T) {
	opts := DefaultOptions()
	if p := PlanFor(Batter(), true, 0, fielding.FlyBall, opts); p.Trigger != OnContact || p.Target != 1 {
		t.Fatalf("batter should run on contact, got %+v", p)
	}
	if p := PlanFor(OnBase(2), false, 2, fielding.FlyBall, opts); p.Trigger != OnContact || p.Jump != opts.TwoOutJump {
		t.Fatalf("two outs should send the runner on contact, got %+v", p)
	}
	if p := PlanFor(OnBase(1), true, 0, fielding.GroundBall, opts); p.Trigger != OnContact || p.Target != 2 {
		t.Fatalf("forced runner should go on a grounder, got %+v", p)
	}
	if p := PlanFor(OnBase(2), false, 1, fielding.GroundBall, opts); p.Trigger != Hold || p.Target != 2 {
		t.Fatalf("free runner should hold on a grounder, got %+v", p)
	}
	if p := PlanFor(OnBase(1), true, 1, fielding.LineDrive, opts); p.Trigger != OnLanding {
		t.Fatalf("runner should wait for a liner to drop, got %+v", p)
	}
	if !TagsUp(OnBase(3), 1, 300, opts) || TagsUp(OnBase(3), 2, 300, opts) || TagsUp(OnBase(2), 0, 300, opts) {
		t.Fatalf("tag up rule misapplied")
	}
}

func TestBatterRunsThroughFirst(t *testing.T) {
	//1.- On a straight leg the stepped run matches the closed form.
	batter := NewBaserunner(Batter(), Plan{Trigger: OnContact, Target: 1}, DefaultOptions())
	if err := batter.Go(0, 0, 1); err != nil {
		t.Fatalf("go: %v", err)
	}
	arrival := runUntilArrival(t, batter, 0.005, 10)
	want := kinematics.DefaultRunner().TimeToCover(90)
	if math.Abs(arrival-want) > 0.02 {
		t.Fatalf("expected arrival near %.3f, got %.3f", want, arrival)
	}
	if batter.Speed() <= 0 {
		t.Fatalf("batter should cross the bag at speed")
	}
	if batter.Reached() != 1 {
		t.Fatalf("expected the batter on first, got %d", batter.Reached())
	}
}

func TestExtendKeepsProgressAndMatchesPrediction(t *testing.T) {
	batter := NewBaserunner(Batter(), Plan{Trigger: OnContact, Target: 1}, DefaultOptions())
	if err := batter.Go(0, 0, 1); err != nil {
		t.Fatalf("go: %v", err)
	}
	for i := 0; i < 400; i++ {
		batter.Advance(0.005)
	}
	//1.- Two seconds in, predict the double before committing to it.
	predicted, ok := batter.Predict(2)
	if !ok {
		t.Fatalf("expected a prediction for second base")
	}
	before := batter.Position()
	if err := batter.Extend(2); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if d := physics.HorizontalDistance(before, batter.Position()); d > 0.5 {
		t.Fatalf("extension moved the runner %.2f ft", d)
	}
	//2.- With a throw coming the live run lands where the prediction said.
	batter.Contest()
	arrival := runUntilArrival(t, batter, 0.005, 20)
	if math.Abs(arrival-predicted) > 0.01 {
		t.Fatalf("prediction %.3f differs from actual %.3f", predicted, arrival)
	}
	if batter.Reached() != 2 || batter.Speed() != 0 {
		t.Fatalf("expected the runner stopped on second, got station %d at %.2f ft/s", batter.Reached(), batter.Speed())
	}
}

func TestContestedRunnerSlidesAndUnchallengedRunnerBrakes(t *testing.T) {
	contested := NewBaserunner(OnBase(1), Plan{Trigger: OnContact, Target: 2}, DefaultOptions())
	braking := NewBaserunner(OnBase(1), Plan{Trigger: OnContact, Target: 2}, DefaultOptions())
	for _, b := range []*Baserunner{contested, braking} {
		if err := b.Go(0, 0, 2); err != nil {
			t.Fatalf("go: %v", err)
		}
		for i := 0; i < 200; i++ {
			b.Advance(0.005)
		}
	}
	//1.- A throw to second after one second turns the stop into a slide.
	predicted, ok := contested.Predict(2)
	if !ok {
		t.Fatalf("expected a prediction for second base")
	}
	contested.Contest()
	slid := map[*Baserunner]bool{}
	arrivals := map[*Baserunner]float64{}
	for _, b := range []*Baserunner{contested, braking} {
		for clock := 0.0; clock < 10; clock += 0.005 {
			if arrival, ok := b.Arrival(); ok {
				arrivals[b] = arrival
				break
			}
			b.Advance(0.005)
			slid[b] = slid[b] || b.Sliding()
		}
	}
	if !slid[contested] || slid[braking] || !contested.Contested() || braking.Contested() {
		t.Fatalf("only the contested runner should slide (contested %v, braking %v)", slid[contested], slid[braking])
	}
	//2.- Sliding beats braking to the bag and matches the race prediction.
	if arrivals[contested] == 0 || arrivals[braking] <= arrivals[contested] {
		t.Fatalf("slide %.3f should beat braking %.3f", arrivals[contested], arrivals[braking])
	}
	if math.Abs(arrivals[contested]-predicted) > 0.01 {
		t.Fatalf("prediction %.3f differs from actual %.3f", predicted, arrivals[contested])
	}
	for _, b := range []*Baserunner{contested, braking} {
		if b.Reached() != 2 || b.Speed() != 0 {
			t.Fatalf("expected the runner stopped on second, got station %d at %.2f ft/s", b.Reached(), b.Speed())
		}
	}
}

func TestForcedRunnerIsContestedFromContact(t *testing.T) {
	forced := NewBaserunner(OnBase(1), Plan{Trigger: OnContact, Target: 2, Forced: true}, DefaultOptions())
	if err := forced.Go(0, 0, 2); err != nil {
		t.Fatalf("go: %v", err)
	}
	if !forced.Contested() {
		t.Fatalf("a forced runner expects a play at the next base")
	}
	if err := forced.Extend(3); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if forced.Contested() {
		t.Fatalf("a new target starts uncontested")
	}
}

func TestLeadShortensTheRun(t *testing.T) {
	plain := NewBaserunner(OnBase(1), Plan{Trigger: OnContact, Target: 2}, DefaultOptions())
	lead := OnBase(1)
	lead.Lead = 12
	leading := NewBaserunner(lead, Plan{Trigger: OnContact, Target: 2}, DefaultOptions())
	for _, b := range []*Baserunner{plain, leading} {
		if err := b.Go(0, 0, 2); err != nil {
			t.Fatalf("go: %v", err)
		}
	}
	if a, b := runUntilArrival(t, plain, 0.005, 10), runUntilArrival(t, leading, 0.005, 10); b >= a {
		t.Fatalf("lead should arrive first: %.3f vs %.3f", b, a)
	}
}

func TestArrivalTimesAroundTheBases(t *testing.T) {
	times, err := ArrivalTimes(Batter(), 0, DefaultOptions())
	if err != nil {
		t.Fatalf("arrival times: %v", err)
	}
	//1.- Rounding first costs time against the straight run-through.
	if straight := kinematics.DefaultRunner().TimeToCover(90); times[1] < straight-0.01 || times[1] > straight+1 {
		t.Fatalf("unexpected time to first %.3f", times[1])
	}
	for station := 2; station <= 4; station++ {
		if times[station] <= times[station-1] {
			t.Fatalf("arrival at %d (%.3f) not after %d (%.3f)", station, times[station], station-1, times[station-1])
		}
	}
	if times[4] < 14 || times[4] > 20 {
		t.Fatalf("unexpected time around the bases %.3f", times[4])
	}
}

func TestValidateLineup(t *testing.T) {
	if err := ValidateLineup([]Runner{Batter(), OnBase(1), OnBase(3)}); err != nil {
		t.Fatalf("valid lineup rejected: %v", err)
	}
	var cfg *physics.ConfigurationError
	if err := ValidateLineup([]Runner{OnBase(1)}); !errors.As(err, &cfg) {
		t.Fatalf("expected missing batter error, got %v", err)
	}
	if err := ValidateLineup([]Runner{Batter(), OnBase(2), OnBase(2)}); !errors.As(err, &cfg) {
		t.Fatalf("expected duplicate runner error, got %v", err)
	}
	batter := Batter()
	batter.Lead = 5
	if err := batter.Validate(); !errors.As(err, &cfg) {
		t.Fatalf("expected batter lead to be rejected, got %v", err)
	}
}

func TestShouldAdvanceUsesMargin(t *testing.T) {
	opts := DefaultOptions()
	if ShouldAdvance(5, 5.2, opts) {
		t.Fatalf("0.2 s is inside the safety margin")
	}
	if !ShouldAdvance(5, 5.4, opts) || !ShouldAdvance(5, math.Inf(1), opts) {
		t.Fatalf("runner should take the base with room to spare")
	}
}
