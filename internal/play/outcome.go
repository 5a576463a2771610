package play

import (
	"diamondsim/engine/internal/baserunning"
	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/fielding"
	"diamondsim/engine/internal/physics"
)

// Phase is the arbiter state machine position.
type Phase int

const (
	Started Phase = iota
	BallInFlight
	BallFielded
	ThrowInFlight
	Resolved
)

func (p Phase) String() string {
	return [...]string{"started", "ball_in_flight", "ball_fielded", "throw_in_flight", "resolved"}[p]
}

// Result is the aggregate call for the play.
type Result string

const (
	Single               Result = "single"
	Double               Result = "double"
	Triple               Result = "triple"
	HomeRun              Result = "home_run"
	InsideTheParkHomeRun Result = "inside_the_park_home_run"
	GroundOut            Result = "ground_out"
	FlyOut               Result = "fly_out"
	LineOut              Result = "line_out"
	PopOut               Result = "pop_out"
	FieldersChoice       Result = "fielders_choice"
	ForceOut             Result = "force_out"
	DoublePlay           Result = "double_play"
	FoulBall             Result = "foul_ball"
	ReachedOnError       Result = "error"
	Indeterminate        Result = "indeterminate"
)

// RaceKind labels how a runner's base was contested.
type RaceKind string

const (
	NoRace    RaceKind = ""
	ForceRace RaceKind = "force"
	TagRace   RaceKind = "tag"
	CatchRace RaceKind = "catch"
)

// RunnerResult is the final call for one runner.
type RunnerResult struct {
	ID      string   `json:"id,omitempty"`
	Start   int      `json:"start"`
	Reached int      `json:"reached"`
	Out     bool     `json:"out"`
	Arrival float64  `json:"arrival"`
	Race    RaceKind `json:"race,omitempty"`
	Scored  bool     `json:"scored"`
}

// OutRecord credits one out: the putout and every fielder who handled the ball before it.
type OutRecord struct {
	Runner  string           `json:"runner"`
	Base    field.Base       `json:"base"`
	Time    float64          `json:"time"`
	Race    RaceKind         `json:"race"`
	Putout  field.Position   `json:"putout"`
	Assists []field.Position `json:"assists,omitempty"`
}

// BattedBall summarises the primary batted ball.
type BattedBall struct {
	Type     fielding.BattedBallType `json:"type"`
	Landing  physics.Vec3            `json:"landing"`
	HangTime float64                 `json:"hang_time"`
	Carry    float64                 `json:"carry"`
	Apex     float64                 `json:"apex"`
	Caught   bool                    `json:"caught"`
	Fair     bool                    `json:"fair"`
	Wall     bool                    `json:"wall"`
}

// Outcome is the full record of a resolved play.
type Outcome struct {
	ID       string                 `json:"id"`
	Result   Result                 `json:"result"`
	Phase    Phase                  `json:"-"`
	Batted   BattedBall             `json:"batted"`
	Fielding *fielding.Play         `json:"fielding,omitempty"`
	Runners  []RunnerResult         `json:"runners"`
	Throws   []fielding.ThrowRecord `json:"throws,omitempty"`
	Outs     []OutRecord            `json:"outs,omitempty"`
	Errors   []field.Position       `json:"errors,omitempty"`
	Runs     int                    `json:"runs"`
	Duration float64                `json:"duration"`
	Steps    int                    `json:"steps"`
	Warnings []string               `json:"warnings,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Err      error                  `json:"-"`
	Path     *physics.BallPath      `json:"-"`
}

// Runner looks up the result for the runner who started on station.
func (o *Outcome) Runner(start int) (RunnerResult, bool) {
	for _, r := range o.Runners {
		if r.Start == start {
			return r, true
		}
	}
	return RunnerResult{}, false
}

// derive labels the play from the batter's fate, the outs and any error.
func derive(o *Outcome, play *fielding.Play, kind fielding.BattedBallType, batter *baserunning.Baserunner, erred bool) Result {
	outs := len(o.Outs)
	if play != nil && play.Kind == fielding.Caught {
		switch {
		case outs >= 2:
			return DoublePlay
		case kind == fielding.PopUp:
			return PopOut
		case kind == fielding.LineDrive:
			return LineOut
		}
		return FlyOut
	}
	if batter.Status() == baserunning.Out {
		switch {
		case outs >= 2:
			return DoublePlay
		case batter.Reached() > field.HomeStation:
			//1.- Thrown out stretching: the batter keeps the hit for the bases they made safely.
			return hitFor(batter.Reached())
		case kind == fielding.GroundBall:
			return GroundOut
		}
		//2.- A ball in the air that fell in and still beat the batter to first.
		return ForceOut
	}
	switch {
	case outs >= 2:
		return DoublePlay
	case outs == 1:
		return FieldersChoice
	case erred:
		return ReachedOnError
	}
	return hitFor(batter.Reached())
}

func hitFor(reached int) Result {
	switch reached {
	case 2:
		return Double
	case 3:
		return Triple
	case 4:
		return InsideTheParkHomeRun
	}
	return Single
}
