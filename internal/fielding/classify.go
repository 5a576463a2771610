package fielding

import "fmt"

// BattedBallType buckets a batted ball by launch angle.
type BattedBallType int

const (
	GroundBall BattedBallType = iota
	LineDrive
	FlyBall
	PopUp
)

func (b BattedBallType) String() string {
	switch b {
	case GroundBall:
		return "ground_ball"
	case LineDrive:
		return "line_drive"
	case FlyBall:
		return "fly_ball"
	default:
		return "pop_up"
	}
}

func (b BattedBallType) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

func (b *BattedBallType) UnmarshalText(text []byte) error {
	for candidate := GroundBall; candidate <= PopUp; candidate++ {
		if candidate.String() == string(text) {
			*b = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown batted ball type %q", text)
}

// Classify uses the conventional launch angle bands.
func Classify(launchAngleDeg float64) BattedBallType {
	switch {
	case launchAngleDeg < 10:
		return GroundBall
	case launchAngleDeg < 25:
		return LineDrive
	case launchAngleDeg < 50:
		return FlyBall
	default:
		return PopUp
	}
}
