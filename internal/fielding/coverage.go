package fielding

import (
	"math"

	"diamondsim/engine/internal/field"
)

// Receiver returns who covers base when the ball was fielded by fielder.
func Receiver(base field.Base, fielder field.Position) field.Position {
	switch base {
	case field.FirstBase:
		if fielder == field.FirstBaseman {
			return field.Pitcher
		}
		return field.FirstBaseman
	case field.SecondBase:
		switch fielder {
		case field.Shortstop, field.ThirdBaseman, field.LeftFielder, field.Pitcher:
			return field.SecondBaseman
		}
		return field.Shortstop
	case field.ThirdBase:
		if fielder == field.ThirdBaseman {
			return field.Shortstop
		}
		return field.ThirdBaseman
	default:
		if fielder == field.Catcher {
			return field.Pitcher
		}
		return field.Catcher
	}
}

// Coverage is a receiver heading for a base.
type Coverage struct {
	Receiver field.Position `json:"receiver"`
	Base     field.Base     `json:"base"`
	Arrival  float64        `json:"arrival"`
}

// Cover sends the receiver to the base when the ball is hit. Receivers read the
// play at contact so they are usually waiting on the bag for the throw.
func Cover(defense Defense, base field.Base, fielder field.Position, contact float64) (Coverage, bool) {
	receiver := Receiver(base, fielder)
	f, ok := defense[receiver]
	if !ok {
		return Coverage{}, false
	}
	return Coverage{
		Receiver: receiver,
		Base:     base,
		Arrival:  contact + f.Motion.TimeToReach(f.Location, base.Position()),
	}, true
}

// Control is when the receiver holds the ball on the base: the throw must have
// arrived, the receiver must be there, and they react to the release first.
func Control(cov Coverage, throw *ThrowRecord, receiver Fielder) float64 {
	return math.Max(throw.Arrival, math.Max(cov.Arrival, throw.ReleaseTime+receiver.Motion.ReactionDelay))
}
