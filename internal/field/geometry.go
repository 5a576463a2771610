package field

import (
	"fmt"
	"math"

	"diamondsim/engine/internal/physics"
)

const (
	// BaseDistance is the distance between consecutive bases.
	BaseDistance = 90.0
	// MoundDistance is the distance from the plate to the pitching rubber.
	MoundDistance = 60.5
	// HomeStation and ScoreStation bracket the bases a runner can occupy:
	// the batter starts on station 0 and a run scores on station 4.
	HomeStation  = 0
	ScoreStation = 4
)

var diagonal = BaseDistance / math.Sqrt2

var basePositions = [4]physics.Vec3{
	{0, 0, 0},
	{diagonal, diagonal, 0},
	{0, 2 * diagonal, 0},
	{-diagonal, diagonal, 0},
}

// Base identifies one of the four bases.
type Base int

const (
	HomePlate Base = iota
	FirstBase
	SecondBase
	ThirdBase
)

func (b Base) String() string {
	switch b {
	case HomePlate:
		return "home"
	case FirstBase:
		return "first"
	case SecondBase:
		return "second"
	case ThirdBase:
		return "third"
	}
	return fmt.Sprintf("base(%d)", int(b))
}

// MarshalText renders the base name.
func (b Base) MarshalText() ([]byte, error) { return []byte(b.String()), nil }

// UnmarshalText parses a base name.
func (b *Base) UnmarshalText(text []byte) error {
	for candidate := HomePlate; candidate <= ThirdBase; candidate++ {
		if candidate.String() == string(text) {
			*b = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown base %q", text)
}

// Position is the ground point of the base.
func (b Base) Position() physics.Vec3 { return basePositions[((int(b)%4)+4)%4] }

// BaseForStation maps a runner station (0..4) onto the base standing there.
func BaseForStation(station int) Base { return Base(((station % 4) + 4) % 4) }

// StationPosition is the ground point of a runner station.
func StationPosition(station int) physics.Vec3 { return BaseForStation(station).Position() }

// Mound is the pitching rubber.
func Mound() physics.Vec3 { return physics.Vec3{0, MoundDistance, 0} }

// Fair reports whether a ground point lies between the foul lines.
func Fair(p physics.Vec3) bool {
	return p.Y() >= math.Abs(p.X())
}

// DistanceFromHome is the ground distance from the plate.
func DistanceFromHome(p physics.Vec3) float64 { return physics.Horizontal(p).Len() }
