package field

import (
	"fmt"
	"strings"

	"diamondsim/engine/internal/physics"
)

// Position is a defensive position, numbered the way scorers number them.
type Position int

const (
	Pitcher Position = iota + 1
	Catcher
	FirstBaseman
	SecondBaseman
	ThirdBaseman
	Shortstop
	LeftFielder
	CenterFielder
	RightFielder
)

var positionNames = map[Position]string{
	Pitcher:       "P",
	Catcher:       "C",
	FirstBaseman:  "1B",
	SecondBaseman: "2B",
	ThirdBaseman:  "3B",
	Shortstop:     "SS",
	LeftFielder:   "LF",
	CenterFielder: "CF",
	RightFielder:  "RF",
}

func (p Position) String() string {
	if name, ok := positionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("position(%d)", int(p))
}

// Valid reports whether p is one of the nine positions.
func (p Position) Valid() bool { return p >= Pitcher && p <= RightFielder }

// Infielder covers the battery and the four infield positions.
func (p Position) Infielder() bool { return p >= Pitcher && p <= Shortstop }

// ParsePosition accepts scorer abbreviations ("SS") or numbers ("6").
func ParsePosition(s string) (Position, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for p, name := range positionNames {
		if name == s || fmt.Sprint(int(p)) == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown position %q", s)
}

// MarshalText renders the scorer abbreviation.
func (p Position) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid position %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText parses the scorer abbreviation.
func (p *Position) UnmarshalText(text []byte) error {
	parsed, err := ParsePosition(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Positions lists the nine positions in scoring order.
func Positions() []Position {
	return []Position{Pitcher, Catcher, FirstBaseman, SecondBaseman, ThirdBaseman, Shortstop, LeftFielder, CenterFielder, RightFielder}
}

// StandardAlignment is the default straight-up defensive alignment.
func StandardAlignment() map[Position]physics.Vec3 {
	return map[Position]physics.Vec3{
		Pitcher:       {0, MoundDistance, 0},
		Catcher:       {0, -3, 0},
		FirstBaseman:  {55, 92, 0},
		SecondBaseman: {35, 140, 0},
		ThirdBaseman:  {-55, 92, 0},
		Shortstop:     {-35, 140, 0},
		LeftFielder:   {-150, 250, 0},
		CenterFielder: {0, 310, 0},
		RightFielder:  {150, 250, 0},
	}
}

// ResponsibleFielder maps a ground point onto the fielder who owns that zone.
func ResponsibleFielder(p physics.Vec3) Position {
	x := p.X()
	switch {
	case DistanceFromHome(p) < 30:
		return Catcher
	case physics.HorizontalDistance(p, Mound()) < 25:
		return Pitcher
	case DistanceFromHome(p) > 180:
		switch {
		case x < -50:
			return LeftFielder
		case x > 50:
			return RightFielder
		default:
			return CenterFielder
		}
	case x > 45:
		return FirstBaseman
	case x < -45:
		return ThirdBaseman
	case x > 0:
		return SecondBaseman
	default:
		return Shortstop
	}
}

// OutfielderBehind picks the outfielder who backs up a ball heading along direction.
func OutfielderBehind(direction physics.Vec3) Position {
	angle := physics.SprayAngle(direction)
	switch {
	case angle < -15:
		return LeftFielder
	case angle > 15:
		return RightFielder
	default:
		return CenterFielder
	}
}
