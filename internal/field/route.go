package field

import (
	"fmt"
	"math"

	"diamondsim/engine/internal/kinematics"
	"diamondsim/engine/internal/physics"
)

const (
	// DefaultTurnRadius is the corner radius runners use when rounding a base.
	DefaultTurnRadius = 12.0
	minTurnRadius     = 1.0
)

// Route is the basepath a runner follows from one station to a later one.
// Straight legs are joined by circular corners at every intermediate base; the
// runner touches a base at the midpoint of its corner.
type Route struct {
	*kinematics.Compound
	From    int
	To      int
	radius  float64
	radii   map[int]float64
	touches map[int]float64
}

// NewRoute builds the route with the same corner radius at every base.
func NewRoute(from, to int, radius float64) (*Route, error) {
	radii := make(map[int]float64)
	for station := from + 1; station < to; station++ {
		radii[station] = radius
	}
	return buildRoute(from, to, radius, radii)
}

// Extend rebuilds the route to a further station. The corner at the current
// target is tightened so that it starts no earlier than progress, keeping the
// distance already run valid on the new route.
func (r *Route) Extend(to int, progress float64) (*Route, error) {
	if to <= r.To {
		return nil, fmt.Errorf("extend route from %d to %d: target must move forward", r.To, to)
	}
	radii := make(map[int]float64, len(r.radii)+1)
	for station, radius := range r.radii {
		radii[station] = radius
	}
	remaining := r.Length() - progress
	radii[r.To] = math.Max(minTurnRadius, math.Min(r.radius, remaining))
	for station := r.To + 1; station < to; station++ {
		radii[station] = r.radius
	}
	return buildRoute(r.From, to, r.radius, radii)
}

func buildRoute(from, to int, radius float64, radii map[int]float64) (*Route, error) {
	if from < HomeStation || to > ScoreStation || to <= from {
		return nil, fmt.Errorf("invalid route from station %d to %d", from, to)
	}
	//1.- Work out each corner's tangent points and arc before laying the legs.
	type corner struct {
		in, out physics.Vec3
		arc     kinematics.Arc
	}
	corners := make(map[int]corner)
	for station := from + 1; station < to; station++ {
		prev, here, next := StationPosition(station-1), StationPosition(station), StationPosition(station+1)
		uIn := physics.Direction(here.Sub(prev))
		uOut := physics.Direction(next.Sub(here))
		theta := math.Acos(math.Max(-1, math.Min(1, uIn.Dot(uOut))))
		r := math.Max(minTurnRadius, radii[station])
		tangent := r * math.Tan(theta/2)
		turn := 1.0
		if uIn.Cross(uOut).Z() < 0 {
			turn = -1
		}
		normal := physics.Vec3{-uIn.Y(), uIn.X(), 0}.Mul(turn)
		in := here.Sub(uIn.Mul(tangent))
		center := in.Add(normal.Mul(r))
		start := in.Sub(center)
		corners[station] = corner{
			in:  in,
			out: here.Add(uOut.Mul(tangent)),
			arc: kinematics.Arc{Center: center, Radius: r, StartAngle: math.Atan2(start.Y(), start.X()), Sweep: turn * theta},
		}
		radii[station] = r
	}
	//2.- Chain legs and corners, recording where each base is touched.
	var segments []kinematics.Path
	touches := make(map[int]float64)
	cursor := StationPosition(from)
	travelled := 0.0
	for station := from + 1; station <= to; station++ {
		if c, ok := corners[station]; ok {
			leg := kinematics.Line{From: cursor, To: c.in}
			segments = append(segments, leg, c.arc)
			travelled += leg.Length()
			touches[station] = travelled + c.arc.Length()/2
			travelled += c.arc.Length()
			cursor = c.out
			continue
		}
		leg := kinematics.Line{From: cursor, To: StationPosition(station)}
		segments = append(segments, leg)
		travelled += leg.Length()
		touches[station] = travelled
	}
	return &Route{
		Compound: kinematics.NewCompound(segments...),
		From:     from,
		To:       to,
		radius:   radius,
		radii:    radii,
		touches:  touches,
	}, nil
}

// TouchDistance is the distance along the route at which the runner touches station.
func (r *Route) TouchDistance(station int) (float64, bool) {
	d, ok := r.touches[station]
	return d, ok
}

// CornerRadius reports the radius used at an intermediate station.
func (r *Route) CornerRadius(station int) float64 { return r.radii[station] }
