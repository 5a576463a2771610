package field

import (
	"sort"

	"diamondsim/engine/internal/physics"
)

// FencePoint is the wall distance and height at one spray angle.
type FencePoint struct {
	AngleDeg float64 `json:"angle_deg" yaml:"angle_deg"`
	Distance float64 `json:"distance" yaml:"distance"`
	Height   float64 `json:"height" yaml:"height"`
}

// Park is the outfield wall profile between the foul poles.
type Park struct {
	Name  string       `json:"name" yaml:"name"`
	Fence []FencePoint `json:"fence" yaml:"fence"`
}

// FenceProfile builds a nine point wall from the five published dimensions.
func FenceProfile(lfLine, lfGap, cf, rfGap, rfLine, lfHeight, cfHeight, rfHeight float64) []FencePoint {
	return []FencePoint{
		{-45, lfLine, lfHeight},
		{-33.75, (lfLine + lfGap) / 2, lfHeight},
		{-22.5, lfGap, (lfHeight + cfHeight) / 2},
		{-11.25, (lfGap + cf) / 2, cfHeight},
		{0, cf, cfHeight},
		{11.25, (cf + rfGap) / 2, cfHeight},
		{22.5, rfGap, (rfHeight + cfHeight) / 2},
		{33.75, (rfGap + rfLine) / 2, rfHeight},
		{45, rfLine, rfHeight},
	}
}

// GenericPark is a symmetric 330/375/400 park with an eight foot wall.
func GenericPark() Park {
	return Park{Name: "generic", Fence: FenceProfile(330, 375, 400, 375, 330, 8, 8, 8)}
}

// Validate checks that the fence profile is usable.
func (p Park) Validate() error {
	if len(p.Fence) < 2 {
		return &physics.ConfigurationError{Field: "park.fence", Reason: "needs at least two points"}
	}
	for i, pt := range p.Fence {
		if !(pt.Distance > 0) || pt.Height < 0 {
			return &physics.ConfigurationError{Field: "park.fence", Reason: "distances must be positive and heights non-negative"}
		}
		if i > 0 && pt.AngleDeg <= p.Fence[i-1].AngleDeg {
			return &physics.ConfigurationError{Field: "park.fence", Reason: "angles must be strictly increasing"}
		}
	}
	return nil
}

// WallAt interpolates the wall distance and height at a spray angle.
func (p Park) WallAt(angleDeg float64) (distance, height float64) {
	pts := p.Fence
	if angleDeg <= pts[0].AngleDeg {
		return pts[0].Distance, pts[0].Height
	}
	last := pts[len(pts)-1]
	if angleDeg >= last.AngleDeg {
		return last.Distance, last.Height
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].AngleDeg >= angleDeg })
	a, b := pts[i-1], pts[i]
	f := (angleDeg - a.AngleDeg) / (b.AngleDeg - a.AngleDeg)
	return a.Distance + (b.Distance-a.Distance)*f, a.Height + (b.Height-a.Height)*f
}

// BeyondWall reports whether a ground point lies past the outfield wall.
func (p Park) BeyondWall(pt physics.Vec3) bool {
	distance, _ := p.WallAt(physics.SprayAngle(pt))
	return DistanceFromHome(pt) >= distance
}

// WallCrossing finds where a flight first reaches the wall. Cleared is true
// when the ball is fair and above the wall height at that moment.
func (p Park) WallCrossing(tr *physics.Trajectory) (sample physics.Sample, reached, cleared bool) {
	sample, reached = tr.FirstWhere(func(s physics.Sample) bool { return p.BeyondWall(s.Position) })
	if !reached {
		return physics.Sample{}, false, false
	}
	_, height := p.WallAt(physics.SprayAngle(sample.Position))
	cleared = Fair(sample.Position) && sample.Position.Z() > height
	return sample, true, cleared
}
