package kinematics

import (
	"math"
	"sort"

	"diamondsim/engine/internal/physics"
)

// Path is a ground route parameterised by arc length.
type Path interface {
	Length() float64
	PointAt(s float64) physics.Vec3
	CurvatureAt(s float64) float64
}

// Bend is a stretch of constant curvature, in arc length along its path.
type Bend struct {
	Start     float64
	End       float64
	Curvature float64
}

// Bender is a path that can list its curved stretches exactly. Movers use it
// to brake for a corner from where it begins rather than from a sampled guess.
type Bender interface {
	Bends() []Bend
}

// Line is a straight segment.
type Line struct {
	From physics.Vec3
	To   physics.Vec3
}

func (l Line) Length() float64 { return physics.HorizontalDistance(l.From, l.To) }

func (l Line) PointAt(s float64) physics.Vec3 {
	length := l.Length()
	if length == 0 {
		return l.To
	}
	f := math.Max(0, math.Min(1, s/length))
	return l.From.Add(l.To.Sub(l.From).Mul(f))
}

func (Line) CurvatureAt(float64) float64 { return 0 }

// Arc is a circular segment in the ground plane. Sweep is signed: positive
// turns counter-clockwise seen from above.
type Arc struct {
	Center     physics.Vec3
	Radius     float64
	StartAngle float64
	Sweep      float64
}

func (a Arc) Length() float64 { return a.Radius * math.Abs(a.Sweep) }

func (a Arc) PointAt(s float64) physics.Vec3 {
	length := a.Length()
	f := 0.0
	if length > 0 {
		f = math.Max(0, math.Min(1, s/length))
	}
	angle := a.StartAngle + a.Sweep*f
	return a.Center.Add(physics.Vec3{a.Radius * math.Cos(angle), a.Radius * math.Sin(angle), 0})
}

func (a Arc) CurvatureAt(float64) float64 {
	if a.Radius <= 0 {
		return 0
	}
	return 1 / a.Radius
}

func (a Arc) Bends() []Bend {
	k := a.CurvatureAt(0)
	if k <= 0 {
		return nil
	}
	return []Bend{{Start: 0, End: a.Length(), Curvature: k}}
}

// Compound chains segments end to end.
type Compound struct {
	segments []Path
	offsets  []float64
	length   float64
}

// NewCompound joins the segments in order, skipping empty ones.
func NewCompound(segments ...Path) *Compound {
	c := &Compound{}
	for _, seg := range segments {
		if seg == nil || seg.Length() <= 0 {
			continue
		}
		c.segments = append(c.segments, seg)
		c.offsets = append(c.offsets, c.length)
		c.length += seg.Length()
	}
	return c
}

func (c *Compound) Length() float64 { return c.length }

func (c *Compound) locate(s float64) (Path, float64) {
	if len(c.segments) == 0 {
		return nil, 0
	}
	i := sort.Search(len(c.offsets), func(i int) bool { return c.offsets[i] > s }) - 1
	if i < 0 {
		i = 0
	}
	return c.segments[i], s - c.offsets[i]
}

func (c *Compound) PointAt(s float64) physics.Vec3 {
	seg, local := c.locate(s)
	if seg == nil {
		return physics.Vec3{}
	}
	return seg.PointAt(local)
}

func (c *Compound) CurvatureAt(s float64) float64 {
	seg, local := c.locate(s)
	if seg == nil {
		return 0
	}
	return seg.CurvatureAt(local)
}

// Bends lists the curved stretches of every segment shifted onto the joined path.
func (c *Compound) Bends() []Bend {
	var bends []Bend
	for i, seg := range c.segments {
		b, ok := seg.(Bender)
		if !ok {
			continue
		}
		for _, bend := range b.Bends() {
			bend.Start += c.offsets[i]
			bend.End += c.offsets[i]
			bends = append(bends, bend)
		}
	}
	return bends
}

// Segments exposes the joined segments in order.
func (c *Compound) Segments() []Path { return c.segments }
