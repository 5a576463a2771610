package play

import (
	"fmt"

	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/physics"
)

// BallKind tags the ball state variant.
type BallKind int

const (
	InFlight BallKind = iota
	Rolling
	Held
)

func (k BallKind) String() string {
	return [...]string{"in_flight", "rolling", "held"}[k]
}

// BallState is the tagged ball variant. Flight is the active path while the
// ball is loose; Holder is set while a fielder has it.
type BallState struct {
	Kind   BallKind            `json:"kind"`
	Holder field.Position      `json:"holder,omitempty"`
	Since  float64             `json:"since"`
	Path   *physics.BallPath   `json:"-"`
	Throw  *physics.Trajectory `json:"-"`
}

// allowed lists the legal ball transitions. A throw takes a held ball back in flight.
var allowed = map[BallKind][]BallKind{
	InFlight: {Rolling, Held},
	Rolling:  {Held},
	Held:     {InFlight},
}

func (b *BallState) transition(to BallKind, at float64) error {
	for _, next := range allowed[b.Kind] {
		if next == to {
			b.Kind, b.Since = to, at
			return nil
		}
	}
	return fmt.Errorf("illegal ball transition %s -> %s at %.3f", b.Kind, to, at)
}

// ball is the scheduler entity that tracks where the ball is on the play clock.
type ball struct {
	state    BallState
	clock    float64
	position physics.Vec3
	holder   func(field.Position) physics.Vec3
}

func (b *ball) Advance(dt float64) {
	b.clock += dt
	b.position = b.locate(b.clock)
}

func (b *ball) locate(t float64) physics.Vec3 {
	switch {
	case b.state.Kind == Held:
		return b.holder(b.state.Holder).Add(physics.Vec3{0, 0, 4})
	case b.state.Throw != nil:
		return b.state.Throw.At(t).Position
	case b.state.Path != nil:
		s, _ := b.state.Path.At(t)
		return s.Position
	}
	return b.position
}

// catch hands the ball to a fielder.
func (b *ball) catch(holder field.Position, at float64) error {
	if err := b.state.transition(Held, at); err != nil {
		return err
	}
	b.state.Holder = holder
	b.state.Throw = nil
	return nil
}

// release puts a thrown ball in flight.
func (b *ball) release(throw *physics.Trajectory, at float64) error {
	if err := b.state.transition(InFlight, at); err != nil {
		return err
	}
	b.state.Holder = 0
	b.state.Throw = throw
	return nil
}

// loose leaves the ball rolling where it lies, following path if one is given.
func (b *ball) loose(path *physics.Trajectory, at float64) error {
	b.state.Throw = path
	if b.state.Kind == Rolling {
		return nil
	}
	return b.state.transition(Rolling, at)
}
