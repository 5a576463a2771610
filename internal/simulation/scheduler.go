package simulation

import (
	"errors"
	"math"
)

// ErrHorizon is returned when a run reaches its time limit before the
// evaluation hook reports completion.
var ErrHorizon = errors.New("simulation horizon reached before resolution")

// Advancer is anything that moves forward on the shared play clock.
type Advancer interface {
	Advance(dt float64)
}

// AdvancerFunc adapts a plain function to the Advancer interface.
type AdvancerFunc func(dt float64)

func (f AdvancerFunc) Advance(dt float64) { f(dt) }

// EvaluateFunc inspects the post-step state and reports whether the run is finished.
type EvaluateFunc func(now float64) (bool, error)

// Scheduler steps an ordered set of entities on one fixed time axis. Every
// entity advances before the evaluation hook sees the step, so no entity ever
// observes a peer that is only partly updated.
type Scheduler struct {
	step   float64
	origin float64
	clock  float64
	steps  int
	stages [][]Advancer
}

// NewScheduler creates a scheduler whose clock starts at start.
func NewScheduler(step, start float64) *Scheduler {
	if !(step > 0) || math.IsInf(step, 0) {
		step = 0.005
	}
	return &Scheduler{step: step, origin: start, clock: start}
}

// Stage appends an ordered group of entities. Stages advance in the order
// they were added; entities inside a stage advance in insertion order.
func (s *Scheduler) Stage(entities ...Advancer) int {
	s.stages = append(s.stages, entities)
	return len(s.stages) - 1
}

// Add appends entities to an existing stage.
func (s *Scheduler) Add(stage int, entities ...Advancer) {
	if stage < 0 || stage >= len(s.stages) {
		return
	}
	s.stages[stage] = append(s.stages[stage], entities...)
}

// Step advances every entity by one fixed step and returns the new clock.
func (s *Scheduler) Step() float64 {
	for _, stage := range s.stages {
		for _, entity := range stage {
			entity.Advance(s.step)
		}
	}
	s.steps++
	// Recompute from the step count so long runs do not accumulate drift.
	s.clock = s.origin + float64(s.steps)*s.step
	return s.clock
}

// Run steps until evaluate reports completion, evaluate fails, or the clock
// passes until.
func (s *Scheduler) Run(until float64, evaluate EvaluateFunc) error {
	for s.clock < until {
		now := s.Step()
		if evaluate == nil {
			continue
		}
		done, err := evaluate(now)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return ErrHorizon
}

func (s *Scheduler) Clock() float64    { return s.clock }
func (s *Scheduler) StepSize() float64 { return s.step }
func (s *Scheduler) Steps() int        { return s.steps }
