package play

import (
	"errors"
	"fmt"

	"diamondsim/engine/internal/baserunning"
	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/fielding"
	"diamondsim/engine/internal/physics"
)

// Options are the arbiter constants shared by every play.
type Options struct {
	Step        float64             `json:"step" yaml:"step"`                 // s
	TieEpsilon  float64             `json:"tie_epsilon" yaml:"tie_epsilon"`   // s
	MaxDuration float64             `json:"max_duration" yaml:"max_duration"` // s after contact
	FrameEvery  int                 `json:"frame_every" yaml:"frame_every"`   // steps between observer frames
	Fielding    fielding.Options    `json:"fielding" yaml:"fielding"`
	Running     baserunning.Options `json:"running" yaml:"running"`
	Ground      physics.GroundModel `json:"ground" yaml:"ground"`
	Carom       float64             `json:"carom" yaml:"carom"` // wall restitution
}

func DefaultOptions() Options {
	return Options{
		Step:        0.005,
		TieEpsilon:  0.001,
		MaxDuration: 40,
		FrameEvery:  6,
		Fielding:    fielding.DefaultOptions(),
		Running:     baserunning.DefaultOptions(),
		Ground:      physics.DefaultGroundModel(),
		Carom:       0.3,
	}
}

// Validate reports every problem with the options at once.
func (o Options) Validate() error {
	var problems []error
	if !(o.Step > 0) || o.Step > 0.05 {
		problems = append(problems, &physics.ConfigurationError{Field: "step", Reason: "must be within (0, 0.05] s"})
	}
	if o.TieEpsilon < 0 {
		problems = append(problems, &physics.ConfigurationError{Field: "tie_epsilon", Reason: "must not be negative"})
	}
	if !(o.MaxDuration > 0) {
		problems = append(problems, &physics.ConfigurationError{Field: "max_duration", Reason: "must be positive"})
	}
	if o.Carom < 0 || o.Carom > 1 {
		problems = append(problems, &physics.ConfigurationError{Field: "carom", Reason: "must be within [0, 1]"})
	}
	if err := o.Ground.Validate(); err != nil {
		problems = append(problems, err)
	}
	return errors.Join(problems...)
}

// Input is everything one play needs at the moment of contact.
type Input struct {
	ID          string                   `json:"id,omitempty"`
	Environment physics.Environment      `json:"environment"`
	Ball        physics.ProjectileParams `json:"ball"`
	Launch      physics.Launch           `json:"launch"`
	Park        field.Park               `json:"park"`
	Defense     []fielding.Fielder       `json:"defense"`
	Runners     []baserunning.Runner     `json:"runners"`
	Outs        int                      `json:"outs"`
	Seed        uint64                   `json:"seed"`
}

// Validate reports every problem with the input at once.
func (in Input) Validate() error {
	var problems []error
	if err := in.Environment.Validate(); err != nil {
		problems = append(problems, err)
	}
	if err := in.Ball.Validate(); err != nil {
		problems = append(problems, err)
	}
	if err := in.Park.Validate(); err != nil {
		problems = append(problems, err)
	}
	if in.Outs < 0 || in.Outs > 2 {
		problems = append(problems, &physics.ConfigurationError{Field: "outs", Reason: fmt.Sprintf("must be 0, 1 or 2, got %d", in.Outs)})
	}
	if _, err := fielding.NewDefense(in.Defense); err != nil {
		problems = append(problems, err)
	}
	if err := baserunning.ValidateLineup(in.Runners); err != nil {
		problems = append(problems, err)
	}
	return errors.Join(problems...)
}
