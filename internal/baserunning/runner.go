package baserunning

import (
	"fmt"

	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/kinematics"
	"diamondsim/engine/internal/physics"
)

// maxLead bounds the lead a runner may take off their bag.
const maxLead = 25.0

// Runner is one baserunner at the moment of contact. Station 0 is the batter.
type Runner struct {
	ID     string                `json:"id,omitempty" yaml:"id"`
	Start  int                   `json:"start" yaml:"start"`
	Motion kinematics.Attributes `json:"motion" yaml:"motion"`
	Lead   float64               `json:"lead,omitempty" yaml:"lead"`
}

// Batter returns the batter-runner with league-average speed.
func Batter() Runner {
	return Runner{ID: "batter", Start: field.HomeStation, Motion: kinematics.DefaultRunner()}
}

// OnBase returns a league-average runner on the given station.
func OnBase(station int) Runner {
	return Runner{ID: fmt.Sprintf("runner-%d", station), Start: station, Motion: kinematics.DefaultRunner()}
}

// IsBatter reports whether the runner starts at home plate.
func (r Runner) IsBatter() bool { return r.Start == field.HomeStation }

// Validate checks a single runner.
func (r Runner) Validate() error {
	if r.Start < field.HomeStation || r.Start >= field.ScoreStation {
		return &physics.ConfigurationError{Field: "runner.start", Reason: fmt.Sprintf("station %d is not a base", r.Start)}
	}
	if r.Lead < 0 || r.Lead > maxLead {
		return &physics.ConfigurationError{Field: "runner.lead", Reason: fmt.Sprintf("must be within [0, %.0f] ft", maxLead)}
	}
	if r.IsBatter() && r.Lead != 0 {
		return &physics.ConfigurationError{Field: "runner.lead", Reason: "the batter cannot take a lead"}
	}
	if err := r.Motion.Validate(); err != nil {
		return fmt.Errorf("runner %d: %w", r.Start, err)
	}
	return nil
}

// ValidateLineup requires exactly one batter and at most one runner per base.
func ValidateLineup(runners []Runner) error {
	seen := make(map[int]bool, len(runners))
	for _, r := range runners {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.Start] {
			return &physics.ConfigurationError{Field: "runners", Reason: fmt.Sprintf("two runners on station %d", r.Start)}
		}
		seen[r.Start] = true
	}
	if !seen[field.HomeStation] {
		return &physics.ConfigurationError{Field: "runners", Reason: "missing the batter"}
	}
	return nil
}

// Forces reports which occupied stations are forced to advance. The batter is
// always forced; a runner is forced when every station behind them is occupied.
func Forces(occupied []int) map[int]bool {
	on := make(map[int]bool, len(occupied))
	for _, s := range occupied {
		on[s] = true
	}
	forced := make(map[int]bool, len(occupied))
	chain := true
	for station := field.HomeStation; station < field.ScoreStation; station++ {
		if !on[station] {
			chain = false
			continue
		}
		if station == field.HomeStation || chain {
			forced[station] = true
		}
	}
	return forced
}
