package fielding

import (
	"fmt"

	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/kinematics"
	"diamondsim/engine/internal/physics"
)

// Fielder is one defender and the throwing bundle on top of their motion attributes.
type Fielder struct {
	Position         field.Position        `json:"position" yaml:"position"`
	Location         physics.Vec3          `json:"location" yaml:"location"`
	Motion           kinematics.Attributes `json:"motion" yaml:"motion"`
	ThrowSpeedMPH    float64               `json:"throw_speed_mph" yaml:"throw_speed_mph"`
	ThrowAccuracyDeg float64               `json:"throw_accuracy_deg" yaml:"throw_accuracy_deg"`
	TransferDelay    float64               `json:"transfer_delay" yaml:"transfer_delay"`
}

// Validate checks the fielder before a play starts.
func (f Fielder) Validate() error {
	if !f.Position.Valid() {
		return &physics.ConfigurationError{Field: "fielder.position", Reason: fmt.Sprintf("unknown position %d", int(f.Position))}
	}
	if err := f.Motion.Validate(); err != nil {
		return fmt.Errorf("fielder %s: %w", f.Position, err)
	}
	switch {
	case !(f.ThrowSpeedMPH > 0):
		return &physics.ConfigurationError{Field: "fielder.throw_speed_mph", Reason: "must be positive"}
	case f.ThrowAccuracyDeg < 0:
		return &physics.ConfigurationError{Field: "fielder.throw_accuracy_deg", Reason: "must not be negative"}
	case f.TransferDelay < 0:
		return &physics.ConfigurationError{Field: "fielder.transfer_delay", Reason: "must not be negative"}
	}
	return nil
}

// StandardDefense returns nine league-average fielders in the standard alignment.
func StandardDefense() []Fielder {
	alignment := field.StandardAlignment()
	defense := make([]Fielder, 0, len(alignment))
	for _, pos := range field.Positions() {
		f := Fielder{
			Position:         pos,
			Location:         alignment[pos],
			Motion:           kinematics.DefaultFielder(),
			ThrowSpeedMPH:    82,
			ThrowAccuracyDeg: 0.5,
			TransferDelay:    0.6,
		}
		switch {
		case pos == field.Pitcher:
			f.ThrowSpeedMPH = 85
		case pos == field.Catcher:
			f.ThrowSpeedMPH = 80
			f.TransferDelay = 0.7
		case pos == field.Shortstop || pos == field.ThirdBaseman:
			f.ThrowSpeedMPH = 85
		case !pos.Infielder():
			f.ThrowSpeedMPH = 88
			f.TransferDelay = 0.8
			f.Motion.TopSpeed = 28.5
		}
		defense = append(defense, f)
	}
	return defense
}

// Defense indexes fielders by position.
type Defense map[field.Position]Fielder

// NewDefense validates the roster and indexes it.
func NewDefense(fielders []Fielder) (Defense, error) {
	d := make(Defense, len(fielders))
	for _, f := range fielders {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := d[f.Position]; dup {
			return nil, &physics.ConfigurationError{Field: "fielders", Reason: fmt.Sprintf("duplicate position %s", f.Position)}
		}
		d[f.Position] = f
	}
	return d, nil
}
