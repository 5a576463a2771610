// Package scenario describes plays in files and requests: the conditions,
// the rosters on the field and the contact that starts the play.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"diamondsim/engine/internal/baserunning"
	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/fielding"
	"diamondsim/engine/internal/kinematics"
	"diamondsim/engine/internal/physics"
	"diamondsim/engine/internal/play"
)

// DefaultContactHeight is where the bat meets the ball when a scenario leaves it out, in feet.
const DefaultContactHeight = 3.0

// Scenario is one play as written by a person.
type Scenario struct {
	Name       string                         `json:"name,omitempty" yaml:"name"`
	ID         string                         `json:"id,omitempty" yaml:"id"`
	Seed       uint64                         `json:"seed,omitempty" yaml:"seed"`
	Outs       int                            `json:"outs,omitempty" yaml:"outs"`
	Conditions *physics.AtmosphericConditions `json:"conditions,omitempty" yaml:"conditions"`
	WindFPS    []float64                      `json:"wind_fps,omitempty" yaml:"wind_fps"`
	Park       ParkSpec                       `json:"park" yaml:"park"`
	Launch     LaunchSpec                     `json:"launch" yaml:"launch"`
	Defense    map[string]FielderSpec         `json:"defense,omitempty" yaml:"defense"`
	Batter     *MotionSpec                    `json:"batter,omitempty" yaml:"batter"`
	Runners    []RunnerSpec                   `json:"runners,omitempty" yaml:"runners"`
}

// LaunchSpec is the contact in the units a scout reads.
type LaunchSpec struct {
	ExitVelocityMPH float64  `json:"exit_velocity_mph" yaml:"exit_velocity_mph"`
	LaunchAngleDeg  float64  `json:"launch_angle_deg" yaml:"launch_angle_deg"`
	SprayAngleDeg   float64  `json:"spray_angle_deg" yaml:"spray_angle_deg"`
	BackspinRPM     float64  `json:"backspin_rpm,omitempty" yaml:"backspin_rpm"`
	SidespinRPM     float64  `json:"sidespin_rpm,omitempty" yaml:"sidespin_rpm"`
	ContactHeight   *float64 `json:"contact_height,omitempty" yaml:"contact_height"`
}

// ParkSpec names a known park, or gives its dimensions, or its full fence.
type ParkSpec struct {
	Name       string             `json:"name,omitempty" yaml:"name"`
	Dimensions *Dimensions        `json:"dimensions,omitempty" yaml:"dimensions"`
	Fence      []field.FencePoint `json:"fence,omitempty" yaml:"fence"`
}

// Dimensions are the published outfield distances and wall heights in feet.
type Dimensions struct {
	LeftLine   float64 `json:"left_line" yaml:"left_line"`
	LeftGap    float64 `json:"left_gap" yaml:"left_gap"`
	Center     float64 `json:"center" yaml:"center"`
	RightGap   float64 `json:"right_gap" yaml:"right_gap"`
	RightLine  float64 `json:"right_line" yaml:"right_line"`
	LeftWall   float64 `json:"left_wall" yaml:"left_wall"`
	CenterWall float64 `json:"center_wall" yaml:"center_wall"`
	RightWall  float64 `json:"right_wall" yaml:"right_wall"`
}

// MotionSpec overrides league-average motion attributes.
type MotionSpec struct {
	ReactionDelay *float64 `json:"reaction_delay,omitempty" yaml:"reaction_delay"`
	Acceleration  *float64 `json:"acceleration,omitempty" yaml:"acceleration"`
	TopSpeed      *float64 `json:"top_speed,omitempty" yaml:"top_speed"`
}

// FielderSpec moves or re-rates one fielder of the standard defense.
type FielderSpec struct {
	MotionSpec       `yaml:",inline"`
	X                *float64 `json:"x,omitempty" yaml:"x"`
	Y                *float64 `json:"y,omitempty" yaml:"y"`
	ThrowSpeedMPH    *float64 `json:"throw_speed_mph,omitempty" yaml:"throw_speed_mph"`
	ThrowAccuracyDeg *float64 `json:"throw_accuracy_deg,omitempty" yaml:"throw_accuracy_deg"`
	TransferDelay    *float64 `json:"transfer_delay,omitempty" yaml:"transfer_delay"`
}

// RunnerSpec puts a runner on base.
type RunnerSpec struct {
	MotionSpec `yaml:",inline"`
	ID         string  `json:"id,omitempty" yaml:"id"`
	Base       int     `json:"base" yaml:"base"`
	Lead       float64 `json:"lead,omitempty" yaml:"lead"`
}

var parks = map[string]field.Park{
	"generic":     field.GenericPark(),
	"short-porch": {Name: "short-porch", Fence: field.FenceProfile(318, 399, 408, 385, 314, 8, 8, 8)},
	"green-wall":  {Name: "green-wall", Fence: field.FenceProfile(310, 379, 390, 380, 302, 37, 17, 5)},
	"spacious":    {Name: "spacious", Fence: field.FenceProfile(335, 390, 415, 390, 335, 10, 10, 10)},
}

// ParkNames lists the parks a scenario may name.
func ParkNames() []string {
	names := make([]string, 0, len(parks))
	for name := range parks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads a YAML scenario file. Unknown keys are rejected so typos do not
// silently fall back to defaults.
func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseYAML(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// ParseYAML decodes one YAML scenario document.
func ParseYAML(raw []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	return &s, nil
}

// Input builds the play the scenario describes. Every problem is reported at once.
func (s *Scenario) Input() (play.Input, error) {
	var problems []error
	in := play.Input{
		ID:   s.ID,
		Ball: physics.Baseball(),
		Outs: s.Outs,
		Seed: s.Seed,
	}

	//1.- Conditions and wind become the environment.
	var wind physics.Vec3
	switch len(s.WindFPS) {
	case 0:
	case 3:
		wind = physics.Vec3{s.WindFPS[0], s.WindFPS[1], s.WindFPS[2]}
	default:
		problems = append(problems, &physics.ConfigurationError{Field: "wind_fps", Reason: "needs three components"})
	}
	if s.Conditions != nil {
		env, err := physics.NewEnvironment(*s.Conditions, wind)
		if err != nil {
			problems = append(problems, err)
		}
		in.Environment = env
	} else {
		in.Environment = physics.SeaLevel()
		in.Environment.Wind = wind
	}

	//2.- The park, launch and rosters.
	park, err := s.Park.park()
	if err != nil {
		problems = append(problems, err)
	}
	in.Park = park
	in.Launch = s.Launch.launch()
	if in.Defense, err = s.defense(); err != nil {
		problems = append(problems, err)
	}
	in.Runners = s.runners()

	if err := errors.Join(problems...); err != nil {
		return play.Input{}, err
	}
	if err := in.Validate(); err != nil {
		return play.Input{}, err
	}
	return in, nil
}

func (l LaunchSpec) launch() physics.Launch {
	height := DefaultContactHeight
	if l.ContactHeight != nil {
		height = *l.ContactHeight
	}
	velocity := physics.LaunchVelocity(physics.MPH(l.ExitVelocityMPH), l.LaunchAngleDeg, l.SprayAngleDeg)
	return physics.Launch{
		Position: physics.Vec3{0, 0, height},
		Velocity: velocity,
		Spin:     physics.BackspinSidespin(velocity, l.BackspinRPM, l.SidespinRPM),
	}
}

func (p ParkSpec) park() (field.Park, error) {
	switch {
	case len(p.Fence) > 0:
		return field.Park{Name: p.Name, Fence: append([]field.FencePoint(nil), p.Fence...)}, nil
	case p.Dimensions != nil:
		d := p.Dimensions
		name := p.Name
		if name == "" {
			name = "custom"
		}
		return field.Park{Name: name, Fence: field.FenceProfile(d.LeftLine, d.LeftGap, d.Center, d.RightGap, d.RightLine, d.LeftWall, d.CenterWall, d.RightWall)}, nil
	case p.Name == "":
		return field.GenericPark(), nil
	}
	park, ok := parks[strings.ToLower(p.Name)]
	if !ok {
		return field.Park{}, &physics.ConfigurationError{Field: "park.name", Reason: fmt.Sprintf("unknown park %q, known: %s", p.Name, strings.Join(ParkNames(), ", "))}
	}
	return park, nil
}

func (m *MotionSpec) apply(attrs *kinematics.Attributes) {
	if m == nil {
		return
	}
	if m.ReactionDelay != nil {
		attrs.ReactionDelay = *m.ReactionDelay
	}
	if m.Acceleration != nil {
		attrs.Acceleration = *m.Acceleration
	}
	if m.TopSpeed != nil {
		attrs.TopSpeed = *m.TopSpeed
	}
}

func (s *Scenario) defense() ([]fielding.Fielder, error) {
	defense := fielding.StandardDefense()
	keys := make([]string, 0, len(s.Defense))
	for key := range s.Defense {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		pos, err := field.ParsePosition(key)
		if err != nil {
			return nil, &physics.ConfigurationError{Field: "defense", Reason: err.Error()}
		}
		spec := s.Defense[key]
		f := &defense[int(pos)-1]
		spec.MotionSpec.apply(&f.Motion)
		if spec.X != nil {
			f.Location[0] = *spec.X
		}
		if spec.Y != nil {
			f.Location[1] = *spec.Y
		}
		if spec.ThrowSpeedMPH != nil {
			f.ThrowSpeedMPH = *spec.ThrowSpeedMPH
		}
		if spec.ThrowAccuracyDeg != nil {
			f.ThrowAccuracyDeg = *spec.ThrowAccuracyDeg
		}
		if spec.TransferDelay != nil {
			f.TransferDelay = *spec.TransferDelay
		}
	}
	return defense, nil
}

func (s *Scenario) runners() []baserunning.Runner {
	batter := baserunning.Batter()
	s.Batter.apply(&batter.Motion)
	runners := []baserunning.Runner{batter}
	for _, spec := range s.Runners {
		runner := baserunning.OnBase(spec.Base)
		if spec.ID != "" {
			runner.ID = spec.ID
		}
		runner.Lead = spec.Lead
		spec.MotionSpec.apply(&runner.Motion)
		runners = append(runners, runner)
	}
	return runners
}
