package main

import (
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"diamondsim/engine/internal/baserunning"
	"diamondsim/engine/internal/field"
	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/physics"
)

// PitchReport is what the pitch command prints.
type PitchReport struct {
	Pitch             physics.PitchRelease `json:"pitch"`
	FlightTime        float64              `json:"flight_time"`
	PlateX            float64              `json:"plate_x"`
	PlateZ            float64              `json:"plate_z"`
	PlateSpeedMPH     float64              `json:"plate_speed_mph"`
	VerticalBreakIn   float64              `json:"vertical_break_in"`
	HorizontalBreakIn float64              `json:"horizontal_break_in"`
	InStrikeZone      bool                 `json:"in_strike_zone"`
}

func pitchNames() string {
	var names []string
	for _, p := range physics.PitchTemplates() {
		names = append(names, p.Name)
	}
	return strings.Join(names, ", ")
}

// floatOverride is a flag that remembers whether it was given, so zero and
// negative spins can still override a template.
type floatOverride struct {
	value float64
	set   bool
}

func (f *floatOverride) String() string { return strconv.FormatFloat(f.value, 'g', -1, 64) }

func (f *floatOverride) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.value, f.set = v, true
	return nil
}

func (f *floatOverride) apply(dst *float64) {
	if f.set {
		*dst = f.value
	}
}

func runPitch(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("pitch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Optional config file (yaml, json or toml)")
	kind := fs.String("type", "four_seam", "Pitch template: "+pitchNames())
	var speed, backspin, sidespin, vertical, horizontal floatOverride
	fs.Var(&speed, "speed", "Release speed in mph")
	fs.Var(&backspin, "backspin", "Backspin in rpm; negative is topspin")
	fs.Var(&sidespin, "sidespin", "Sidespin in rpm")
	fs.Var(&vertical, "vertical-angle", "Release angle in degrees; negative aims downhill")
	fs.Var(&horizontal, "horizontal-angle", "Release angle in degrees toward the first-base side")
	if err := fs.Parse(args); err != nil {
		return err
	}
	pitch, ok := physics.PitchTemplate(*kind)
	if !ok {
		return usageError(fmt.Sprintf("unknown pitch type %q; want one of %s", *kind, pitchNames()))
	}
	speed.apply(&pitch.SpeedMPH)
	backspin.apply(&pitch.BackspinRPM)
	sidespin.apply(&pitch.SidespinRPM)
	vertical.apply(&pitch.VerticalAngleDeg)
	horizontal.apply(&pitch.HorizontalAngleDeg)

	a, err := setup(*configPath, stderr)
	if err != nil {
		return err
	}
	step := a.arbiter.Options().Fielding.IntegrationStep
	result, err := physics.SimulatePitch(physics.SeaLevel(), physics.Baseball(), pitch, physics.Options{Step: step})
	if err != nil {
		return err
	}
	a.log.Debug("pitch simulated", logging.String("type", pitch.Name), logging.Float64("flight_time", result.FlightTime))
	return writeJSON(stdout, PitchReport{
		Pitch:             pitch,
		FlightTime:        result.FlightTime,
		PlateX:            result.Plate.Position.X(),
		PlateZ:            result.Plate.Position.Z(),
		PlateSpeedMPH:     physics.ToMPH(result.Plate.Velocity.Len()),
		VerticalBreakIn:   result.VerticalBreakIn,
		HorizontalBreakIn: result.HorizontalBreakIn,
		InStrikeZone:      result.InStrikeZone,
	})
}

// ArrivalReport lists when a runner sent all the way touches each base.
type ArrivalReport struct {
	From     int                `json:"from"`
	Arrivals map[string]float64 `json:"arrivals"`
}

func runArrivals(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("arrivals", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Optional config file (yaml, json or toml)")
	from := fs.Int("from", field.HomeStation, "Starting station: 0 for the batter, 1 to 3 for a runner on base")
	lead := fs.Float64("lead", 0, "Lead off the starting base in feet")
	var top, reaction floatOverride
	fs.Var(&top, "top-speed", "Top speed in ft/s")
	fs.Var(&reaction, "reaction", "Reaction delay in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *from < field.HomeStation || *from >= field.ScoreStation {
		return usageError(fmt.Sprintf("from must be a station between %d and %d", field.HomeStation, field.ScoreStation-1))
	}
	runner := baserunning.Batter()
	if *from != field.HomeStation {
		runner = baserunning.OnBase(*from)
		runner.Lead = *lead
	}
	top.apply(&runner.Motion.TopSpeed)
	reaction.apply(&runner.Motion.ReactionDelay)

	a, err := setup(*configPath, stderr)
	if err != nil {
		return err
	}
	times, err := baserunning.ArrivalTimes(runner, 0, a.arbiter.Options().Running)
	if err != nil {
		return err
	}
	report := ArrivalReport{From: *from, Arrivals: make(map[string]float64, len(times))}
	for station, t := range times {
		report.Arrivals[field.BaseForStation(station).String()] = t
	}
	return writeJSON(stdout, report)
}
