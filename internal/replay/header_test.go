package replay

import (
	"math"
	"path/filepath"
	"testing"

	"diamondsim/engine/internal/physics"
)

func TestWriteAndReadHeader(t *testing.T) {
	dir := t.TempDir()
	header := Header{
		SchemaVersion: HeaderSchemaVersion,
		PlayID:        "play-9",
		Seed:          42,
		Park:          "generic",
		Result:        "double",
		Runs:          1,
		Launch:        LaunchSummary{"exit_velocity_mph": 101.5},
		FilePointer:   "manifest.json",
	}
	path := filepath.Join(dir, "nested", "header.json")
	if err := WriteHeader(path, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	loaded, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if loaded.PlayID != "play-9" || loaded.Seed != 42 || loaded.Result != "double" || loaded.Runs != 1 {
		t.Fatalf("unexpected header values: %+v", loaded)
	}
	if loaded.Launch["exit_velocity_mph"] != 101.5 {
		t.Fatalf("unexpected launch summary: %#v", loaded.Launch)
	}
}

func TestHeaderValidation(t *testing.T) {
	cases := map[string]Header{
		"version": {PlayID: "p", FilePointer: "manifest.json"},
		"play id": {SchemaVersion: 1, FilePointer: "manifest.json"},
		"pointer": {SchemaVersion: 1, PlayID: "p"},
	}
	for name, header := range cases {
		if err := header.Validate(); err == nil {
			t.Fatalf("%s: expected a validation error", name)
		}
	}
}

func TestSummariseLaunch(t *testing.T) {
	velocity := physics.LaunchVelocity(physics.MPH(100), 30, -15)
	summary := SummariseLaunch(physics.Launch{Velocity: velocity, Spin: physics.BackspinSidespin(velocity, 2200, 0)})
	//1.- The summary reads back the units the launch was built from.
	for key, want := range map[string]float64{"exit_velocity_mph": 100, "launch_angle_deg": 30, "spray_angle_deg": -15} {
		if math.Abs(summary[key]-want) > 1e-9 {
			t.Fatalf("%s: expected %.3f, got %.6f", key, want, summary[key])
		}
	}
	if summary["spin_rpm"] <= 0 {
		t.Fatalf("expected a spin rate, got %v", summary["spin_rpm"])
	}
}
