package scenario

import (
	"errors"
	"strings"
	"testing"

	"diamondsim/engine/internal/field"
)

func TestDecodeRequestMatchesYAML(t *testing.T) {
	body := `{
	  "seed": 11,
	  "outs": 1,
	  "park": {"name": "short-porch"},
	  "launch": {"exit_velocity_mph": 95, "launch_angle_deg": 12, "spray_angle_deg": 20, "backspin_rpm": 1500},
	  "defense": {"SS": {"x": -30, "y": 145, "throw_speed_mph": 88}},
	  "runners": [{"base": 2, "id": "speedy", "lead": 12, "reaction_delay": 0.2}]
	}`
	s, err := DecodeRequest([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	in, err := s.Input()
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	if in.Seed != 11 || in.Outs != 1 || in.Park.Name != "short-porch" {
		t.Fatalf("unexpected input header %+v", in)
	}
	if ss := in.Defense[field.Shortstop-1]; ss.Location.X() != -30 || ss.ThrowSpeedMPH != 88 {
		t.Fatalf("shortstop override lost: %+v", ss)
	}
	if r := in.Runners[1]; r.ID != "speedy" || r.Motion.ReactionDelay != 0.2 {
		t.Fatalf("embedded motion override lost: %+v", r)
	}
}

func TestDecodeRequestReportsSchemaViolations(t *testing.T) {
	_, err := DecodeRequest([]byte(`{"outs": 3, "runners": [{"base": 4}], "defense": {"DH": {}}}`))
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected a request error, got %v", err)
	}
	//1.- Every violated location is named, not only the first.
	for _, want := range []string{"/outs", "/runners/0/base", "launch", "/defense"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestDecodeRequestRejectsMalformedJSON(t *testing.T) {
	var reqErr *RequestError
	if _, err := DecodeRequest([]byte(`{"launch":`)); !errors.As(err, &reqErr) {
		t.Fatalf("expected a request error, got %v", err)
	}
	if _, err := DecodeRequest([]byte(`{"launch": {"exit_velocity_mph": 90, "launch_angle_deg": 10, "spray_angle_deg": 0}, "bunt": 1}`)); !errors.As(err, &reqErr) {
		t.Fatalf("expected unknown properties to be rejected, got %v", err)
	}
}

func TestDecodeRequestChecksNumbersAsWritten(t *testing.T) {
	launch := `"launch": {"exit_velocity_mph": 90, "launch_angle_deg": 10, "spray_angle_deg": 0}`
	//1.- Whole numbers pass the integer keywords, including a large seed.
	s, err := DecodeRequest([]byte(`{` + launch + `, "outs": 2, "seed": 9007199254740993}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if s.Outs != 2 || s.Seed != 9007199254740993 {
		t.Fatalf("numbers lost in decoding: outs %d seed %d", s.Outs, s.Seed)
	}
	//2.- Fractions fail them and are reported by path.
	_, err = DecodeRequest([]byte(`{` + launch + `, "outs": 1.5}`))
	var reqErr *RequestError
	if !errors.As(err, &reqErr) || !strings.Contains(err.Error(), "/outs") {
		t.Fatalf("expected a fractional out count to be rejected, got %v", err)
	}
	//3.- A second document after the request is refused.
	if _, err := DecodeRequest([]byte(`{` + launch + `} {}`)); !errors.As(err, &reqErr) {
		t.Fatalf("expected trailing data to be rejected, got %v", err)
	}
}

func TestSchemaCompiles(t *testing.T) {
	if _, err := Schema(); err != nil {
		t.Fatalf("schema: %v", err)
	}
}
