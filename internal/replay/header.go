package replay

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"diamondsim/engine/internal/physics"
)

// HeaderSchemaVersion tracks the schema version for replay header documents.
const HeaderSchemaVersion = 1

// LaunchSummary records the contact conditions of the play in the units a
// scout reads them: mph, degrees and rpm.
type LaunchSummary map[string]float64

// SummariseLaunch converts a launch into its summary form.
func SummariseLaunch(launch physics.Launch) LaunchSummary {
	v := launch.Velocity
	horizontal := physics.Horizontal(v).Len()
	return LaunchSummary{
		"exit_velocity_mph": physics.ToMPH(v.Len()),
		"launch_angle_deg":  math.Atan2(v.Z(), horizontal) * 180 / math.Pi,
		"spray_angle_deg":   physics.SprayAngle(v),
		"spin_rpm":          launch.Spin.RateRPM,
	}
}

// Clone returns a copy of the summary map.
func (s LaunchSummary) Clone() LaunchSummary {
	if len(s) == 0 {
		return nil
	}
	clone := make(LaunchSummary, len(s))
	for key, value := range s {
		clone[key] = value
	}
	return clone
}

// Header represents the metadata persisted alongside a replay bundle.
type Header struct {
	SchemaVersion int           `json:"schema_version"`
	PlayID        string        `json:"play_id"`
	Seed          uint64        `json:"seed"`
	Park          string        `json:"park,omitempty"`
	Result        string        `json:"result,omitempty"`
	Runs          int           `json:"runs"`
	Launch        LaunchSummary `json:"launch,omitempty"`
	FilePointer   string        `json:"file_pointer"`
}

// Validate ensures the header contains enough information for catalogue tooling.
func (h Header) Validate() error {
	if h.SchemaVersion <= 0 {
		return fmt.Errorf("schema_version must be positive")
	}
	if strings.TrimSpace(h.PlayID) == "" {
		return fmt.Errorf("play_id must not be empty")
	}
	//1.- Catalogue tooling resolves the bundle through the pointer.
	if strings.TrimSpace(h.FilePointer) == "" {
		return fmt.Errorf("file_pointer must not be empty")
	}
	return nil
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and decodes a replay header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, fmt.Errorf("decode header %s: %w", path, err)
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
