package replayplayer

import (
	"fmt"

	"diamondsim/engine/internal/play"
	"diamondsim/engine/internal/replay"
)

// Report is the printable form of a bundle.
type Report struct {
	Manifest replay.Manifest `json:"manifest"`
	Header   *replay.Header  `json:"header,omitempty"`
	Outcome  *play.Outcome   `json:"outcome,omitempty"`
	Events   []replay.Event  `json:"events"`
	Frames   []play.Frame    `json:"frames"`
}

// Inspect loads the bundle at path and keeps every stride-th frame. The last
// frame is always kept so the resolved state shows.
func Inspect(path string, stride int) (*Report, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required")
	}
	if stride < 1 {
		return nil, fmt.Errorf("stride must be at least 1, got %d", stride)
	}
	bundle, err := replay.Load(path)
	if err != nil {
		return nil, err
	}
	outcome, _, err := bundle.Outcome()
	if err != nil {
		return nil, err
	}
	report := &Report{Manifest: bundle.Manifest, Header: bundle.Header, Outcome: outcome, Events: bundle.Events}
	for i, frame := range bundle.Frames {
		if i%stride == 0 || i == len(bundle.Frames)-1 {
			report.Frames = append(report.Frames, frame)
		}
	}
	return report, nil
}
