package fielding

// Options are the fielding constants shared by every play.
type Options struct {
	CatchWindow      float64 `json:"catch_window" yaml:"catch_window"`
	ReachHeight      float64 `json:"reach_height" yaml:"reach_height"`
	InfieldRange     float64 `json:"infield_range" yaml:"infield_range"`
	ScanStep         float64 `json:"scan_step" yaml:"scan_step"`
	ScanHorizon      float64 `json:"scan_horizon" yaml:"scan_horizon"`
	ErrorThreshold   float64 `json:"error_threshold" yaml:"error_threshold"`
	ReleaseHeight    float64 `json:"release_height" yaml:"release_height"`
	TargetHeight     float64 `json:"target_height" yaml:"target_height"`
	ThrowBackspinRPM float64 `json:"throw_backspin_rpm" yaml:"throw_backspin_rpm"`
	IntegrationStep  float64 `json:"integration_step" yaml:"integration_step"`
}

// DefaultOptions returns the tuned fielding constants.
func DefaultOptions() Options {
	return Options{
		CatchWindow:      0.1,
		ReachHeight:      7,
		InfieldRange:     20,
		ScanStep:         0.005,
		ScanHorizon:      30,
		ErrorThreshold:   6,
		ReleaseHeight:    6,
		TargetHeight:     4,
		ThrowBackspinRPM: 1000,
		IntegrationStep:  0.001,
	}
}
