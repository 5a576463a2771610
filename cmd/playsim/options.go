package main

import (
	"math"

	"diamondsim/engine/internal/config"
	"diamondsim/engine/internal/play"
)

// arbiterOptions overlays the tunable simulation settings on the engine defaults.
func arbiterOptions(sim config.SimulationConfig) play.Options {
	opts := play.DefaultOptions()
	opts.Step = sim.Step
	opts.TieEpsilon = sim.TieEpsilon
	opts.MaxDuration = sim.MaxPlayDuration
	opts.FrameEvery = frameEvery(sim.Step, sim.FrameRate)
	opts.Fielding.CatchWindow = sim.CatchWindow
	opts.Fielding.ErrorThreshold = sim.ThrowErrorThreshold
	return opts
}

// frameEvery is how many arbiter steps pass between captured frames so the
// capture rate is close to the playback frame rate.
func frameEvery(step, frameRate float64) int {
	if !(step > 0) || !(frameRate > 0) {
		return 1
	}
	return max(1, int(math.Round(1/(step*frameRate))))
}
