package simulation

import (
	"context"
	"time"
)

// FrameFunc emits the play state at the given simulated time.
type FrameFunc func(playTime float64) error

// Playback replays a resolved play against the wall clock at a fixed frame rate.
type Playback struct {
	interval time.Duration
	speed    float64
	emit     FrameFunc
}

// NewPlayback configures a playback that targets the provided frames per
// second. Speed scales simulated time against wall time; 1 is real time.
func NewPlayback(targetHz, speed float64, emit FrameFunc) *Playback {
	if targetHz <= 0 {
		targetHz = 60
	}
	if speed <= 0 {
		speed = 1
	}
	if emit == nil {
		emit = func(float64) error { return nil }
	}
	interval := time.Duration(float64(time.Second) / targetHz)
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Playback{interval: interval, speed: speed, emit: emit}
}

// Run emits frames from start to end and blocks until the last frame went out,
// the context is cancelled, or emit fails.
func (p *Playback) Run(ctx context.Context, start, end float64) error {
	if p == nil {
		return nil
	}
	if err := p.emit(start); err != nil {
		return err
	}
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	frame := p.interval.Seconds() * p.speed
	playTime := start
	last := time.Now()
	accumulator := time.Duration(0)
	for playTime < end {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			//1.- Accumulate elapsed wall time and emit fixed frames while catching up.
			accumulator += now.Sub(last)
			last = now
			for accumulator >= p.interval && playTime < end {
				playTime += frame
				if playTime > end {
					playTime = end
				}
				if err := p.emit(playTime); err != nil {
					return err
				}
				accumulator -= p.interval
			}
		}
	}
	return nil
}

// Interval exposes the configured frame interval for testing.
func (p *Playback) Interval() time.Duration {
	if p == nil {
		return 0
	}
	return p.interval
}
