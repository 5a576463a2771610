package simulation

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPlaybackEmitsUntilEnd(t *testing.T) {
	var frames []float64
	playback := NewPlayback(200, 10, func(playTime float64) error {
		frames = append(frames, playTime)
		return nil
	})
	if err := playback.Run(context.Background(), 0, 0.5); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(frames) < 2 || frames[0] != 0 || frames[len(frames)-1] != 0.5 {
		t.Fatalf("expected frames from 0 to 0.5, got %v", frames)
	}
	for i := 1; i < len(frames); i++ {
		if frames[i] <= frames[i-1] {
			t.Fatalf("frames went backwards at %d: %v", i, frames)
		}
	}
}

func TestPlaybackStopsOnCancel(t *testing.T) {
	playback := NewPlayback(60, 1, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := playback.Run(ctx, 0, 60); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestPlaybackInterval(t *testing.T) {
	playback := NewPlayback(120, 1, nil)
	if got, expected := playback.Interval(), time.Second/120; got != expected {
		t.Fatalf("unexpected frame interval %v", got)
	}
}
