package replayplayer

import (
	"testing"
	"time"

	"diamondsim/engine/internal/play"
	"diamondsim/engine/internal/replay"
)

func TestInspectThinsFramesAndKeepsTheLast(t *testing.T) {
	tmp := t.TempDir()
	clock := func() time.Time { return time.Date(2024, 7, 10, 15, 0, 0, 0, time.UTC) }
	writer, _, err := replay.NewWriter(tmp, "integration", clock)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if err := writer.AppendEvent(1.2, replay.EventOutcome, play.Outcome{ID: "integration", Result: play.Single, Runs: 1}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	for i := 0; i < 10; i++ {
		if err := writer.AppendFrame(play.Frame{T: float64(i) * 0.1, Phase: "ball_in_flight"}); err != nil {
			t.Fatalf("append frame %d: %v", i, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	report, err := Inspect(writer.Directory(), 4)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	//1.- Frames 0, 4 and 8 pass the stride and frame 9 is the last one.
	if len(report.Frames) != 4 || report.Frames[3].T != 0.9 {
		t.Fatalf("unexpected frames %+v", report.Frames)
	}
	if report.Outcome == nil || report.Outcome.Result != play.Single || report.Outcome.Runs != 1 {
		t.Fatalf("unexpected outcome %+v", report.Outcome)
	}
	if report.Header == nil || report.Header.PlayID != "integration" {
		t.Fatalf("unexpected header %+v", report.Header)
	}
	if _, err := Inspect(writer.Directory(), 0); err == nil {
		t.Fatalf("expected a zero stride to be rejected")
	}
}
