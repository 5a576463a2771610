package simulation

import (
	"errors"
	"math"
	"testing"
	"time"
)

type recorder struct {
	name string
	log  *[]string
	seen float64
}

func (r *recorder) Advance(dt float64) {
	r.seen += dt
	*r.log = append(*r.log, r.name)
}

func TestSchedulerAdvancesStagesInOrder(t *testing.T) {
	var log []string
	s := NewScheduler(0.01, 0)
	ball := &recorder{name: "ball", log: &log}
	fielder := &recorder{name: "fielder", log: &log}
	runner := &recorder{name: "runner", log: &log}
	s.Stage(ball)
	actors := s.Stage(fielder)
	s.Add(actors, runner)
	//1.- The evaluation hook sees every entity already advanced for the step.
	err := s.Run(1, func(now float64) (bool, error) {
		if len(log)%3 != 0 {
			t.Fatalf("evaluation saw a partial step: %v", log)
		}
		return now >= 0.05-1e-12, nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.Steps() != 5 {
		t.Fatalf("expected five steps, got %d", s.Steps())
	}
	for i := 0; i < len(log); i += 3 {
		if log[i] != "ball" || log[i+1] != "fielder" || log[i+2] != "runner" {
			t.Fatalf("unexpected order %v", log[i:i+3])
		}
	}
	if math.Abs(runner.seen-0.05) > 1e-12 {
		t.Fatalf("runner advanced %.6f s", runner.seen)
	}
}

func TestSchedulerHorizon(t *testing.T) {
	s := NewScheduler(0.1, 2)
	if err := s.Run(3, func(float64) (bool, error) { return false, nil }); !errors.Is(err, ErrHorizon) {
		t.Fatalf("expected horizon error, got %v", err)
	}
	if math.Abs(s.Clock()-3) > 1e-9 {
		t.Fatalf("clock stopped at %.6f", s.Clock())
	}
}

func TestSchedulerPropagatesEvaluationError(t *testing.T) {
	boom := errors.New("boom")
	s := NewScheduler(0.1, 0)
	s.Stage(AdvancerFunc(func(float64) {}))
	if err := s.Run(1, func(float64) (bool, error) { return false, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected evaluation error, got %v", err)
	}
}

func TestMonitorSnapshot(t *testing.T) {
	m := NewMonitor()
	m.Observe(2*time.Millisecond, 100)
	m.Observe(4*time.Millisecond, 300)
	m.Observe(0, 10)
	snap := m.Snapshot()
	if snap.Plays != 2 || snap.Steps != 400 {
		t.Fatalf("unexpected counts %+v", snap)
	}
	if snap.Average != 3*time.Millisecond || snap.Max != 4*time.Millisecond || snap.Last != 4*time.Millisecond {
		t.Fatalf("unexpected durations %+v", snap)
	}
	m.Reset()
	if m.Snapshot().Plays != 0 {
		t.Fatalf("expected reset to clear the monitor")
	}
}
