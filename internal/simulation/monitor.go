package simulation

import (
	"sync"
	"time"
)

// MonitorSnapshot summarises the wall time spent resolving plays.
type MonitorSnapshot struct {
	Plays   int           `json:"plays"`
	Steps   int           `json:"steps"`
	Average time.Duration `json:"average"`
	Max     time.Duration `json:"max"`
	Last    time.Duration `json:"last"`
}

// PlaysPerSecond derives the sustained throughput from the average resolve time.
func (s MonitorSnapshot) PlaysPerSecond() float64 {
	if s.Average <= 0 {
		return 0
	}
	return float64(time.Second) / float64(s.Average)
}

// Monitor accumulates timing statistics for resolved plays. It is shared by
// concurrent callers.
type Monitor struct {
	mu    sync.Mutex
	plays int
	steps int
	total time.Duration
	max   time.Duration
	last  time.Duration
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

// Observe records one resolved play and the number of scheduler steps it took.
func (m *Monitor) Observe(duration time.Duration, steps int) {
	if m == nil || duration <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	//1.- Accumulate the counts used for the average.
	m.plays++
	m.steps += steps
	m.total += duration
	//2.- Keep the slowest play so outliers stand out.
	if duration > m.max {
		m.max = duration
	}
	m.last = duration
}

// Snapshot returns a copy of the aggregated statistics.
func (m *Monitor) Snapshot() MonitorSnapshot {
	if m == nil {
		return MonitorSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MonitorSnapshot{Plays: m.plays, Steps: m.steps, Max: m.max, Last: m.last}
	if m.plays > 0 {
		snap.Average = m.total / time.Duration(m.plays)
	}
	return snap
}

// Reset clears the accumulated statistics.
func (m *Monitor) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.plays, m.steps = 0, 0
	m.total, m.max, m.last = 0, 0, 0
	m.mu.Unlock()
}
