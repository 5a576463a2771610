package replay

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/play"
)

// Event types written to the event log.
const (
	EventInput   = "input"
	EventThrow   = "throw"
	EventOut     = "out"
	EventWarning = "warning"
	EventOutcome = "outcome"
)

// Recorder persists resolved plays as replay bundles under one directory.
type Recorder struct {
	mu         sync.Mutex
	dir        string
	now        func() time.Time
	log        *logging.Logger
	bundles    int64
	frames     int64
	lastBundle string
	lastTime   time.Time
}

// Stats summarises recorder activity for monitoring endpoints.
type Stats struct {
	Bundles        int64     `json:"bundles"`
	Frames         int64     `json:"frames"`
	LastBundle     string    `json:"last_bundle,omitempty"`
	LastBundleTime time.Time `json:"last_bundle_time,omitempty"`
}

// NewRecorder constructs a recorder that writes bundles into dir.
func NewRecorder(dir string, clock func() time.Time, logger *logging.Logger) (*Recorder, error) {
	if dir == "" {
		return nil, fmt.Errorf("replay directory must be provided")
	}
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = logging.L()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{dir: dir, now: clock, log: logger}, nil
}

// Session captures the frames of one play until it is finished or aborted.
type Session struct {
	rec    *Recorder
	writer *Writer
	in     play.Input
	frames int
	err    error
}

// Begin opens a bundle for the play and logs its input. A play without an
// identifier is given one so the bundle and the outcome agree.
func (r *Recorder) Begin(in play.Input) (*Session, error) {
	if r == nil {
		return nil, fmt.Errorf("recorder not configured")
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	writer, _, err := NewWriter(r.dir, in.ID, r.now)
	if err != nil {
		return nil, fmt.Errorf("open replay bundle: %w", err)
	}
	writer.SetHeaderMetadata(Header{PlayID: in.ID, Seed: in.Seed, Park: in.Park.Name, Launch: SummariseLaunch(in.Launch)})
	s := &Session{rec: r, writer: writer, in: in}
	if err := writer.AppendEvent(in.Launch.Time, EventInput, in); err != nil {
		_ = s.Abort()
		return nil, err
	}
	return s, nil
}

// Input is the play as it will be resolved, identifier included.
func (s *Session) Input() play.Input { return s.in }

// Directory is the bundle being written.
func (s *Session) Directory() string { return s.writer.Directory() }

// Observe appends one frame. It matches play.Observer; the first write
// failure is kept and reported by Finish.
func (s *Session) Observe(frame play.Frame) {
	if s.err != nil {
		return
	}
	if err := s.writer.AppendFrame(frame); err != nil {
		s.err = err
		return
	}
	s.frames++
}

// Finish logs the play's throws, outs and outcome, then closes the bundle.
func (s *Session) Finish(outcome *play.Outcome) (string, error) {
	if outcome == nil {
		return "", errors.Join(fmt.Errorf("outcome must be provided"), s.Abort())
	}
	//1.- Write the events in the order they happened on the play clock.
	events := s.err
	for _, throw := range outcome.Throws {
		if events == nil {
			events = s.writer.AppendEvent(throw.ReleaseTime, EventThrow, throw)
		}
	}
	for _, out := range outcome.Outs {
		if events == nil {
			events = s.writer.AppendEvent(out.Time, EventOut, out)
		}
	}
	end := s.in.Launch.Time + outcome.Duration
	for _, warning := range outcome.Warnings {
		if events == nil {
			events = s.writer.AppendEvent(end, EventWarning, map[string]string{"message": warning})
		}
	}
	if events == nil {
		events = s.writer.AppendEvent(end, EventOutcome, outcome)
	}

	//2.- Stamp the header with the result before the writer persists it.
	s.writer.SetHeaderMetadata(Header{
		PlayID: s.in.ID,
		Seed:   s.in.Seed,
		Park:   s.in.Park.Name,
		Result: string(outcome.Result),
		Runs:   outcome.Runs,
		Launch: SummariseLaunch(s.in.Launch),
	})
	closeErr := s.writer.Close()
	if err := errors.Join(events, closeErr); err != nil {
		s.rec.log.Warn("replay bundle incomplete", logging.String("play", s.in.ID), logging.Error(err))
		return s.writer.Directory(), err
	}

	//3.- Publish the counters once the bundle is durable.
	r := s.rec
	r.mu.Lock()
	r.bundles++
	r.frames += int64(s.frames)
	r.lastBundle = s.writer.Directory()
	r.lastTime = r.now().UTC()
	r.mu.Unlock()
	r.log.Debug("replay bundle written", logging.String("play", s.in.ID), logging.String("dir", s.writer.Directory()), logging.Int("frames", s.frames))
	return s.writer.Directory(), nil
}

// Abort closes the bundle and removes it from disk.
func (s *Session) Abort() error {
	return errors.Join(s.writer.Close(), os.RemoveAll(s.writer.Directory()))
}

// Record resolves the play through the arbiter while capturing its frames,
// returning the outcome and the bundle directory. Plays rejected by the
// arbiter leave no bundle behind.
func (r *Recorder) Record(ctx context.Context, arbiter *play.Arbiter, in play.Input) (*play.Outcome, string, error) {
	if err := in.Validate(); err != nil {
		return nil, "", err
	}
	session, err := r.Begin(in)
	if err != nil {
		return nil, "", err
	}
	outcome, err := arbiter.Resolve(ctx, session.Input(), session.Observe)
	if err != nil {
		return nil, "", errors.Join(err, session.Abort())
	}
	dir, err := session.Finish(outcome)
	return outcome, dir, err
}

// Snapshot returns statistics describing the recorder state.
func (r *Recorder) Snapshot() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Bundles: r.bundles, Frames: r.frames, LastBundle: r.lastBundle, LastBundleTime: r.lastTime}
}
