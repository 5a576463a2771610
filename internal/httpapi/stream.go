package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/play"
	"diamondsim/engine/internal/replay"
	"diamondsim/engine/internal/simulation"
)

const (
	// MaxStreamSpeed caps how much faster than real time a stream may play.
	MaxStreamSpeed = 100.0

	requestWait = 10 * time.Second
	writeWait   = 5 * time.Second
)

// StreamMessage is a text message of the play stream. Frames travel as
// binary MessagePack messages in between.
type StreamMessage struct {
	Type    string        `json:"type"`
	Outcome *play.Outcome `json:"outcome,omitempty"`
	Bundle  string        `json:"bundle,omitempty"`
	Frames  int           `json:"frames,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// StreamHandler upgrades to a WebSocket, reads one play request, resolves it
// and plays its frames back at the configured frame rate before sending the
// outcome.
func (h *HandlerSet) StreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.requestLogger(r, "stream")
		speed, err := parseSpeed(r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if !h.admit(w, r, reqLogger) {
			return
		}
		//1.- Reserve a stream slot before paying for the upgrade.
		active := h.streams.Add(1)
		defer h.streams.Add(-1)
		if h.maxClients > 0 && active > int64(h.maxClients) {
			reqLogger.Warn("stream denied: client limit reached", logging.Int("max_clients", h.maxClients))
			http.Error(w, "too many streams", http.StatusServiceUnavailable)
			return
		}
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			reqLogger.Warn("stream upgrade failed", logging.Error(err))
			return
		}
		defer conn.Close()
		h.streamTotal.Add(1)

		s := &stream{h: h, conn: conn, log: reqLogger, speed: speed}
		if err := s.serve(r.Context()); err != nil {
			reqLogger.Debug("stream ended", logging.Error(err))
		}
	}
}

type stream struct {
	h     *HandlerSet
	conn  *websocket.Conn
	log   *logging.Logger
	speed float64
}

func (s *stream) serve(parent context.Context) error {
	conn := s.conn
	conn.SetReadLimit(s.h.maxPayload)

	//1.- The client opens with exactly one play request.
	_ = conn.SetReadDeadline(time.Now().Add(requestWait))
	msgType, payload, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if msgType != websocket.TextMessage {
		return s.fail(websocket.CloseUnsupportedData, errors.New("play request must be a JSON text message"))
	}
	in, err := decodeInput(payload)
	if err != nil {
		s.h.rejected.Add(1)
		return s.fail(websocket.ClosePolicyViolation, err)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	//2.- Keep reading so pongs and close frames are processed; a dead peer cancels the play.
	wait := 2 * s.h.ping
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()
	go s.keepalive(ctx)

	outcome, frames, bundle, err := s.h.capture(ctx, in)
	if err != nil {
		return s.fail(websocket.CloseInternalServerErr, err)
	}

	//3.- Pace the captured frames against the wall clock.
	if len(frames) > 0 {
		next := 0
		emit := func(playTime float64) error {
			latest := -1
			for next < len(frames) && frames[next].T <= playTime+1e-9 {
				latest = next
				next++
			}
			if latest < 0 {
				return nil
			}
			return s.writeFrame(frames[latest])
		}
		playback := simulation.NewPlayback(s.h.frameRate, s.speed, emit)
		if err := playback.Run(ctx, frames[0].T, frames[len(frames)-1].T); err != nil {
			return fmt.Errorf("play frames: %w", err)
		}
	}

	if err := s.writeText(StreamMessage{Type: "outcome", Outcome: outcome, Bundle: bundle, Frames: len(frames)}); err != nil {
		return err
	}
	s.log.Info("play streamed",
		logging.String("play", outcome.ID),
		logging.String("result", string(outcome.Result)),
		logging.Int("frames", len(frames)),
	)
	return s.close(websocket.CloseNormalClosure, "play resolved")
}

func (s *stream) keepalive(ctx context.Context) {
	ticker := time.NewTicker(s.h.ping)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				s.log.Debug("stream ping failed", logging.Error(err))
				return
			}
		}
	}
}

func (s *stream) writeFrame(frame play.Frame) error {
	payload, err := msgpack.Marshal(&frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (s *stream) writeText(msg StreamMessage) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(msg)
}

func (s *stream) fail(code int, err error) error {
	s.log.Info("stream request rejected", logging.Error(err))
	if writeErr := s.writeText(StreamMessage{Type: "error", Error: err.Error()}); writeErr != nil {
		return errors.Join(err, writeErr)
	}
	return errors.Join(err, s.close(code, "play rejected"))
}

func (s *stream) close(code int, reason string) error {
	return s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

// capture resolves a play while keeping every frame, writing a replay bundle
// when a recorder is configured.
func (h *HandlerSet) capture(ctx context.Context, in play.Input) (*play.Outcome, []play.Frame, string, error) {
	var frames []play.Frame
	observe := func(frame play.Frame) { frames = append(frames, frame) }

	var session *replay.Session
	if h.recorder != nil {
		var err error
		if session, err = h.recorder.Begin(in); err != nil {
			return nil, nil, "", err
		}
		in = session.Input()
		observe = func(frame play.Frame) {
			frames = append(frames, frame)
			session.Observe(frame)
		}
	}

	started := time.Now()
	outcome, err := h.arbiter.Resolve(ctx, in, observe)
	if err != nil {
		if session != nil {
			err = errors.Join(err, session.Abort())
		}
		return nil, nil, "", err
	}
	h.monitor.Observe(time.Since(started), outcome.Steps)

	if session == nil {
		return outcome, frames, "", nil
	}
	bundle, err := session.Finish(outcome)
	if err != nil {
		h.logger.Warn("replay bundle incomplete", logging.String("play", outcome.ID), logging.Error(err))
	}
	return outcome, frames, bundle, nil
}

func parseSpeed(query url.Values) (float64, error) {
	raw := strings.TrimSpace(query.Get("speed"))
	if raw == "" {
		return 1, nil
	}
	speed, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(speed > 0) || speed > MaxStreamSpeed {
		return 0, fmt.Errorf("speed must be within (0, %g], got %q", MaxStreamSpeed, raw)
	}
	return speed, nil
}

// originChecker accepts every origin when the allow list is empty.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		set[strings.ToLower(strings.TrimRight(origin, "/"))] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(strings.TrimRight(origin, "/"))]
		return ok
	}
}
