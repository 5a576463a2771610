// Package httpapi exposes the play engine over HTTP and WebSocket.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"diamondsim/engine/internal/batch"
	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/physics"
	"diamondsim/engine/internal/play"
	"diamondsim/engine/internal/replay"
	"diamondsim/engine/internal/scenario"
	"diamondsim/engine/internal/simulation"
)

// DefaultMaxBatch caps how many plays one batch request may carry.
const DefaultMaxBatch = 512

// RateLimiter gates how frequently a client may run simulations.
type RateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// Authenticator identifies the caller of a play request.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// Options configures the HandlerSet.
type Options struct {
	Logger          *logging.Logger
	Arbiter         *play.Arbiter
	Recorder        *replay.Recorder
	Cleaner         *replay.Cleaner
	Monitor         *simulation.Monitor
	RateLimiter     RateLimiter
	Authenticator   Authenticator
	Workers         int
	MaxPayloadBytes int64
	MaxBatch        int
	AllowedOrigins  []string
	MaxClients      int
	PingInterval    time.Duration
	FrameRate       float64
	TimeSource      func() time.Time
}

// HandlerSet bundles the play engine handlers.
type HandlerSet struct {
	logger      *logging.Logger
	arbiter     *play.Arbiter
	runner      *batch.Runner
	recorder    *replay.Recorder
	cleaner     *replay.Cleaner
	monitor     *simulation.Monitor
	rateLimiter RateLimiter
	auth        Authenticator
	maxPayload  int64
	maxBatch    int
	maxClients  int
	ping        time.Duration
	frameRate   float64
	now         func() time.Time
	started     time.Time
	upgrader    websocket.Upgrader

	streams     atomic.Int64
	streamTotal atomic.Int64
	limited     atomic.Int64
	denied      atomic.Int64
	rejected    atomic.Int64
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) (*HandlerSet, error) {
	if opts.Arbiter == nil {
		return nil, fmt.Errorf("handler set needs an arbiter")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	monitor := opts.Monitor
	if monitor == nil {
		monitor = simulation.NewMonitor()
	}
	runner, err := batch.NewRunner(opts.Arbiter, batch.Options{
		Workers:  opts.Workers,
		Recorder: opts.Recorder,
		Monitor:  monitor,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	h := &HandlerSet{
		logger:      logger,
		arbiter:     opts.Arbiter,
		runner:      runner,
		recorder:    opts.Recorder,
		cleaner:     opts.Cleaner,
		monitor:     monitor,
		rateLimiter: opts.RateLimiter,
		auth:        opts.Authenticator,
		maxPayload:  opts.MaxPayloadBytes,
		maxBatch:    opts.MaxBatch,
		maxClients:  opts.MaxClients,
		ping:        opts.PingInterval,
		frameRate:   opts.FrameRate,
		now:         now,
		started:     now(),
	}
	if h.maxPayload <= 0 {
		h.maxPayload = 1 << 20
	}
	if h.maxBatch <= 0 {
		h.maxBatch = DefaultMaxBatch
	}
	if h.ping <= 0 {
		h.ping = 30 * time.Second
	}
	if h.frameRate <= 0 {
		h.frameRate = 30
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     originChecker(opts.AllowedOrigins),
	}
	return h, nil
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/healthz", h.HealthHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/v1/parks", h.ParksHandler())
	mux.HandleFunc("/v1/plays", h.SimulateHandler())
	mux.HandleFunc("/v1/batches", h.BatchHandler())
	mux.HandleFunc("/v1/plays/stream", h.StreamHandler())
}

// Handler returns the registered routes wrapped in the trace middleware.
func (h *HandlerSet) Handler() http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	return logging.HTTPTraceMiddleware(h.logger)(mux)
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// Health is the body served by /healthz.
type Health struct {
	Status        string                     `json:"status"`
	UptimeSeconds float64                    `json:"uptime_seconds"`
	Workers       int                        `json:"workers"`
	Streams       int64                      `json:"streams"`
	Resolver      simulation.MonitorSnapshot `json:"resolver"`
	Replay        *replay.Stats              `json:"replay,omitempty"`
	Storage       *replay.StorageStats       `json:"storage,omitempty"`
}

// HealthHandler reports resolver throughput and replay storage.
func (h *HandlerSet) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.health())
	}
}

func (h *HandlerSet) health() Health {
	resp := Health{
		Status:        "ok",
		UptimeSeconds: h.now().Sub(h.started).Seconds(),
		Workers:       h.runner.Workers(),
		Streams:       h.streams.Load(),
		Resolver:      h.monitor.Snapshot(),
	}
	if h.recorder != nil {
		stats := h.recorder.Snapshot()
		resp.Replay = &stats
	}
	if h.cleaner != nil {
		stats := h.cleaner.Stats()
		resp.Storage = &stats
	}
	return resp
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.health()
		snap := health.Resolver

		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(w, "# HELP diamondsim_uptime_seconds Service uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE diamondsim_uptime_seconds gauge\n")
		fmt.Fprintf(w, "diamondsim_uptime_seconds %.0f\n", health.UptimeSeconds)

		fmt.Fprintf(w, "# HELP diamondsim_plays_total Plays resolved.\n")
		fmt.Fprintf(w, "# TYPE diamondsim_plays_total counter\n")
		fmt.Fprintf(w, "diamondsim_plays_total %d\n", snap.Plays)

		fmt.Fprintf(w, "# HELP diamondsim_steps_total Scheduler steps taken across resolved plays.\n")
		fmt.Fprintf(w, "# TYPE diamondsim_steps_total counter\n")
		fmt.Fprintf(w, "diamondsim_steps_total %d\n", snap.Steps)

		fmt.Fprintf(w, "# HELP diamondsim_play_seconds Wall time spent resolving plays.\n")
		fmt.Fprintf(w, "# TYPE diamondsim_play_seconds gauge\n")
		fmt.Fprintf(w, "diamondsim_play_seconds{stat=\"average\"} %.6f\n", snap.Average.Seconds())
		fmt.Fprintf(w, "diamondsim_play_seconds{stat=\"max\"} %.6f\n", snap.Max.Seconds())
		fmt.Fprintf(w, "diamondsim_play_seconds{stat=\"last\"} %.6f\n", snap.Last.Seconds())

		fmt.Fprintf(w, "# HELP diamondsim_streams Current WebSocket play streams.\n")
		fmt.Fprintf(w, "# TYPE diamondsim_streams gauge\n")
		fmt.Fprintf(w, "diamondsim_streams %d\n", health.Streams)
		fmt.Fprintf(w, "# HELP diamondsim_streams_total WebSocket play streams accepted.\n")
		fmt.Fprintf(w, "# TYPE diamondsim_streams_total counter\n")
		fmt.Fprintf(w, "diamondsim_streams_total %d\n", h.streamTotal.Load())

		fmt.Fprintf(w, "# HELP diamondsim_requests_rejected_total Requests refused, by reason.\n")
		fmt.Fprintf(w, "# TYPE diamondsim_requests_rejected_total counter\n")
		fmt.Fprintf(w, "diamondsim_requests_rejected_total{reason=\"unauthorized\"} %d\n", h.denied.Load())
		fmt.Fprintf(w, "diamondsim_requests_rejected_total{reason=\"rate_limited\"} %d\n", h.limited.Load())
		fmt.Fprintf(w, "diamondsim_requests_rejected_total{reason=\"invalid\"} %d\n", h.rejected.Load())

		if health.Replay != nil {
			fmt.Fprintf(w, "# HELP diamondsim_replay_bundles_total Replay bundles written.\n")
			fmt.Fprintf(w, "# TYPE diamondsim_replay_bundles_total counter\n")
			fmt.Fprintf(w, "diamondsim_replay_bundles_total %d\n", health.Replay.Bundles)
			fmt.Fprintf(w, "# HELP diamondsim_replay_frames_total Frames captured into replay bundles.\n")
			fmt.Fprintf(w, "# TYPE diamondsim_replay_frames_total counter\n")
			fmt.Fprintf(w, "diamondsim_replay_frames_total %d\n", health.Replay.Frames)
		}
		if health.Storage != nil {
			fmt.Fprintf(w, "# HELP diamondsim_replay_storage_bytes Disk used by retained replay bundles.\n")
			fmt.Fprintf(w, "# TYPE diamondsim_replay_storage_bytes gauge\n")
			fmt.Fprintf(w, "diamondsim_replay_storage_bytes %d\n", health.Storage.Bytes)
			fmt.Fprintf(w, "# HELP diamondsim_replay_storage_bundles Retained replay bundles.\n")
			fmt.Fprintf(w, "# TYPE diamondsim_replay_storage_bundles gauge\n")
			fmt.Fprintf(w, "diamondsim_replay_storage_bundles{state=\"complete\"} %d\n", health.Storage.Bundles)
			fmt.Fprintf(w, "diamondsim_replay_storage_bundles{state=\"incomplete\"} %d\n", health.Storage.Incomplete)
		}
	}
}

// ParksHandler lists the parks a play request may name.
func (h *HandlerSet) ParksHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string][]string{"parks": scenario.ParkNames()})
	}
}

// SimulateHandler resolves one play request and answers with its outcome.
func (h *HandlerSet) SimulateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.requestLogger(r, "simulate")
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !h.admit(w, r, reqLogger) {
			return
		}
		body, ok := h.readBody(w, r, reqLogger)
		if !ok {
			return
		}
		in, err := decodeInput(body)
		if err != nil {
			h.reject(w, reqLogger, err)
			return
		}

		results, err := h.runner.Run(r.Context(), []play.Input{in})
		if err != nil {
			reqLogger.Warn("simulate interrupted", logging.Error(err))
			http.Error(w, "simulation interrupted", http.StatusServiceUnavailable)
			return
		}
		res := results[0]
		if res.Outcome == nil {
			status := statusFor(res.Err)
			if status == http.StatusBadRequest {
				h.reject(w, reqLogger, res.Err)
				return
			}
			reqLogger.Error("simulate failed", logging.Error(res.Err))
			writeError(w, status, res.Err)
			return
		}
		if res.Err != nil {
			reqLogger.Warn("replay bundle incomplete", logging.String("play", res.ID), logging.Error(res.Err))
		}
		if res.Bundle != "" {
			w.Header().Set("X-Replay-Bundle", res.Bundle)
		}
		w.Header().Set("X-Play-ID", res.ID)
		status := http.StatusOK
		if res.Outcome.Result == play.Indeterminate {
			status = http.StatusUnprocessableEntity
		}
		reqLogger.Info("play resolved",
			logging.String("play", res.ID),
			logging.String("result", string(res.Outcome.Result)),
			logging.Int("runs", res.Outcome.Runs),
			logging.Duration("elapsed", res.Elapsed),
		)
		writeJSON(w, status, res.Outcome)
	}
}

// BatchRequest is the body of a batch call.
type BatchRequest struct {
	Plays []json.RawMessage `json:"plays"`
}

// BatchResponse carries every result in request order plus their tally.
type BatchResponse struct {
	Results []batch.Result `json:"results"`
	Summary batch.Summary  `json:"summary"`
}

// BatchHandler resolves many play requests over the worker pool. Requests
// that fail validation are reported in their slot and do not fail the batch.
func (h *HandlerSet) BatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := h.requestLogger(r, "batch")
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if !h.admit(w, r, reqLogger) {
			return
		}
		body, ok := h.readBody(w, r, reqLogger)
		if !ok {
			return
		}
		var req BatchRequest
		if err := json.Unmarshal(body, &req); err != nil {
			h.reject(w, reqLogger, fmt.Errorf("decode batch: %w", err))
			return
		}
		if len(req.Plays) == 0 || len(req.Plays) > h.maxBatch {
			h.reject(w, reqLogger, fmt.Errorf("batch must carry 1 to %d plays, got %d", h.maxBatch, len(req.Plays)))
			return
		}

		//1.- Decode every slot first; only valid plays reach the pool.
		results := make([]batch.Result, len(req.Plays))
		inputs := make([]play.Input, 0, len(req.Plays))
		slots := make([]int, 0, len(req.Plays))
		for i, raw := range req.Plays {
			in, err := decodeInput(raw)
			if err != nil {
				results[i] = batch.Result{Index: i, Err: err, Error: err.Error()}
				continue
			}
			inputs = append(inputs, in)
			slots = append(slots, i)
		}

		//2.- Put resolved plays back in their request slot.
		resolved, err := h.runner.Run(r.Context(), inputs)
		if err != nil {
			reqLogger.Warn("batch interrupted", logging.Error(err))
			http.Error(w, "batch interrupted", http.StatusServiceUnavailable)
			return
		}
		for j, res := range resolved {
			res.Index = slots[j]
			results[slots[j]] = res
		}
		summary := batch.Summarise(results)
		reqLogger.Info("batch resolved",
			logging.Int("plays", summary.Plays),
			logging.Int("failed", summary.Failed),
			logging.Int("runs", summary.Runs),
		)
		writeJSON(w, http.StatusOK, BatchResponse{Results: results, Summary: summary})
	}
}

// admit authenticates the caller and applies the rate limit, answering 401
// or 429 itself when the request may not proceed. Authenticated callers are
// limited by subject, everyone else by address.
func (h *HandlerSet) admit(w http.ResponseWriter, r *http.Request, reqLogger *logging.Logger) bool {
	key := clientKey(r)
	if h.auth != nil {
		subject, err := h.auth.Authenticate(r)
		if err != nil {
			h.denied.Add(1)
			reqLogger.Warn("play request unauthorized", logging.Error(err))
			w.Header().Set("WWW-Authenticate", `Bearer realm="diamondsim"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return false
		}
		key = "subject:" + subject
	}
	if h.rateLimiter == nil {
		return true
	}
	ok, retry := h.rateLimiter.Allow(key)
	if ok {
		return true
	}
	h.limited.Add(1)
	reqLogger.Warn("simulate denied: rate limit exceeded", logging.Duration("retry_after", retry))
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
	http.Error(w, "too many requests", http.StatusTooManyRequests)
	return false
}

func (h *HandlerSet) readBody(w http.ResponseWriter, r *http.Request, reqLogger *logging.Logger) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxPayload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reqLogger.Warn("request body too large", logging.Int64("limit", tooLarge.Limit))
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return nil, false
		}
		reqLogger.Warn("request body unreadable", logging.Error(err))
		http.Error(w, "request body unreadable", http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

func (h *HandlerSet) reject(w http.ResponseWriter, reqLogger *logging.Logger, err error) {
	h.rejected.Add(1)
	reqLogger.Info("play request rejected", logging.Error(err))
	writeError(w, http.StatusBadRequest, err)
}

func (h *HandlerSet) requestLogger(r *http.Request, handler string) *logging.Logger {
	base := h.logger
	if logging.TraceIDFromContext(r.Context()) != "" {
		base = logging.LoggerFromContext(r.Context())
	}
	return base.With(
		logging.String("handler", handler),
		logging.String("remote_addr", r.RemoteAddr),
	)
}

// decodeInput turns a JSON play request into a validated play input.
func decodeInput(raw []byte) (play.Input, error) {
	s, err := scenario.DecodeRequest(raw)
	if err != nil {
		return play.Input{}, err
	}
	in, err := s.Input()
	if err != nil {
		return play.Input{}, &scenario.RequestError{Err: err}
	}
	return in, nil
}

// statusFor maps a resolution error onto an HTTP status.
func statusFor(err error) int {
	var request *scenario.RequestError
	var config *physics.ConfigurationError
	switch {
	case errors.As(err, &request), errors.As(err, &config):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
