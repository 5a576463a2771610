package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/physics"
	"diamondsim/engine/internal/play"
	"diamondsim/engine/internal/replay"
	"diamondsim/engine/internal/scenario"
	"diamondsim/engine/internal/simulation"
)

const defaultFrameRate = 30

// RateLimiter gates how frequently a peer may run simulations.
type RateLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// Option customises the behaviour of the gRPC service.
type Option func(*Service)

// tickerFactory constructs cancellable tick channels for paced streaming.
type tickerFactory func(time.Duration) (<-chan time.Time, func())

// WithRecorder writes a replay bundle for every resolved play.
func WithRecorder(recorder *replay.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

// WithMonitor shares a resolver monitor with other surfaces.
func WithMonitor(monitor *simulation.Monitor) Option {
	return func(s *Service) {
		if monitor != nil {
			s.monitor = monitor
		}
	}
}

// WithRateLimiter limits simulate calls per peer address.
func WithRateLimiter(limiter RateLimiter) Option {
	return func(s *Service) { s.limiter = limiter }
}

// WithFrameRate sets how many frames per second StreamFrames sends.
func WithFrameRate(hz float64) Option {
	return func(s *Service) {
		if hz > 0 {
			s.frameRate = hz
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.log = logger
		}
	}
}

// WithTickerFactory overrides the pacing ticker factory (used in tests).
func WithTickerFactory(factory tickerFactory) Option {
	return func(s *Service) {
		if factory != nil {
			s.newTicker = factory
		}
	}
}

// Service implements PlaySimulatorServer on top of the arbiter.
type Service struct {
	arbiter   *play.Arbiter
	recorder  *replay.Recorder
	monitor   *simulation.Monitor
	limiter   RateLimiter
	log       *logging.Logger
	frameRate float64
	newTicker tickerFactory
}

// NewService wires the gRPC service to the arbiter and optional settings.
func NewService(arbiter *play.Arbiter, opts ...Option) (*Service, error) {
	if arbiter == nil {
		return nil, fmt.Errorf("grpc service needs an arbiter")
	}
	service := &Service{
		arbiter:   arbiter,
		monitor:   simulation.NewMonitor(),
		log:       logging.L(),
		frameRate: defaultFrameRate,
		newTicker: defaultTickerFactory,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service, nil
}

func defaultTickerFactory(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// Simulate resolves one play and answers with its outcome document.
func (s *Service) Simulate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, err := s.admit(ctx, req)
	if err != nil {
		return nil, err
	}
	outcome, bundle, err := s.resolve(ctx, in, nil)
	if err != nil {
		return nil, err
	}
	return encode(map[string]any{"outcome": outcome, "bundle": bundle})
}

// StreamFrames resolves one play and sends its frames at the configured
// frame rate, then the outcome. Every message carries a "type" of "frame"
// or "outcome".
func (s *Service) StreamFrames(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	in, err := s.admit(ctx, req)
	if err != nil {
		return err
	}
	var frames []play.Frame
	outcome, bundle, err := s.resolve(ctx, in, func(frame play.Frame) { frames = append(frames, frame) })
	if err != nil {
		return err
	}

	tickCh, stop := s.newTicker(time.Duration(float64(time.Second) / s.frameRate))
	defer stop()
	//1.- Send the oldest pending frame on every tick to keep play-clock order.
	pending := frames
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return status.Error(codes.Canceled, "stream cancelled")
			}
			return status.Error(codes.DeadlineExceeded, "stream deadline exceeded")
		case <-tickCh:
			msg, err := encode(map[string]any{"type": "frame", "frame": pending[0]})
			if err != nil {
				return err
			}
			if err := stream.Send(msg); err != nil {
				return err
			}
			pending = pending[1:]
		}
	}
	msg, err := encode(map[string]any{"type": "outcome", "outcome": outcome, "bundle": bundle, "frames": len(frames)})
	if err != nil {
		return err
	}
	return stream.Send(msg)
}

// admit applies the rate limit and decodes the request into a play.
func (s *Service) admit(ctx context.Context, req *structpb.Struct) (play.Input, error) {
	if s.limiter != nil {
		key := "unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			key = p.Addr.String()
			if host, _, err := net.SplitHostPort(key); err == nil {
				key = host
			}
		}
		if ok, retry := s.limiter.Allow(key); !ok {
			return play.Input{}, status.Errorf(codes.ResourceExhausted, "rate limit exceeded, retry in %s", retry.Round(time.Millisecond))
		}
	}
	if req == nil {
		return play.Input{}, status.Error(codes.InvalidArgument, "request must be provided")
	}
	raw, err := protojson.Marshal(req)
	if err != nil {
		return play.Input{}, status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	sc, err := scenario.DecodeRequest(raw)
	if err != nil {
		return play.Input{}, status.Error(codes.InvalidArgument, err.Error())
	}
	in, err := sc.Input()
	if err != nil {
		return play.Input{}, status.Error(codes.InvalidArgument, err.Error())
	}
	return in, nil
}

func (s *Service) resolve(ctx context.Context, in play.Input, observe play.Observer) (*play.Outcome, string, error) {
	started := time.Now()
	var (
		outcome *play.Outcome
		bundle  string
		err     error
	)
	if s.recorder != nil {
		session, beginErr := s.recorder.Begin(in)
		if beginErr != nil {
			return nil, "", status.Errorf(codes.Internal, "open replay bundle: %v", beginErr)
		}
		outcome, err = s.arbiter.Resolve(ctx, session.Input(), func(frame play.Frame) {
			session.Observe(frame)
			if observe != nil {
				observe(frame)
			}
		})
		if err != nil {
			err = errors.Join(err, session.Abort())
		} else if bundle, err = session.Finish(outcome); err != nil {
			s.log.Warn("replay bundle incomplete", logging.String("play", outcome.ID), logging.Error(err))
			err = nil
		}
	} else {
		outcome, err = s.arbiter.Resolve(ctx, in, observe)
	}
	if err != nil {
		return nil, "", statusFor(err)
	}
	elapsed := time.Since(started)
	s.monitor.Observe(elapsed, outcome.Steps)
	s.log.Debug("grpc play resolved",
		logging.String("play", outcome.ID),
		logging.String("result", string(outcome.Result)),
		logging.Duration("elapsed", elapsed),
	)
	return outcome, bundle, nil
}

// statusFor maps resolution errors onto gRPC status codes.
func statusFor(err error) error {
	var config *physics.ConfigurationError
	switch {
	case errors.As(err, &config):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// encode converts a JSON-shaped value into a protobuf Struct.
func encode(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

var _ PlaySimulatorServer = (*Service)(nil)
