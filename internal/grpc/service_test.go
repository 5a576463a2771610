package grpc

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"diamondsim/engine/internal/config"
	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/play"
	"diamondsim/engine/internal/simulation"
)

const testSecret = "hunter2"

type denyLimiter struct{}

func (denyLimiter) Allow(string) (bool, time.Duration) { return false, 2 * time.Second }

// closedTicks fires on every receive so paced streams run flat out.
func closedTicks(time.Duration) (<-chan time.Time, func()) {
	ch := make(chan time.Time)
	close(ch)
	return ch, func() {}
}

func gapLiner(t *testing.T) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{
		"seed":   11,
		"outs":   1,
		"park":   map[string]any{"name": "short-porch"},
		"launch": map[string]any{"exit_velocity_mph": 95, "launch_angle_deg": 12, "spray_angle_deg": 20, "backspin_rpm": 1500},
		"runners": []any{
			map[string]any{"base": 2, "id": "speedy", "lead": 12},
		},
	})
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	return req
}

func startServer(t *testing.T, opts ...Option) (PlaySimulatorClient, *Service) {
	t.Helper()
	arbiter, err := play.NewArbiter(play.DefaultOptions(), logging.NewTestLogger())
	if err != nil {
		t.Fatalf("arbiter: %v", err)
	}
	opts = append([]Option{WithLogger(logging.NewTestLogger()), WithTickerFactory(closedTicks)}, opts...)
	service, err := NewService(arbiter, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	serverOpts, err := ServerOptions(&config.Config{GRPCSecret: testSecret}, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("ServerOptions: %v", err)
	}

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer(serverOpts...)
	RegisterPlaySimulatorServer(server, service)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return listener.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return NewPlaySimulatorClient(conn), service
}

func authorised() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), SharedSecretMetadataKey, testSecret)
}

func TestSimulateReturnsOutcome(t *testing.T) {
	monitor := simulation.NewMonitor()
	client, _ := startServer(t, WithMonitor(monitor))

	resp, err := client.Simulate(authorised(), gapLiner(t))
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	outcome := resp.GetFields()["outcome"].GetStructValue()
	if outcome == nil {
		t.Fatalf("reply has no outcome: %v", resp)
	}
	if outcome.GetFields()["result"].GetStringValue() == "" || outcome.GetFields()["id"].GetStringValue() == "" {
		t.Fatalf("outcome missing result or id: %v", outcome)
	}
	if !outcome.GetFields()["batted"].GetStructValue().GetFields()["fair"].GetBoolValue() {
		t.Fatalf("expected a fair ball: %v", outcome)
	}
	if monitor.Snapshot().Plays != 1 {
		t.Fatalf("expected the shared monitor to see the play, got %+v", monitor.Snapshot())
	}
}

func TestSimulateMapsErrors(t *testing.T) {
	client, _ := startServer(t)

	//1.- Missing credentials are refused before the play is decoded.
	_, err := client.Simulate(context.Background(), gapLiner(t))
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}

	//2.- Schema violations are the caller's fault.
	bad, _ := structpb.NewStruct(map[string]any{"outs": 4})
	_, err = client.Simulate(authorised(), bad)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestSimulateRateLimited(t *testing.T) {
	client, _ := startServer(t, WithRateLimiter(denyLimiter{}))

	_, err := client.Simulate(authorised(), gapLiner(t))
	if status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected resource exhausted, got %v", err)
	}
}

func TestStreamFramesSendsFramesThenOutcome(t *testing.T) {
	client, _ := startServer(t)

	stream, err := client.StreamFrames(authorised(), gapLiner(t))
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	var frames []float64
	var outcome *structpb.Struct
	var sent float64
	for {
		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("recv: %v", err)
		}
		switch msg.GetFields()["type"].GetStringValue() {
		case "frame":
			frames = append(frames, msg.GetFields()["frame"].GetStructValue().GetFields()["t"].GetNumberValue())
		case "outcome":
			outcome = msg.GetFields()["outcome"].GetStructValue()
			sent = msg.GetFields()["frames"].GetNumberValue()
		default:
			t.Fatalf("unexpected message %v", msg)
		}
	}
	//1.- Every captured frame arrives once, in play-clock order, before the outcome.
	if outcome == nil || len(frames) == 0 {
		t.Fatalf("expected frames and an outcome, got %d frames and %v", len(frames), outcome)
	}
	if int(sent) != len(frames) {
		t.Fatalf("outcome counts %v frames, received %d", sent, len(frames))
	}
	for i := 1; i < len(frames); i++ {
		if frames[i] <= frames[i-1] {
			t.Fatalf("frame %d went backwards: %v", i, frames)
		}
	}
}

type stubServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubServerStream) Context() context.Context { return s.ctx }

func TestSharedSecretInterceptor(t *testing.T) {
	interceptor := newSharedSecretStreamInterceptor(testSecret)
	called := false
	handler := func(any, grpc.ServerStream) error {
		called = true
		return nil
	}

	md := metadata.New(map[string]string{"authorization": "Bearer " + testSecret})
	stream := &stubServerStream{ctx: metadata.NewIncomingContext(context.Background(), md)}
	if err := interceptor(nil, stream, &grpc.StreamServerInfo{}, handler); err != nil || !called {
		t.Fatalf("expected bearer token to be accepted, got %v", err)
	}

	md = metadata.New(map[string]string{SharedSecretMetadataKey: "wrong"})
	stream = &stubServerStream{ctx: metadata.NewIncomingContext(context.Background(), md)}
	if err := interceptor(nil, stream, &grpc.StreamServerInfo{}, handler); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated for a wrong secret, got %v", err)
	}
}

func TestServerOptionsFailsWithBadKeyPair(t *testing.T) {
	cfg := &config.Config{TLSCertPath: "missing-cert", TLSKeyPath: "missing-key"}
	if _, err := ServerOptions(cfg, logging.NewTestLogger()); err == nil {
		t.Fatal("expected error for missing key pair")
	}
	cfg.GRPCClientCA = "missing-ca"
	if _, err := loadMTLSCredentials(cfg.TLSCertPath, cfg.TLSKeyPath, cfg.GRPCClientCA); err == nil {
		t.Fatal("expected error for missing files")
	}
}

func TestNewServiceNeedsArbiter(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Fatal("expected an error without an arbiter")
	}
}
