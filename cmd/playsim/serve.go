package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"diamondsim/engine/internal/auth"
	grpcapi "diamondsim/engine/internal/grpc"
	"diamondsim/engine/internal/httpapi"
	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/replay"
	"diamondsim/engine/internal/simulation"
)

const shutdownGrace = 10 * time.Second

func runServe(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Optional config file (yaml, json or toml)")
	noRecord := fs.Bool("no-record", false, "Do not write replay bundles")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 0 {
		return usageError("serve takes no arguments")
	}

	a, err := setup(*configPath, nil)
	if err != nil {
		return err
	}
	defer a.log.Close()
	cfg := a.cfg

	//1.- Shared state: one monitor, one limiter and one replay directory for both surfaces.
	monitor := simulation.NewMonitor()
	limiter := httpapi.NewSlidingWindowLimiter(cfg.RateWindow, cfg.RateBurst, nil)
	var (
		recorder *replay.Recorder
		cleaner  *replay.Cleaner
	)
	if !*noRecord && cfg.ReplayDir != "" {
		if recorder, err = replay.NewRecorder(cfg.ReplayDir, nil, a.log); err != nil {
			return err
		}
		cleaner = replay.NewCleaner(cfg.ReplayDir, replay.RetentionPolicy{
			MaxBundles:      cfg.ReplayMaxBundles,
			MaxAge:          cfg.ReplayMaxAge,
			IncompleteGrace: time.Hour,
		}, a.log)
	}

	httpOpts := httpapi.Options{
		Logger:          a.log,
		Arbiter:         a.arbiter,
		Recorder:        recorder,
		Cleaner:         cleaner,
		Monitor:         monitor,
		RateLimiter:     limiter,
		Workers:         cfg.BatchWorkers,
		MaxPayloadBytes: cfg.MaxPayloadBytes,
		AllowedOrigins:  cfg.AllowedOrigins,
		MaxClients:      cfg.MaxClients,
		PingInterval:    cfg.PingInterval,
		FrameRate:       cfg.Simulation.FrameRate,
	}
	if cfg.TokenSecret != "" {
		tokens, err := auth.NewTokenService(cfg.TokenSecret, cfg.TokenLeeway)
		if err != nil {
			return err
		}
		httpOpts.Authenticator = tokens
	}
	handlers, err := httpapi.NewHandlerSet(httpOpts)
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	service, err := grpcapi.NewService(a.arbiter,
		grpcapi.WithLogger(a.log),
		grpcapi.WithRecorder(recorder),
		grpcapi.WithMonitor(monitor),
		grpcapi.WithRateLimiter(limiter),
		grpcapi.WithFrameRate(cfg.Simulation.FrameRate),
	)
	if err != nil {
		return err
	}
	serverOpts, err := grpcapi.ServerOptions(cfg, a.log)
	if err != nil {
		return err
	}
	grpcServer := grpc.NewServer(serverOpts...)
	grpcapi.RegisterPlaySimulatorServer(grpcServer, service)
	grpcListener, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	//2.- Serve both surfaces until a signal arrives or one of them fails.
	tlsEnabled := cfg.TLSCertPath != ""
	g.Go(func() error {
		a.log.Info("http listening", logging.String("url", listenerURL("http", cfg.HTTPAddr, tlsEnabled)))
		var err error
		if tlsEnabled {
			err = httpServer.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	})
	g.Go(func() error {
		a.log.Info("grpc listening", logging.String("url", listenerURL("grpc", cfg.GRPCAddr, tlsEnabled)))
		if err := grpcServer.Serve(grpcListener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	if cleaner != nil {
		g.Go(func() error {
			cleaner.Run(gctx, cfg.ReplaySweep)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		err := httpServer.Shutdown(shutdownCtx)
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-shutdownCtx.Done():
			grpcServer.Stop()
		}
		return err
	})
	return g.Wait()
}
