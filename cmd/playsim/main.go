// Command playsim resolves baseball plays from scenario files and serves the
// play engine over HTTP, WebSocket and gRPC.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"diamondsim/engine/internal/config"
	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/play"
	"diamondsim/engine/internal/scenario"
)

const usageText = `usage: playsim <command> [flags]

commands:
  simulate   resolve one scenario file and print its outcome
  batch      resolve many scenario files over a worker pool
  serve      run the HTTP, WebSocket and gRPC surfaces
  parks      list the parks a scenario may name
  pitch      fly a template pitch to the plate and report its break
  arrivals   time a runner sent around the bases from a station
  token      issue an API token signed with the configured token secret

Run "playsim <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return 2
	}
	var err error
	switch args[0] {
	case "simulate":
		err = runSimulate(args[1:], stdout, stderr)
	case "batch":
		err = runBatch(args[1:], stdout, stderr)
	case "serve":
		err = runServe(args[1:], stderr)
	case "token":
		err = runToken(args[1:], stdout, stderr)
	case "pitch":
		err = runPitch(args[1:], stdout, stderr)
	case "arrivals":
		err = runArrivals(args[1:], stdout, stderr)
	case "parks":
		fmt.Fprintln(stdout, strings.Join(scenario.ParkNames(), "\n"))
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usageText)
		return 2
	}
	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, new(usageError)):
		fmt.Fprintln(stderr, err)
		return 2
	case err != nil:
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

// usageError marks a command line the command cannot act on.
type usageError string

func (e usageError) Error() string { return string(e) }

// app is the state every command shares: the validated configuration, the
// logger and an arbiter built from the simulation settings.
type app struct {
	cfg     *config.Config
	log     *logging.Logger
	arbiter *play.Arbiter
}

// setup loads the configuration and builds the arbiter. Logs go to logOut
// when it is set so command output stays machine readable; otherwise the
// configured stdout and rotating file sinks are used.
func setup(configPath string, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	var logger *logging.Logger
	if logOut != nil {
		logger, err = logging.NewWriter(logOut, cfg.Logging.Level)
		if err == nil {
			logging.ReplaceGlobals(logger)
		}
	} else {
		logger, err = logging.New(cfg.Logging)
	}
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	arbiter, err := play.NewArbiter(arbiterOptions(cfg.Simulation), logger)
	if err != nil {
		return nil, fmt.Errorf("configure arbiter: %w", err)
	}
	return &app{cfg: cfg, log: logger, arbiter: arbiter}, nil
}
