package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"diamondsim/engine/internal/batch"
	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/play"
	"diamondsim/engine/internal/replay"
	"diamondsim/engine/internal/scenario"
)

func runSimulate(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Optional config file (yaml, json or toml)")
	record := fs.Bool("record", false, "Write a replay bundle into the configured replay directory")
	seed := fs.Uint64("seed", 0, "Override the scenario seed; zero keeps it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("simulate needs exactly one scenario file")
	}

	a, err := setup(*configPath, stderr)
	if err != nil {
		return err
	}
	in, err := loadInput(fs.Arg(0))
	if err != nil {
		return err
	}
	if *seed != 0 {
		in.Seed = *seed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	var (
		outcome *play.Outcome
		bundle  string
	)
	if *record {
		recorder, err := replay.NewRecorder(a.cfg.ReplayDir, nil, a.log)
		if err != nil {
			return err
		}
		outcome, bundle, err = recorder.Record(ctx, a.arbiter, in)
		if err != nil && outcome == nil {
			return err
		}
		if err != nil {
			a.log.Warn("replay bundle incomplete", logging.Error(err))
		}
	} else if outcome, err = a.arbiter.Resolve(ctx, in, nil); err != nil {
		return err
	}
	if bundle != "" {
		a.log.Info("replay bundle written", logging.String("dir", bundle))
	}
	return writeJSON(stdout, outcome)
}

// BatchReport is what the batch command prints.
type BatchReport struct {
	Plays   []BatchPlay   `json:"plays"`
	Summary batch.Summary `json:"summary"`
}

// BatchPlay names the scenario behind one batch result.
type BatchPlay struct {
	Scenario string        `json:"scenario"`
	Seed     uint64        `json:"seed"`
	Result   play.Result   `json:"result,omitempty"`
	Runs     int           `json:"runs"`
	Bundle   string        `json:"bundle,omitempty"`
	Error    string        `json:"error,omitempty"`
	Outcome  *play.Outcome `json:"outcome,omitempty"`
}

func runBatch(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Optional config file (yaml, json or toml)")
	workers := fs.Int("workers", -1, "Concurrent plays; -1 uses the configured batch_workers")
	repeat := fs.Int("repeat", 1, "Resolve every scenario this many times with consecutive seeds")
	record := fs.Bool("record", false, "Write a replay bundle per play into the configured replay directory")
	verbose := fs.Bool("outcomes", false, "Include full outcomes in the report")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return usageError("batch needs at least one scenario file or directory")
	}
	if *repeat < 1 {
		return usageError("repeat must be at least 1")
	}

	a, err := setup(*configPath, stderr)
	if err != nil {
		return err
	}
	paths, err := scenarioFiles(fs.Args())
	if err != nil {
		return err
	}

	//1.- Expand every scenario into its repeats before handing them to the pool.
	var inputs []play.Input
	var plays []BatchPlay
	for _, path := range paths {
		in, err := loadInput(path)
		if err != nil {
			return err
		}
		base := in.Seed
		for i := 0; i < *repeat; i++ {
			in.Seed = base + uint64(i)
			in.ID = ""
			inputs = append(inputs, in)
			plays = append(plays, BatchPlay{Scenario: path, Seed: in.Seed})
		}
	}

	opts := batch.Options{Workers: a.cfg.BatchWorkers, Logger: a.log}
	if *workers >= 0 {
		opts.Workers = *workers
	}
	if *record {
		if opts.Recorder, err = replay.NewRecorder(a.cfg.ReplayDir, nil, a.log); err != nil {
			return err
		}
	}
	runner, err := batch.NewRunner(a.arbiter, opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	results, runErr := runner.Run(ctx, inputs)

	//2.- Report every play, including the ones an interrupt never reached.
	for i, res := range results {
		plays[i].Bundle = res.Bundle
		plays[i].Error = res.Error
		if res.Outcome != nil {
			plays[i].Result = res.Outcome.Result
			plays[i].Runs = res.Outcome.Runs
			if *verbose {
				plays[i].Outcome = res.Outcome
			}
		}
	}
	summary := batch.Summarise(results)
	a.log.Info("batch finished",
		logging.Int("plays", summary.Plays),
		logging.Int("failed", summary.Failed),
		logging.Int("workers", runner.Workers()),
	)
	if err := writeJSON(stdout, BatchReport{Plays: plays, Summary: summary}); err != nil {
		return err
	}
	return runErr
}

// loadInput reads a YAML scenario and builds its play.
func loadInput(path string) (play.Input, error) {
	s, err := scenario.Load(path)
	if err != nil {
		return play.Input{}, err
	}
	in, err := s.Input()
	if err != nil {
		return play.Input{}, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// scenarioFiles expands directories into the YAML files they hold, sorted.
func scenarioFiles(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		var found []string
		for _, entry := range entries {
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if !entry.IsDir() && (ext == ".yaml" || ext == ".yml") {
				found = append(found, filepath.Join(arg, entry.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	if len(paths) == 0 {
		return nil, usageError("no scenario files found")
	}
	return paths, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
