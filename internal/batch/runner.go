// Package batch resolves many independent plays in parallel.
package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"diamondsim/engine/internal/logging"
	"diamondsim/engine/internal/play"
	"diamondsim/engine/internal/replay"
	"diamondsim/engine/internal/simulation"
)

// Result is the fate of one play of a batch, at the index of its input.
type Result struct {
	Index   int           `json:"index"`
	ID      string        `json:"id"`
	Outcome *play.Outcome `json:"outcome,omitempty"`
	Bundle  string        `json:"bundle,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
	Err     error         `json:"-"`
	Error   string        `json:"error,omitempty"`
}

// Options tune a Runner. Zero values are usable.
type Options struct {
	// Workers bounds concurrent plays. Zero means one per CPU.
	Workers  int
	Recorder *replay.Recorder
	Monitor  *simulation.Monitor
	Logger   *logging.Logger
}

// Runner fans plays over a bounded worker pool. Each play builds its own
// entities and its own seeded generator, so results do not depend on the
// number of workers.
type Runner struct {
	arbiter  *play.Arbiter
	workers  int
	recorder *replay.Recorder
	monitor  *simulation.Monitor
	log      *logging.Logger

	plays    metric.Int64Counter
	failures metric.Int64Counter
	duration metric.Float64Histogram
}

// NewRunner binds the arbiter and registers the batch instruments on the
// global meter (no-op unless an SDK is installed).
func NewRunner(arbiter *play.Arbiter, opts Options) (*Runner, error) {
	if arbiter == nil {
		return nil, fmt.Errorf("batch runner needs an arbiter")
	}
	if opts.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", opts.Workers)
	}
	if opts.Workers == 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	r := &Runner{arbiter: arbiter, workers: opts.Workers, recorder: opts.Recorder, monitor: opts.Monitor, log: opts.Logger}

	m := meter()
	var err error
	r.plays, err = m.Int64Counter(
		"diamondsim.batch.plays",
		metric.WithDescription("Plays resolved, by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating plays counter: %w", err)
	}
	r.failures, err = m.Int64Counter(
		"diamondsim.batch.failures",
		metric.WithDescription("Plays rejected before resolution"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failures counter: %w", err)
	}
	r.duration, err = m.Float64Histogram(
		"diamondsim.batch.play.duration",
		metric.WithDescription("Wall time spent resolving one play"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}
	return r, nil
}

// Workers reports the pool size.
func (r *Runner) Workers() int { return r.workers }

// Run resolves every input and returns the results in input order. A play
// that fails is reported in its Result and does not stop the batch.
// Cancelling ctx stops scheduling new plays; the plays that never ran carry
// the context error, which Run also returns.
func (r *Runner) Run(ctx context.Context, inputs []play.Input) ([]Result, error) {
	inputs = append([]play.Input(nil), inputs...)
	results := make([]Result, len(inputs))
	for i := range inputs {
		//1.- Fix identifiers up front so results and bundles agree.
		if inputs[i].ID == "" {
			inputs[i].ID = uuid.NewString()
		}
		results[i] = Result{Index: i, ID: inputs[i].ID}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	scheduled := 0
	for i := range inputs {
		if gctx.Err() != nil {
			break
		}
		scheduled++
		g.Go(func() error {
			results[i] = r.resolve(gctx, i, inputs[i])
			return nil
		})
	}
	_ = g.Wait()

	//2.- Plays the pool never reached inherit the cancellation.
	if err := ctx.Err(); err != nil {
		for i := scheduled; i < len(results); i++ {
			results[i].Err = err
			results[i].Error = err.Error()
		}
		return results, err
	}
	return results, nil
}

func (r *Runner) resolve(ctx context.Context, index int, in play.Input) Result {
	res := Result{Index: index, ID: in.ID}
	started := time.Now()
	var err error
	if r.recorder != nil {
		res.Outcome, res.Bundle, err = r.recorder.Record(ctx, r.arbiter, in)
	} else {
		res.Outcome, err = r.arbiter.Resolve(ctx, in, nil)
	}
	res.Elapsed = time.Since(started)

	if err != nil && res.Outcome == nil {
		res.Err, res.Error = err, err.Error()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			r.failures.Add(ctx, 1)
			r.log.Warn("batch play rejected", logging.String("play", in.ID), logging.Int("index", index), logging.Error(err))
		}
		return res
	}
	if err != nil {
		//3.- The play resolved but its bundle is incomplete.
		res.Err, res.Error = err, err.Error()
	}
	r.plays.Add(context.Background(), 1, metric.WithAttributes(attribute.String("result", string(res.Outcome.Result))))
	r.duration.Record(context.Background(), res.Elapsed.Seconds())
	r.monitor.Observe(res.Elapsed, res.Outcome.Steps)
	return res
}

// Summary aggregates a batch.
type Summary struct {
	Plays    int                 `json:"plays"`
	Failed   int                 `json:"failed"`
	Runs     int                 `json:"runs"`
	Outs     int                 `json:"outs"`
	ByResult map[play.Result]int `json:"by_result"`
	Elapsed  time.Duration       `json:"elapsed"`
}

// Summarise tallies results.
func Summarise(results []Result) Summary {
	s := Summary{ByResult: make(map[play.Result]int)}
	for _, res := range results {
		if res.Outcome == nil {
			s.Failed++
			continue
		}
		s.Plays++
		s.Runs += res.Outcome.Runs
		s.Outs += len(res.Outcome.Outs)
		s.ByResult[res.Outcome.Result]++
		s.Elapsed += res.Elapsed
	}
	return s
}

// Results lists the result kinds of a summary in a stable order.
func (s Summary) Results() []play.Result {
	keys := make([]play.Result, 0, len(s.ByResult))
	for key := range s.ByResult {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
