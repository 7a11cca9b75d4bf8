// Package generate wires the pipeline together for a batch of suites:
// concurrent history fetches feed estimation, partitioning and graph
// building, which are pure and run single-threaded per suite once all
// history has been materialized.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/taskgen/taskgen/codec"
	"github.com/taskgen/taskgen/estimate"
	"github.com/taskgen/taskgen/history"
	"github.com/taskgen/taskgen/model"
	"github.com/taskgen/taskgen/split"
	"github.com/taskgen/taskgen/taskgraph"
)

// Defaults applied when the corresponding Runner field is zero.
const (
	DefaultWorkers      = 8
	DefaultFetchTimeout = 30 * time.Second
	DefaultMaxSubSuites = 5
)

// Runner executes the generation pipeline for a batch of suites.
type Runner struct {
	Provider  history.Provider
	Estimator *estimate.Estimator
	Builder   *taskgraph.Builder
	Codec     codec.Codec

	// Workers bounds the number of concurrent history fetches.
	Workers int
	// FetchTimeout bounds each individual fetch.
	FetchTimeout time.Duration
	// Deadline bounds the whole fetch phase; fetches still outstanding
	// when it expires count as fetch failures for their suite only.
	Deadline time.Duration
	// Lookback is the history window requested from the stats service.
	Lookback time.Duration

	Logger zerolog.Logger
}

// SuiteResult is the outcome of generating one suite. Recoverable trouble
// (missing history, skipped records) lands in Warnings; anything harder
// aborts the run.
type SuiteResult struct {
	Suite    string
	Config   model.GeneratedConfig
	Encoded  []byte
	Warnings model.Warnings
}

// fetchResult carries one suite's history, or the error that prevented it,
// from a fetch worker to the collecting loop.
type fetchResult struct {
	index   int
	records []model.HistoryRecord
	err     error
}

// Run generates configs for every suite in the batch. One suite's failure
// never affects another's output; the returned error is non-nil only for
// run-fatal conditions (an encoding failure, or a broken partition
// invariant).
func (r *Runner) Run(ctx context.Context, suites []model.Suite) ([]SuiteResult, error) {
	if len(suites) == 0 {
		return nil, nil
	}
	histories := r.fetchAll(ctx, suites)

	results := make([]SuiteResult, len(suites))
	for i, s := range suites {
		res, err := r.generateOne(s, histories[i])
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

// fetchAll retrieves history for every suite concurrently across a bounded
// worker pool. Results flow over a channel to a single collecting loop, so
// no shared collection needs locking. The returned slice is indexed like
// suites; a failed fetch leaves a nil record slice behind.
func (r *Runner) fetchAll(ctx context.Context, suites []model.Suite) [][]model.HistoryRecord {
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	fetchTimeout := r.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultFetchTimeout
	}
	if r.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Deadline)
		defer cancel()
	}

	out := make(chan fetchResult, len(suites))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, s := range suites {
		i, s := i, s
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(ctx, fetchTimeout)
			defer cancel()
			records, err := r.Provider.Fetch(fetchCtx, history.Query{
				Project:  s.Project,
				Variant:  s.Variant,
				Suite:    s.Name,
				Lookback: r.Lookback,
			})
			out <- fetchResult{index: i, records: records, err: err}
			return nil
		})
	}
	// Fetch errors travel through the channel, never through the group.
	_ = g.Wait()
	close(out)

	histories := make([][]model.HistoryRecord, len(suites))
	for res := range out {
		if res.err != nil {
			r.Logger.Warn().Err(res.err).
				Str("suite", suites[res.index].Name).
				Msg("history unavailable, falling back to cold-start estimates")
			continue
		}
		histories[res.index] = res.records
	}
	return histories
}

// generateOne runs the pure stages for a single suite. The returned error is
// run-fatal; per-suite failures are reported in the result.
func (r *Runner) generateOne(s model.Suite, records []model.HistoryRecord) (SuiteResult, error) {
	res := SuiteResult{Suite: s.Name}
	if records == nil {
		res.Warnings.Addf("suite %s: no history available, all estimates are cold-start", s.Name)
	}

	paths := make([]string, len(s.Tests))
	for i, t := range s.Tests {
		paths[i] = t.Path
	}
	estimates, warnings := r.Estimator.Estimate(paths, records)
	res.Warnings.Merge(warnings)

	weighted := make([]split.WeightedTest, len(paths))
	for i, p := range paths {
		weighted[i] = split.WeightedTest{Path: p, Estimate: estimates[p]}
	}
	limits := s.Limits
	if limits.MaxSubSuites <= 0 {
		limits.MaxSubSuites = DefaultMaxSubSuites
	}
	bins, err := split.Split(weighted, split.Constraints{
		MaxSubSuites: limits.MaxSubSuites,
		MaxRuntime:   limits.MaxSubSuiteRuntime,
		MaxTests:     limits.MaxSubSuiteTests,
	})
	if err != nil {
		// Only the exact-cover invariant can fail here, and that must
		// never happen by construction. Abort the run.
		return res, err
	}

	res.Config = r.Builder.Build(s, bins)
	encoded, err := r.Codec.Encode(res.Config)
	if err != nil {
		// No partial or invalid document is ever written.
		return res, fmt.Errorf("suite %s: %w", s.Name, err)
	}
	res.Encoded = encoded

	r.Logger.Info().
		Str("suite", s.Name).
		Int("tests", len(paths)).
		Int("sub_suites", len(bins)).
		Dur("makespan", makespan(bins)).
		Msg("generated suite configuration")
	return res, nil
}

func makespan(bins []split.Bin) time.Duration {
	var max time.Duration
	for _, b := range bins {
		if b.Runtime > max {
			max = b.Runtime
		}
	}
	return max
}

// IsFatal reports whether err should abort the whole batch rather than just
// one suite.
func IsFatal(err error) bool {
	return errors.Is(err, model.ErrEncode) || errors.Is(err, model.ErrInvariant)
}
