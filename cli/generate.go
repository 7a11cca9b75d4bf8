package cli

// This file contains the generate command and the helpers shared with
// preview and history for loading suites and constructing the pipeline.

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/taskgen/taskgen/codec"
	"github.com/taskgen/taskgen/estimate"
	"github.com/taskgen/taskgen/generate"
	"github.com/taskgen/taskgen/history"
	"github.com/taskgen/taskgen/model"
	"github.com/taskgen/taskgen/suite"
	"github.com/taskgen/taskgen/taskgraph"
)

func (a *App) generate(ctx *cli.Context) error {
	suites, loadErrs := a.loadSuites(ctx)
	for _, err := range loadErrs {
		a.logger.Error().Err(err).Msg("skipping suite with invalid definition")
	}
	if len(suites) == 0 && len(loadErrs) == 0 {
		a.logger.Warn().Str("dir", ctx.String("suite-dir")).Msg("no suites to generate")
		return nil
	}

	outputCodec, err := codec.New(codec.Format(ctx.String("format")))
	if err != nil {
		return err
	}
	runner := a.newRunner(ctx, outputCodec)
	runner.Builder = &taskgraph.Builder{CreateMiscTask: ctx.Bool("misc-task")}

	results, err := runner.Run(ctx.Context, suites)
	if err != nil {
		return err
	}

	outputDir := ctx.String("output-dir")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	for _, res := range results {
		for _, w := range res.Warnings {
			a.logger.Warn().Str("suite", res.Suite).Msg(w)
		}
		path := filepath.Join(outputDir, res.Suite+runner.Codec.Ext())
		if err := os.WriteFile(path, res.Encoded, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		a.logger.Info().Str("suite", res.Suite).Str("path", path).Msg("wrote generated config")
	}
	// Input errors are isolated per suite above, but the run still exits
	// non-zero when any suite was skipped.
	return errors.Join(loadErrs...)
}

// loadSuites resolves the --suite selection against --suite-dir, or loads
// every definition in the directory when no selection was given. Invalid
// definitions come back as errors without blocking the valid ones.
func (a *App) loadSuites(ctx *cli.Context) ([]model.Suite, []error) {
	testRoot := ctx.String("test-root")
	names := ctx.StringSlice("suite")
	var suites []model.Suite
	var errs []error
	if len(names) == 0 {
		suites, errs = suite.LoadDir(ctx.String("suite-dir"), testRoot)
	} else {
		for _, name := range names {
			path := name
			if !strings.ContainsRune(name, os.PathSeparator) && filepath.Ext(name) == "" {
				path = filepath.Join(ctx.String("suite-dir"), name+".yml")
			}
			s, err := suite.Load(path, testRoot)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			suites = append(suites, s)
		}
	}
	for i := range suites {
		applyFlagDefaults(ctx, &suites[i])
	}
	return suites, errs
}

// applyFlagDefaults fills suite fields the definition left unset from the
// command line; explicit suite settings always win.
func applyFlagDefaults(ctx *cli.Context, s *model.Suite) {
	if s.Project == "" {
		s.Project = ctx.String("project")
	}
	if s.Variant == "" {
		s.Variant = ctx.String("variant")
	}
	if s.Limits.MaxSubSuites == 0 {
		s.Limits.MaxSubSuites = ctx.Int("max-sub-suites")
	}
	if s.Limits.MaxSubSuiteRuntime == 0 {
		s.Limits.MaxSubSuiteRuntime = ctx.Duration("target-runtime")
	}
	if s.Limits.MaxSubSuiteTests == 0 {
		s.Limits.MaxSubSuiteTests = ctx.Int("max-tests")
	}
}

// newRunner builds the pipeline from the shared suite flags.
func (a *App) newRunner(ctx *cli.Context, outputCodec codec.Codec) *generate.Runner {
	return &generate.Runner{
		Provider:     a.newProvider(ctx),
		Estimator:    &estimate.Estimator{Samples: ctx.Int("samples"), Logger: a.logger},
		Builder:      &taskgraph.Builder{},
		Codec:        outputCodec,
		Workers:      ctx.Int("workers"),
		FetchTimeout: ctx.Duration("fetch-timeout"),
		Deadline:     ctx.Duration("deadline"),
		Lookback:     ctx.Duration("lookback"),
		Logger:       a.logger,
	}
}

// newProvider constructs the history source once; it is shared by every
// fetch in the batch.
func (a *App) newProvider(ctx *cli.Context) history.Provider {
	cache := history.NewCache(a.logger, ctx.String("cache-dir"))
	if ctx.Bool("offline") || ctx.String("stats-url") == "" {
		if !ctx.Bool("offline") {
			a.logger.Warn().Msg("no --stats-url configured, serving history from local snapshots")
		}
		return &history.CacheOnlyProvider{Cache: cache}
	}
	client := history.NewStatsClient(a.logger, ctx.String("stats-url"), ctx.String("auth-token"), ctx.Duration("fetch-timeout"))
	return &history.CachingProvider{Inner: client, Cache: cache, Logger: a.logger}
}
