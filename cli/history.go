package cli

// This file contains the history command for displaying per-test runtime
// estimates, mostly useful for debugging a surprising split.

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/taskgen/taskgen/estimate"
	"github.com/taskgen/taskgen/history"
)

func (a *App) history(ctx *cli.Context) error {
	if ctx.NArg() < 1 {
		return fmt.Errorf("expected a suite name, e.g. %s history core", AppName)
	}
	if err := ctx.Set("suite", ctx.Args().First()); err != nil {
		return err
	}

	suites, loadErrs := a.loadSuites(ctx)
	if len(loadErrs) > 0 {
		return errors.Join(loadErrs...)
	}
	if len(suites) == 0 {
		return fmt.Errorf("suite %s not found", ctx.Args().First())
	}
	s := suites[0]

	provider := a.newProvider(ctx)
	records, err := provider.Fetch(ctx.Context, history.Query{
		Project:  s.Project,
		Variant:  s.Variant,
		Suite:    s.Name,
		Lookback: ctx.Duration("lookback"),
	})
	if err != nil {
		a.logger.Warn().Err(err).Msg("history unavailable, estimates are cold-start")
	}

	paths := make([]string, len(s.Tests))
	for i, t := range s.Tests {
		paths[i] = t.Path
	}
	estimator := &estimate.Estimator{Samples: ctx.Int("samples"), Logger: a.logger}
	estimates, warnings := estimator.Estimate(paths, records)

	// Slowest first
	sort.Slice(paths, func(i, j int) bool {
		if estimates[paths[i]] != estimates[paths[j]] {
			return estimates[paths[i]] > estimates[paths[j]]
		}
		return paths[i] < paths[j]
	})

	var total time.Duration
	fmt.Printf("\n=== %s (%d tests) ===\n\n", s.Name, len(paths))
	for _, p := range paths {
		fmt.Printf("%10s  %s\n", estimates[p].Round(time.Millisecond), p)
		total += estimates[p]
	}
	fmt.Printf("\nTotal estimated runtime: %s\n", total.Round(time.Second))
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
