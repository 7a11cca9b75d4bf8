package cli

// This file contains the preview command for inspecting a split without
// writing any config.

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/taskgen/taskgen/codec"
)

func (a *App) preview(ctx *cli.Context) error {
	suites, loadErrs := a.loadSuites(ctx)
	for _, err := range loadErrs {
		a.logger.Error().Err(err).Msg("skipping suite with invalid definition")
	}
	if len(suites) == 0 {
		fmt.Println("No suites found")
		return errors.Join(loadErrs...)
	}

	yamlCodec, err := codec.New(codec.FormatYAML)
	if err != nil {
		return err
	}
	runner := a.newRunner(ctx, yamlCodec)
	results, err := runner.Run(ctx.Context, suites)
	if err != nil {
		return err
	}

	for _, res := range results {
		fmt.Printf("\n=== %s (%d sub-suites) ===\n\n", res.Suite, len(res.Config.Tasks))
		for _, task := range res.Config.Tasks {
			runtime := task.Runtime.Round(time.Millisecond)
			fmt.Printf("%s  tests=%d  runtime=%s\n", task.Name, len(task.TestFiles), runtime)
			for _, file := range task.TestFiles {
				fmt.Printf("   %s\n", file)
			}
		}
		for _, w := range res.Warnings {
			fmt.Printf("warning: %s\n", w)
		}
	}
	return nil
}
