package cli

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "taskgen"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Split test suites into balanced parallel tasks from runtime history",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "generate",
		Usage:  "Generate balanced sub-suite task configs for one or more suites",
		Action: app.generate,
		Flags: append(suiteFlags(),
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory to write generated configs to",
				Value: "generated",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: yaml or json",
				Value: "yaml",
			},
			&cli.BoolFlag{
				Name:  "misc-task",
				Usage: "Emit a catch-all sub-task for tests added after generation",
				Value: true,
			},
		),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "preview",
		Usage:  "Compute the split and print the plan without writing configs",
		Action: app.preview,
		Flags:  suiteFlags(),
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "history",
		Usage:     "Show per-test runtime estimates for a suite",
		ArgsUsage: "SUITE",
		Action:    app.history,
		Flags:     suiteFlags(),
	})
	return app
}

// suiteFlags are shared by every command that loads suites and history.
func suiteFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "project",
			Usage: "Project identifier used in history queries",
		},
		&cli.StringFlag{
			Name:  "variant",
			Usage: "Build variant used in history queries and task names",
		},
		&cli.StringSliceFlag{
			Name:  "suite",
			Usage: "Suite name or definition path (repeatable; default: every suite in --suite-dir)",
		},
		&cli.StringFlag{
			Name:  "suite-dir",
			Usage: "Directory containing suite definition files",
			Value: "suites",
		},
		&cli.StringFlag{
			Name:  "test-root",
			Usage: "Root directory test patterns are resolved against",
			Value: ".",
		},
		&cli.StringFlag{
			Name:  "stats-url",
			Usage: "Base URL of the historical test-stats service",
		},
		&cli.StringFlag{
			Name:    "auth-token",
			Usage:   "Bearer token for the stats service",
			EnvVars: []string{"TASKGEN_AUTH_TOKEN"},
		},
		&cli.StringFlag{
			Name:  "cache-dir",
			Usage: "Directory for local history snapshots",
			Value: ".taskgen/history",
		},
		&cli.BoolFlag{
			Name:  "offline",
			Usage: "Serve history from local snapshots only",
		},
		&cli.DurationFlag{
			Name:  "lookback",
			Usage: "History window to request",
			Value: 14 * 24 * time.Hour,
		},
		&cli.IntFlag{
			Name:  "samples",
			Usage: "Most recent passing runs averaged per test",
			Value: 2,
		},
		&cli.IntFlag{
			Name:  "max-sub-suites",
			Usage: "Hard ceiling on sub-suites per suite (suite definitions may override)",
			Value: 5,
		},
		&cli.DurationFlag{
			Name:  "target-runtime",
			Usage: "Soft per-sub-suite runtime target (suite definitions may override)",
		},
		&cli.IntFlag{
			Name:  "max-tests",
			Usage: "Soft per-sub-suite test count target (suite definitions may override)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Concurrent history fetches",
			Value: 8,
		},
		&cli.DurationFlag{
			Name:  "fetch-timeout",
			Usage: "Timeout per history fetch",
			Value: 30 * time.Second,
		},
		&cli.DurationFlag{
			Name:  "deadline",
			Usage: "Overall deadline for the history fetch phase",
			Value: 5 * time.Minute,
		},
	}
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && commit != "" {
		a.cli.Version = version + " (commit: " + commit[:8] + ", built: " + date + ")"
	}
}
