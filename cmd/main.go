package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	app := newApp(runner)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrSyncIncomplete):
			logger.Error(err)
			os.Exit(1)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}

// newApp builds the command tree around runner.
func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "stramoot",
		Usage:   "Copy recorded Komoot tours to Strava",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
				Sources: cli.EnvVars(shared.EnvPrefix + "CONFIG"),
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		Before:   runner.Before,
		Commands: runner.register(),
	}
}
