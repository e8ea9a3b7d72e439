// submodule cmd contains command definitions
package main

import (
	"github.com/desertthunder/stramoot/internal/formatter"
	"github.com/urfave/cli/v3"
)

func windowFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "interval",
			Aliases: []string{"i"},
			Usage:   "Lookback window as an ISO 8601 duration (P2D, PT36H) or Go duration (48h)",
		},
		&cli.StringFlag{
			Name:  "since",
			Usage: "Window start as RFC 3339 or YYYY-MM-DD; overrides --interval",
		},
		&cli.IntFlag{
			Name:  "page-size",
			Usage: "Tours per listing page (1-255)",
		},
	}
}

func syncFlags() []cli.Flag {
	return append(windowFlags(), &cli.IntFlag{
		Name:    "batch-size",
		Aliases: []string{"b"},
		Usage:   "Maximum number of tours in flight",
	})
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Report format: text, json, csv or markdown",
		Validator: func(s string) error {
			_, err := formatter.ParseFormat(s)
			return err
		},
	}
}

// syncCommand runs the Komoot → Strava sync
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Copy recent Komoot tours to Strava",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one sync and print a report",
				Flags: append(syncFlags(),
					&cli.StringFlag{
						Name:    "report",
						Aliases: []string{"o"},
						Usage:   "Also write the report to this file (format from extension unless --format is set)",
					},
					formatFlag(),
				),
				Action: r.SyncRun,
			},
			{
				Name:   "tui",
				Usage:  "Run one sync with an interactive progress view",
				Flags:  syncFlags(),
				Action: r.SyncTUI,
			},
		},
	}
}

// toursCommand lists Komoot tours without uploading
func toursCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tours",
		Usage: "Komoot tour operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded tours in the sync window (dry run)",
				Flags: append(windowFlags(),
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				),
				Action: r.ToursList,
			},
		},
	}
}

// authCommand handles authentication operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage authentication",
		Commands: []*cli.Command{
			{
				Name:  "strava",
				Usage: "Authorize stramoot with Strava and save the refresh token",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the authorization URL instead of opening a browser",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the authorization callback",
						Value: defaultAuthTimeout,
					},
				},
				Action: r.AuthStrava,
			},
			{
				Name:   "komoot",
				Usage:  "Check the configured Komoot credentials",
				Action: r.AuthKomoot,
			},
		},
	}
}

// historyCommand reads the run journal
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect past sync runs (requires [database] enabled = true)",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recorded runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of runs",
						Value:   20,
					},
					&cli.BoolFlag{
						Name:  "failed",
						Usage: "Only runs with failures",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:      "show",
				Usage:     "Show a run and its tours",
				ArgsUsage: "<run number or id prefix>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Flags:  []cli.Flag{formatFlag()},
				Action: r.HistoryShow,
			},
			{
				Name:      "delete",
				Usage:     "Remove a run from the history",
				ArgsUsage: "<run number or id prefix>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "run"},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example config file to the --config path",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Create the run journal and apply migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration instead",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// watchCommand runs the sync on the configured schedule
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Run the sync on the [schedule] spec until interrupted",
		Flags: append(syncFlags(),
			&cli.StringFlag{
				Name:  "schedule",
				Usage: `Cron spec or descriptor, e.g. "0 */6 * * *" or "@every 6h"`,
			},
			&cli.BoolFlag{
				Name:  "now",
				Usage: "Also run once immediately",
			},
		),
		Action: r.Watch,
	}
}
