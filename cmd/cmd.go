// submodule cmd contains command definitions
package main

import (
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/rostersync/internal/formatter"
)

var formatUsage = "Output format (" + strings.Join(formatter.Formats, ", ") + ")"

// globalFlags are accepted before any subcommand.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file (.toml, .yaml or .yml)",
			Value:   "config.toml",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"verbose"},
			Usage:   "Enable debug logging",
		},
	}
}

// syncCommand runs and previews reconciliations
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Reconcile MonClub lists into Brevo",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Synchronize every top-level MonClub list, or only the named ones",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "list",
						Aliases: []string{"l"},
						Usage:   "Source list name to sync (repeatable)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   formatUsage,
						Value:   formatter.FormatTable,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Also write the run report to this file",
					},
					&cli.BoolFlag{
						Name:  "no-notify",
						Usage: "Skip the admin email for this run",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:  "diff",
				Usage: "Show what a sync would change without touching Brevo",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "list",
						Aliases: []string{"l"},
						Usage:   "Source list name to preview (repeatable)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   formatUsage,
						Value:   formatter.FormatTable,
					},
				},
				Action: r.SyncDiff,
			},
		},
	}
}

// listsCommand inspects both sides of the sync
func listsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "lists",
		Usage: "Show source and destination lists",
		Commands: []*cli.Command{
			{
				Name:  "source",
				Usage: "List MonClub lists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "top-level",
						Usage: "Only show the top-level lists that are synced",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ListsSource,
			},
			{
				Name:    "destination",
				Aliases: []string{"dest"},
				Usage:   "List Brevo contact lists",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.ListsDestination,
			},
		},
	}
}

// historyCommand reads recorded runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect recorded sync runs",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only show runs with this status (running, completed, failed)",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to show",
						Value: 20,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Only show diff runs",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one run with its list reports",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:  "run",
						Value: "latest",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   formatUsage,
						Value:   formatter.FormatTable,
					},
				},
				Action: r.HistoryShow,
			},
			{
				Name:    "delete",
				Aliases: []string{"rm"},
				Usage:   "Remove a run from history by sequence number, ID or latest",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:  "run",
						Value: "latest",
					},
				},
				Action: r.HistoryDelete,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write an example configuration file",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name:  "path",
						Value: "config.toml",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
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

// apiCommand handles direct Brevo API calls
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the Brevo API",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive syncs.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch interactive TUI to pick and sync lists",
		Action:  r.TUI,
	}
}
