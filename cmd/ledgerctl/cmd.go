package main

import "github.com/urfave/cli/v3"

func orgFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "org",
		Aliases:  []string{"o"},
		Usage:    "Organization that owns the imports",
		Sources:  cli.EnvVars("LEDGER_ORG"),
		Required: true,
	}
}

func pageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "page", Usage: "1-based page number", Value: 1},
		&cli.IntFlag{Name: "limit", Usage: "Page size (0 uses the configured default)"},
	}
}

func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Manage the ledger schema",
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply pending migrations",
				Action: r.MigrateUp,
			},
			{
				Name:   "down",
				Usage:  "Roll back the latest migration",
				Action: r.MigrateDown,
			},
			{
				Name:   "version",
				Usage:  "Print the applied schema version",
				Action: r.MigrateVersion,
			},
		},
	}
}

func importsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "imports",
		Aliases: []string{"i"},
		Usage:   "Inspect imports",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List an organization's imports, newest first",
				Flags: append([]cli.Flag{
					orgFlag(),
					&cli.StringFlag{Name: "status", Usage: "Filter by import status"},
					&cli.StringFlag{Name: "entity", Usage: "Filter by entity type"},
				}, pageFlags()...),
				Action: r.ListImports,
			},
			{
				Name:      "show",
				Usage:     "Show one import",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags:     []cli.Flag{orgFlag()},
				Action:    r.ShowImport,
			},
			{
				Name:      "rows",
				Usage:     "List an import's row results",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: append([]cli.Flag{
					orgFlag(),
					&cli.StringFlag{Name: "status", Usage: "Filter by row status"},
				}, pageFlags()...),
				Action: r.ListRows,
			},
			{
				Name:      "poll",
				Usage:     "Poll progress since a cursor",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					orgFlag(),
					&cli.StringFlag{Name: "since", Usage: "RFC 3339 cursor from a previous poll"},
				},
				Action: r.PollProgress,
			},
			{
				Name:      "fail",
				Usage:     "Mark a stuck import FAILED",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Reason recorded on the import", Required: true},
				},
				Action: r.FailImport,
			},
		},
	}
}

func purgeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Delete finished imports older than the retention window",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Usage: "Retention window in days (0 uses RETENTION_DAYS)"},
			&cli.IntFlag{Name: "batch", Usage: "Imports deleted per statement (0 uses RETENTION_BATCH_SIZE)"},
		},
		Action: r.Purge,
	}
}

func resetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "reset",
		Usage: "Delete every import and row result",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Usage: "Confirm the reset"},
		},
		Action: r.Reset,
	}
}

func listenCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Print job descriptors as they are dispatched",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "channel", Usage: "NOTIFY channel (default: IMPORT_DISPATCH_CHANNEL)"},
		},
		Action: r.Listen,
	}
}
