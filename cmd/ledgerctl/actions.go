package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/importledger/internal/admin"
	"github.com/JonMunkholm/importledger/internal/core"
	"github.com/JonMunkholm/importledger/internal/database"
	"github.com/urfave/cli/v3"
)

// MigrateUp applies pending migrations.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	app, err := r.pool(ctx)
	if err != nil {
		return err
	}
	applied, err := database.Migrate(ctx, app.Pool)
	if err != nil {
		return err
	}
	return r.writePlain("applied %d migration(s)\n", applied)
}

// MigrateDown rolls back the latest migration.
func (r *Runner) MigrateDown(ctx context.Context, cmd *cli.Command) error {
	app, err := r.pool(ctx)
	if err != nil {
		return err
	}
	version, err := database.Rollback(ctx, app.Pool)
	if err != nil {
		return err
	}
	return r.writePlain("rolled back migration %04d\n", version)
}

// MigrateVersion prints the applied schema version.
func (r *Runner) MigrateVersion(ctx context.Context, cmd *cli.Command) error {
	app, err := r.pool(ctx)
	if err != nil {
		return err
	}
	version, err := database.SchemaVersion(ctx, app.Pool)
	if err != nil {
		return err
	}
	return r.writePlain("schema version %d\n", version)
}

// ListImports prints a page of imports.
func (r *Runner) ListImports(ctx context.Context, cmd *cli.Command) error {
	opts := core.ListImportsOptions{PageRequest: pageRequest(cmd)}
	if v := cmd.String("status"); v != "" {
		st, err := core.ParseImportStatus(v)
		if err != nil {
			return err
		}
		opts.Status = core.Some(st)
	}
	if v := cmd.String("entity"); v != "" {
		et, err := core.ParseEntityType(v)
		if err != nil {
			return err
		}
		opts.EntityType = core.Some(et)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	page, err := app.Service.ListImports(ctx, cmd.String("org"), opts)
	if err != nil {
		return err
	}
	return r.writeJSON(page)
}

// ShowImport prints one import.
func (r *Runner) ShowImport(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	imp, err := app.Service.GetImport(ctx, cmd.String("org"), id)
	if err != nil {
		return err
	}
	return r.writeJSON(imp)
}

// ListRows prints an import with a page of its rows.
func (r *Runner) ListRows(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	opts := core.ListRowsOptions{PageRequest: pageRequest(cmd)}
	if v := cmd.String("status"); v != "" {
		st, err := core.ParseRowStatus(v)
		if err != nil {
			return err
		}
		opts.Status = core.Some(st)
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	res, err := app.Service.GetImportWithResults(ctx, cmd.String("org"), id, opts)
	if err != nil {
		return err
	}
	return r.writeJSON(res)
}

// PollProgress prints one progress snapshot.
func (r *Runner) PollProgress(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	var since time.Time
	if v := cmd.String("since"); v != "" {
		if since, err = time.Parse(time.RFC3339Nano, v); err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	snap, err := app.Service.PollProgress(ctx, cmd.String("org"), id, since)
	if err != nil {
		return err
	}
	return r.writeJSON(snap)
}

// FailImport marks an import FAILED.
func (r *Runner) FailImport(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	imp, err := app.Service.Fail(ctx, id, cmd.String("message"))
	if err != nil {
		return err
	}
	return r.writeJSON(imp)
}

// Purge runs one retention sweep.
func (r *Runner) Purge(ctx context.Context, cmd *cli.Command) error {
	days := int(cmd.Int("days"))
	if days <= 0 {
		days = r.config.Retention.Days
	}
	batch := int(cmd.Int("batch"))
	if batch <= 0 {
		batch = r.config.Retention.BatchSize
	}
	if days <= 0 {
		return errors.New("retention window must be positive")
	}

	app, err := r.open(ctx)
	if err != nil {
		return err
	}
	cutoff := time.Now().AddDate(0, 0, -days)
	purged, err := app.Service.PurgeFinishedImports(ctx, cutoff, batch)
	if err != nil {
		return err
	}
	r.logger.Info("purge finished", "purged", purged, "cutoff", cutoff.Format(time.RFC3339))
	return r.writePlain("purged %d import(s)\n", purged)
}

// Reset deletes every import after confirmation.
func (r *Runner) Reset(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return errors.New("reset deletes every import; pass --yes to confirm")
	}
	app, err := r.pool(ctx)
	if err != nil {
		return err
	}
	if err := admin.ResetLedger(ctx, app.Pool); err != nil {
		return err
	}
	return r.writePlain("ledger reset\n")
}

// Listen prints dispatched job descriptors until interrupted.
func (r *Runner) Listen(ctx context.Context, cmd *cli.Command) error {
	app, err := r.pool(ctx)
	if err != nil {
		return err
	}
	channel := cmd.String("channel")
	if channel == "" {
		channel = r.config.Imports.DispatchChannel
	}

	r.logger.Info("listening for jobs", "channel", channel)
	err = database.ListenJobs(ctx, app.Pool, channel, func(job core.JobDescriptor) error {
		return r.writeJSON(job)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func pageRequest(cmd *cli.Command) core.PageRequest {
	return core.PageRequest{Page: int(cmd.Int("page")), Limit: int(cmd.Int("limit"))}
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("missing <%s> argument", name)
	}
	return v, nil
}
