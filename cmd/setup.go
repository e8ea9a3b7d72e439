package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/stramoot/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example config to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)

	r.writePlain("✓ Wrote %s\n\n", r.configPath)
	r.writePlain("Next steps:\n")
	r.writePlain("1. Fill in [komoot] email/password and [strava] client_id/client_secret\n")
	r.writePlain("2. Run 'stramoot auth strava' to authorize uploads\n")
	r.writePlain("3. Run 'stramoot tours list' to preview the sync window\n")
	return nil
}

// SetupDatabase creates the run journal and applies migrations, or rolls back the latest one.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.config.Database
	config.Enabled = true

	r.logger.Info("initializing database", "path", config.Path)

	if cmd.Bool("rollback") {
		db, err := shared.NewDatabase(config.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := shared.RollbackMigration(db); err != nil {
			return err
		}
		return r.writePlain("✓ Rolled back the latest migration\n")
	}

	db, err := shared.OpenJournal(config)
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := shared.AppliedMigrations(db)
	if err != nil {
		return err
	}
	for _, m := range applied {
		r.writePlain("  %04d applied %s\n", m.Version, m.AppliedAt)
	}

	if !r.config.Database.Enabled {
		r.logger.Warn("the journal is ready but disabled; set [database] enabled = true to record runs")
	}
	return r.writePlain("✓ Database ready at %s\n", config.Path)
}
