package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/spx/internal/repositories"
	"github.com/desertthunder/spx/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupDatabase initializes the session database and runs migrations.
//
// --rollback reverts the newest migration and --status only lists what is applied.
// A plain run also clears tokens that have expired.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	config := r.config

	r.logger.Info("initializing database", "path", config.Database.Path)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer db.Close()

	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	switch {
	case cmd.Bool("status"):
	case cmd.Bool("rollback"):
		r.logger.Info("rolling back latest migration")
		if err := shared.RollbackMigration(db); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
	default:
		r.logger.Info("running database migrations")
		if err := shared.RunMigrations(db); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		purged, err := repositories.NewSessionRepository(db).PurgeExpired(time.Now())
		if err != nil {
			return err
		}
		if purged > 0 {
			r.logger.Info("cleared expired tokens", "sessions", purged)
			r.writePlain("Cleared %d expired token(s)\n", purged)
		}
	}

	records, err := shared.MigrationStatus(db)
	if err != nil {
		return err
	}

	r.writePlain("Database: %s\n", config.Database.Path)
	if len(records) == 0 {
		return r.writePlain("No migrations applied\n")
	}
	for _, m := range records {
		r.writePlain("  %04d %s (applied %s)\n", m.Version, m.Name, m.AppliedAt.Format("2006-01-02 15:04:05"))
	}

	r.logger.Infof("setup complete for database: %v", config.Database.Path)
	return nil
}

// ConfigInit writes the example config to the --config path.
func (r *Runner) ConfigInit(ctx context.Context, cmd *cli.Command) error {
	path := r.configPath
	if path == "" {
		path = "config.toml"
	}

	if err := shared.CreateConfigFile(path); err != nil {
		return err
	}

	r.logger.Info("config file created", "path", path)
	r.writePlain("✓ Config written to %s\n", path)
	return r.writePlain("Set credentials.spotify.client_id, then run `spx login`\n")
}

// ConfigCheck validates the loaded config.
func (r *Runner) ConfigCheck(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.Validate(); err != nil {
		return err
	}
	return r.writePlain("✓ %s is valid\n", r.configPath)
}
