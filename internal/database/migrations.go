package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/nutricheck-server/migrations"
)

// MigrationRunner applies the schema in migrations/ to a Postgres database.
type MigrationRunner struct {
	migrate *migrate.Migrate
	log     *logrus.Logger
}

// NewMigrationRunner opens databaseURL for migration. An empty dir uses the schema
// compiled into the binary; otherwise the files under dir are read.
func NewMigrationRunner(databaseURL, dir string, logger *logrus.Logger) (*MigrationRunner, error) {
	var (
		m   *migrate.Migrate
		err error
	)
	if dir == "" {
		source, serr := iofs.New(migrations.FS, ".")
		if serr != nil {
			return nil, fmt.Errorf("opening embedded migrations: %w", serr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", source, databaseURL)
	} else {
		m, err = migrate.New("file://"+dir, databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}

	return &MigrationRunner{migrate: m, log: logger}, nil
}

// Migrate applies all pending migrations and closes the runner.
func Migrate(ctx context.Context, databaseURL, dir string, logger *logrus.Logger) error {
	runner, err := NewMigrationRunner(databaseURL, dir, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := runner.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Failed to close migration runner")
		}
	}()
	return runner.Up(ctx)
}

// Up runs all pending migrations. Cancelling ctx stops after the migration in flight.
func (r *MigrationRunner) Up(ctx context.Context) error {
	r.log.Info("Applying database migrations")
	if err := r.run(ctx, r.migrate.Up); err != nil {
		return fmt.Errorf("running migrations up: %w", err)
	}
	r.logVersion("Database schema is up to date")
	return nil
}

// Down rolls back the most recent migration.
func (r *MigrationRunner) Down(ctx context.Context) error {
	r.log.Info("Rolling back one migration")
	if err := r.run(ctx, func() error { return r.migrate.Steps(-1) }); err != nil {
		return fmt.Errorf("rolling back migration: %w", err)
	}
	r.logVersion("Migration rolled back")
	return nil
}

func (r *MigrationRunner) run(ctx context.Context, step func() error) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			r.migrate.GracefulStop <- true
		case <-done:
		}
	}()

	err := step()
	if errors.Is(err, migrate.ErrNoChange) {
		r.log.Info("No migrations to apply")
		return nil
	}
	if err == nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (r *MigrationRunner) logVersion(msg string) {
	version, dirty, err := r.migrate.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		r.log.WithError(err).Warn("Could not read migration version")
		return
	}
	r.log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info(msg)
}

// Version returns the applied schema version and whether the last migration failed halfway.
func (r *MigrationRunner) Version() (uint, bool, error) {
	return r.migrate.Version()
}

// Close releases the source and database handles.
func (r *MigrationRunner) Close() error {
	sourceErr, dbErr := r.migrate.Close()
	return errors.Join(sourceErr, dbErr)
}
