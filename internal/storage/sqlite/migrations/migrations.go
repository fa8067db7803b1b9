package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/tasknotify/internal/log"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migrator handles the history database migrations.
type Migrator struct {
	db     *sql.DB
	logger log.Logger
}

// NewMigrator creates a new migrator instance.
func NewMigrator(db *sql.DB, logger log.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	return &Migrator{
		db:     db,
		logger: logger.WithValues(log.Kv{"svc": "storage.Migrator"}),
	}, nil
}

// Up applies all the pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	return m.with(ctx, func(inst *migrate.Migrate) error {
		err := inst.Up()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("could not run migrations: %w", err)
		}

		m.logger.Debugf("Migrations applied successfully")
		return nil
	})
}

// Down reverts all migrations.
func (m *Migrator) Down(ctx context.Context) error {
	return m.with(ctx, func(inst *migrate.Migrate) error {
		err := inst.Down()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("could not revert migrations: %w", err)
		}

		m.logger.Debugf("Migrations reverted successfully")
		return nil
	})
}

// Version returns the applied schema version, 0 if none has been applied.
func (m *Migrator) Version(ctx context.Context) (version uint, err error) {
	err = m.with(ctx, func(inst *migrate.Migrate) error {
		v, dirty, err := inst.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not get schema version: %w", err)
		}
		if dirty {
			return fmt.Errorf("schema version %d is dirty", v)
		}

		version = v
		return nil
	})

	return version, err
}

// with runs fn with a migrate instance over the embedded migrations. The database
// itself is not closed, it's owned by the caller.
func (m *Migrator) with(ctx context.Context, fn func(inst *migrate.Migrate) error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	driver, err := migratesqlite.WithInstance(m.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create driver: %w", err)
	}

	src, err := iofs.New(migrationFiles, "sql")
	if err != nil {
		return fmt.Errorf("could not create fs: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			m.logger.Errorf("could not close fs: %s", err)
		}
	}()

	inst, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	return fn(inst)
}
