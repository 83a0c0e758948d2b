package db

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/expensetracker/apiserver/config"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrateUp applies all pending up migrations for the configured dialect.
func MigrateUp(ctx context.Context, cfg config.DatabaseConfig) error {
	m, err := newMigrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the given number of migrations. Zero or less rolls back everything.
func MigrateDown(ctx context.Context, cfg config.DatabaseConfig, steps int) error {
	m, err := newMigrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = m.Close()
	}()

	if steps > 0 {
		err = m.Steps(-steps)
	} else {
		err = m.Down()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down failed: %w", err)
	}
	return nil
}

// newMigrator opens a dedicated connection; closing the migrator closes it.
func newMigrator(ctx context.Context, cfg config.DatabaseConfig) (*migrate.Migrate, error) {
	conn, err := Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var driver database.Driver
	switch cfg.Dialect {
	case config.DialectPostgres:
		driver, err = postgres.WithInstance(conn, &postgres.Config{})
	case config.DialectSQLite:
		driver, err = migratesqlite.WithInstance(conn, &migratesqlite.Config{})
	default:
		err = fmt.Errorf("unsupported database dialect %q", cfg.Dialect)
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("init migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations/"+cfg.Dialect)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("init migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, cfg.Dialect, driver)
	if err != nil {
		_ = driver.Close()
		return nil, fmt.Errorf("init migrator failed: %w", err)
	}
	return m, nil
}
