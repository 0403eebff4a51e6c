package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteMigrations embed.FS

// MigratePostgres applies every pending embedded migration to the pool's database.
func MigratePostgres(pool *pgxpool.Pool, logger *zap.Logger) error {
	sqlDB := stdlib.OpenDBFromPool(pool)

	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	m, err := newMigrator(postgresMigrations, "migrations/postgres", "pgx5", driver)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer m.Close()

	return up(m, "postgres", logger)
}

// MigrateSQLite applies every pending embedded migration to an open SQLite database.
// The database stays open.
func MigrateSQLite(sqlDB *sql.DB, logger *zap.Logger) error {
	driver, err := sqlitemigrate.WithInstance(sqlDB, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite migration driver: %w", err)
	}

	m, err := newMigrator(sqliteMigrations, "migrations/sqlite", "sqlite", driver)
	if err != nil {
		return err
	}
	// Closing m would close sqlDB through the driver.
	return up(m, "sqlite", logger)
}

func newMigrator(fsys embed.FS, dir, driverName string, driver database.Driver) (*migrate.Migrate, error) {
	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

func up(m *migrate.Migrate, name string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debug("migrations up to date", zap.String("database", name))
			return nil
		}
		return fmt.Errorf("failed to run %s migrations: %w", name, err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("failed to read %s migration version: %w", name, err)
	}
	logger.Info("migrations applied", zap.String("database", name), zap.Uint("version", version), zap.Bool("dirty", dirty))
	return nil
}
