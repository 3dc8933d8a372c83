package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// MigrationTarget identifies the database a migration run applies to
type MigrationTarget struct {
	Driver string // "postgres" or "sqlite"
	DSN    string // postgres URL or sqlite file path
}

// migrationTargetFromEnv reads the target straight from the environment.
// This doesn't use the full config to avoid requiring DISCORD_TOKEN for migrations
func migrationTargetFromEnv() MigrationTarget {
	if os.Getenv("DATABASE_DRIVER") == "sqlite" {
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "data/gatekeeper.db"
		}
		return MigrationTarget{Driver: "sqlite", DSN: path}
	}
	return MigrationTarget{
		Driver: "postgres",
		DSN:    ConstructDatabaseURL(os.Getenv("DATABASE_URL"), os.Getenv("DATABASE_NAME")),
	}
}

// MigrateUp runs all pending migrations
func MigrateUp() error {
	target := migrationTargetFromEnv()
	log.WithField("driver", target.Driver).Info("Running migrations")

	m, err := getMigrate(target)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No new migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	log.WithField("version", version).Info("Successfully migrated")
	return nil
}

// MigrateDown rolls back the specified number of migrations
func MigrateDown(stepsStr string) error {
	steps, err := strconv.Atoi(stepsStr)
	if err != nil {
		return fmt.Errorf("invalid steps value: %w", err)
	}
	if steps <= 0 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}

	m, err := getMigrate(migrationTargetFromEnv())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	err = m.Steps(-steps)
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info("No migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	version, _, verr := m.Version()
	if errors.Is(verr, migrate.ErrNilVersion) {
		log.Info("Rolled back all migrations")
		return nil
	}
	log.WithField("version", version).Info("Successfully rolled back")
	return nil
}

// MigrateStatus shows the current migration status
func MigrateStatus() error {
	m, err := getMigrate(migrationTargetFromEnv())
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		log.Info("No migrations have been applied yet")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	status := "clean"
	if dirty {
		status = "dirty"
	}
	log.WithFields(log.Fields{
		"version": version,
		"status":  status,
	}).Info("Current migration version")
	return nil
}

// RunMigrationsWithURL runs all pending postgres migrations against a custom URL.
// Used at startup and by tests where the URL is generated
func RunMigrationsWithURL(databaseURL string) error {
	return runUp(MigrationTarget{Driver: "postgres", DSN: databaseURL})
}

// RunSQLiteMigrations runs all pending sqlite migrations against the file at path
func RunSQLiteMigrations(path string) error {
	return runUp(MigrationTarget{Driver: "sqlite", DSN: path})
}

func runUp(target MigrationTarget) error {
	m, err := getMigrate(target)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// getMigrate creates a migrate instance over the embedded scripts for the target's driver.
// The migrate instance owns its own connection and closes it with m.Close
func getMigrate(target MigrationTarget) (*migrate.Migrate, error) {
	var (
		driver migratedb.Driver
		err    error
	)

	switch target.Driver {
	case "postgres":
		config, perr := pgxpool.ParseConfig(target.DSN)
		if perr != nil {
			return nil, fmt.Errorf("failed to parse database URL: %w", perr)
		}
		driver, err = postgres.WithInstance(stdlib.OpenDB(*config.ConnConfig), &postgres.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres driver: %w", err)
		}
	case "sqlite":
		if derr := ensureParentDir(target.DSN); derr != nil {
			return nil, derr
		}
		db, oerr := sql.Open("sqlite3", sqliteDSN(target.DSN))
		if oerr != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", oerr)
		}
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown migration driver %q", target.Driver)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations/"+target.Driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, target.Driver, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, nil
}
