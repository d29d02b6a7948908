package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationState is the schema version recorded in the database.
type MigrationState struct {
	Version uint
	Dirty   bool
	// Applied is false when no migration has ever run.
	Applied bool
}

func (s MigrationState) String() string {
	switch {
	case !s.Applied:
		return "no migrations applied"
	case s.Dirty:
		return fmt.Sprintf("version %d (dirty)", s.Version)
	default:
		return fmt.Sprintf("version %d", s.Version)
	}
}

// MigrateUp applies all pending migrations.
func (db *DB) MigrateUp(migrationsPath string) error {
	return db.withMigrate(migrationsPath, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

// MigrateDown rolls back the most recent migration.
func (db *DB) MigrateDown(migrationsPath string) error {
	return db.withMigrate(migrationsPath, func(m *migrate.Migrate) error {
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return nil
	})
}

// MigrationVersion reports the current schema version.
func (db *DB) MigrationVersion(migrationsPath string) (MigrationState, error) {
	var state MigrationState
	err := db.withMigrate(migrationsPath, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to get migration version: %w", err)
		}
		state = MigrationState{Version: version, Dirty: dirty, Applied: true}
		return nil
	})
	return state, err
}

// openMigrationDB opens the connection handed to golang-migrate. The driver
// closes it together with the migrate instance.
var openMigrationDB = func(databaseURL string) (*sql.DB, error) {
	return sql.Open("pgx", databaseURL)
}

func (db *DB) withMigrate(migrationsPath string, fn func(*migrate.Migrate) error) error {
	conn, err := openMigrationDB(db.url)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}

	driver, err := migratepgx.WithInstance(conn, &migratepgx.Config{})
	if err != nil {
		closeDB(conn, "after migration driver failure")
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "pgx5", driver)
	if err != nil {
		if closeErr := driver.Close(); closeErr != nil {
			log.Printf("failed to close migration driver: %v", closeErr)
		}
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			log.Printf("failed to close migrate: source=%v database=%v", srcErr, dbErr)
		}
	}()

	return fn(m)
}

// migrateLogger forwards golang-migrate progress to the standard logger.
type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	log.Printf("migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }
