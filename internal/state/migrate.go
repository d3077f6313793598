package state

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

const journalMigrationsPath = "migrations/journal"

//go:embed migrations/journal/*.sql
var migrationsFS embed.FS

// migrateJournalDB applies journal.db migrations.
func migrateJournalDB(db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("migrate %s: nil db", journalMigrationsPath)
	}

	sourceDriver, err := iofs.New(migrationsFS, journalMigrationsPath)
	if err != nil {
		return fmt.Errorf("migrate %s: init source: %w", journalMigrationsPath, err)
	}

	dbDriver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migrate %s: init db driver: %w", journalMigrationsPath, err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", dbDriver)
	if err != nil {
		return fmt.Errorf("migrate %s: init migrator: %w", journalMigrationsPath, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: up: %w", journalMigrationsPath, err)
	}
	return nil
}
