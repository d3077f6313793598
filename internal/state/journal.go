// Package state implements the persistence layer: the SQLite journal of
// applied hosts overrides that makes restoration survive a process crash.
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/loopgate/loopgate/internal/hostsfile"
)

// PendingOverride is one journal row: an override some earlier run applied
// to the table at HostsPath and has not yet reverted.
type PendingOverride struct {
	HostsPath string
	Applied   hostsfile.Applied
}

// Journal persists applied overrides before the hosts table is written, so
// an unclean exit can be rolled back on the next startup.
type Journal struct {
	db *sql.DB
}

// Open creates (if needed) and migrates journal.db under dir.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: create dir %s: %w", dir, err)
	}
	db, err := openDB(filepath.Join(dir, "journal.db"))
	if err != nil {
		return nil, err
	}
	if err := migrateJournalDB(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Close releases the database handle.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record journals the given applied overrides. Must complete before the
// mutated table is persisted; an entry present here with no matching table
// mutation is harmless, the reverse is not.
func (j *Journal) Record(hostsPath string, applied []hostsfile.Applied) error {
	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("state: begin record: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	for _, a := range applied {
		_, err := tx.Exec(
			`INSERT OR REPLACE INTO applied_overrides
				(name, local_addr, original, had_original, hosts_path, applied_at_ns)
				VALUES (?, ?, ?, ?, ?, ?)`,
			a.Name, a.Addr, a.Original, boolToInt(a.HadOriginal), hostsPath, now,
		)
		if err != nil {
			return fmt.Errorf("state: record override %s: %w", a.Name, err)
		}
	}
	return tx.Commit()
}

// Pending returns every journaled override that has not been cleared.
// A non-empty result at startup means a previous run exited without
// reverting.
func (j *Journal) Pending() ([]PendingOverride, error) {
	rows, err := j.db.Query(
		`SELECT name, local_addr, original, had_original, hosts_path
			FROM applied_overrides ORDER BY applied_at_ns, name`,
	)
	if err != nil {
		return nil, fmt.Errorf("state: load pending: %w", err)
	}
	defer rows.Close()

	var pending []PendingOverride
	for rows.Next() {
		var (
			p           PendingOverride
			hadOriginal int
		)
		if err := rows.Scan(&p.Applied.Name, &p.Applied.Addr, &p.Applied.Original, &hadOriginal, &p.HostsPath); err != nil {
			return nil, fmt.Errorf("state: scan pending: %w", err)
		}
		p.Applied.HadOriginal = hadOriginal != 0
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: iterate pending: %w", err)
	}
	return pending, nil
}

// Clear removes every journaled override. Called after a successful revert.
func (j *Journal) Clear() error {
	if _, err := j.db.Exec(`DELETE FROM applied_overrides`); err != nil {
		return fmt.Errorf("state: clear journal: %w", err)
	}
	return nil
}

// openDB opens a SQLite database with the recommended pragmas:
// WAL journal mode, synchronous=NORMAL, busy_timeout=5000.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("state: open db %s: %w", path, err)
	}

	// Single-writer: only one connection needed.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("state: exec %q on %s: %w", p, path, err)
		}
	}
	return db, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
