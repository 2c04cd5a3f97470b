// Package migrations holds the numbered, additive schema migrations
// applied after the base schema is created. Each migration is idempotent
// (checks before altering) so re-running the full set against an
// up-to-date database is a no-op, matching the teacher's own
// migrations/NNN_description.go convention.
package migrations

import (
	"database/sql"
	"fmt"
)

// Migration is one forward-only schema change.
type Migration struct {
	Version int
	Name    string
	Up      func(db *sql.DB) error
}

// All is the ordered list of migrations to apply after the base schema.
var All = []Migration{
	{Version: 1, Name: "aging_columns", Up: migrateAgingColumns},
}

// Run applies every migration whose version is not yet recorded in the
// schema_migrations table, recording progress as it goes so a crash
// mid-run resumes rather than re-applying completed migrations.
func Run(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("migrations: create tracking table: %w", err)
	}

	applied := map[int]bool{}
	rows, err := db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return fmt.Errorf("migrations: read tracking table: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return fmt.Errorf("migrations: scan version: %w", err)
		}
		applied[v] = true
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	_ = rows.Close()

	for _, m := range All {
		if applied[m.Version] {
			continue
		}
		if err := m.Up(db); err != nil {
			return fmt.Errorf("migrations: apply %d_%s: %w", m.Version, m.Name, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`, m.Version, m.Name); err != nil {
			return fmt.Errorf("migrations: record %d_%s: %w", m.Version, m.Name, err)
		}
	}
	return nil
}

// columnExists reports whether table has a column named name, used by
// every migration to stay idempotent against a database that already has
// the target column (e.g. because it was created fresh with the current
// base schema).
func columnExists(db *sql.DB, table, name string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cid int
		var colName, colType string
		var notNull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &dflt, &pk); err != nil {
			return false, err
		}
		if colName == name {
			return true, nil
		}
	}
	return false, rows.Err()
}
