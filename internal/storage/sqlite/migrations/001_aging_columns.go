package migrations

import "database/sql"

// migrateAgingColumns guarantees the optional aging columns (spec §3
// "Optional aging attributes") exist on entities/relations even for a
// database created before prominence-decay scoring was added. The base
// schema already declares them for fresh databases, so this is a no-op
// there; it only does work against an older on-disk layout.
func migrateAgingColumns(db *sql.DB) error {
	alters := []struct {
		table, column, ddl string
	}{
		{"entities", "access_count", "ALTER TABLE entities ADD COLUMN access_count INTEGER NOT NULL DEFAULT 0"},
		{"entities", "last_accessed", "ALTER TABLE entities ADD COLUMN last_accessed DATETIME"},
		{"entities", "prominence", "ALTER TABLE entities ADD COLUMN prominence REAL NOT NULL DEFAULT 0"},
		{"entities", "decay_rate", "ALTER TABLE entities ADD COLUMN decay_rate REAL NOT NULL DEFAULT 0"},
		{"entities", "importance", "ALTER TABLE entities ADD COLUMN importance REAL NOT NULL DEFAULT 0"},
		{"relations", "access_count", "ALTER TABLE relations ADD COLUMN access_count INTEGER NOT NULL DEFAULT 0"},
		{"relations", "last_accessed", "ALTER TABLE relations ADD COLUMN last_accessed DATETIME"},
		{"relations", "prominence", "ALTER TABLE relations ADD COLUMN prominence REAL NOT NULL DEFAULT 0"},
	}

	for _, a := range alters {
		exists, err := columnExists(db, a.table, a.column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.Exec(a.ddl); err != nil {
			return err
		}
	}
	return nil
}
