package sqlite

import (
	"database/sql"
	"fmt"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS entities (
	name TEXT PRIMARY KEY COLLATE NOCASE,
	entity_type TEXT NOT NULL,
	observations_blob BLOB NOT NULL,
	observations_text TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed DATETIME,
	prominence REAL NOT NULL DEFAULT 0,
	decay_rate REAL NOT NULL DEFAULT 0,
	importance REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_entities_type ON entities(entity_type);
CREATE INDEX IF NOT EXISTS idx_entities_updated_at ON entities(updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_entities_prominence ON entities(prominence DESC);
CREATE INDEX IF NOT EXISTS idx_entities_last_accessed ON entities(last_accessed DESC);
CREATE INDEX IF NOT EXISTS idx_entities_prom_access ON entities(prominence DESC, last_accessed DESC);

CREATE TABLE IF NOT EXISTS relations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_name TEXT NOT NULL,
	to_name TEXT NOT NULL,
	relation_type TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	access_count INTEGER NOT NULL DEFAULT 0,
	last_accessed DATETIME,
	prominence REAL NOT NULL DEFAULT 0,
	UNIQUE(from_name, to_name, relation_type),
	FOREIGN KEY (from_name) REFERENCES entities(name) ON DELETE CASCADE,
	FOREIGN KEY (to_name) REFERENCES entities(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_relations_from ON relations(from_name);
CREATE INDEX IF NOT EXISTS idx_relations_to ON relations(to_name);
CREATE INDEX IF NOT EXISTS idx_relations_type ON relations(relation_type);
CREATE INDEX IF NOT EXISTS idx_relations_from_to ON relations(from_name, to_name);

CREATE TABLE IF NOT EXISTS schema_meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// ftsDDL creates the FTS5 term index over (name, entity_type,
// observations_text) with a short-prefix index (spec §4.4: prefix
// lengths 2-4) and unicode-aware tokenization. modernc.org/sqlite's FTS5
// build has no stemming tokenizer extension, so stemming is performed
// before text reaches this index (see stem.go) rather than inside
// SQLite itself — the "stemming tokenizer" requirement is satisfied at
// the application layer instead of the tokenizer layer.
const ftsDDL = `
CREATE VIRTUAL TABLE IF NOT EXISTS entities_fts USING fts5(
	name,
	entity_type,
	observations_text,
	content='entities',
	content_rowid='rowid',
	prefix='2 3 4',
	tokenize='unicode61 remove_diacritics 2'
);

CREATE TRIGGER IF NOT EXISTS entities_ai AFTER INSERT ON entities BEGIN
	INSERT INTO entities_fts(rowid, name, entity_type, observations_text)
	VALUES (new.rowid, new.name, new.entity_type, new.observations_text);
END;

CREATE TRIGGER IF NOT EXISTS entities_ad AFTER DELETE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, entity_type, observations_text)
	VALUES('delete', old.rowid, old.name, old.entity_type, old.observations_text);
END;

CREATE TRIGGER IF NOT EXISTS entities_au AFTER UPDATE ON entities BEGIN
	INSERT INTO entities_fts(entities_fts, rowid, name, entity_type, observations_text)
	VALUES('delete', old.rowid, old.name, old.entity_type, old.observations_text);
	INSERT INTO entities_fts(rowid, name, entity_type, observations_text)
	VALUES (new.rowid, new.name, new.entity_type, new.observations_text);
END;
`

// ensureSchema creates every table/index/trigger idempotently (all DDL is
// `IF NOT EXISTS`) and then runs the tokenizer migration check.
func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("sqlite: create schema: %w", err)
	}
	if _, err := db.Exec(ftsDDL); err != nil {
		return fmt.Errorf("sqlite: create fts index: %w", err)
	}
	if err := migrateTokenizerIfLegacy(db); err != nil {
		return fmt.Errorf("sqlite: tokenizer migration: %w", err)
	}
	return nil
}

// migrateTokenizerIfLegacy detects a pre-stemming term index (schema_meta
// missing the stemming marker) and rebuilds entities_fts in place,
// preserving rowid linkage to entities (spec §4.4).
func migrateTokenizerIfLegacy(db *sql.DB) error {
	var marker string
	err := db.QueryRow(`SELECT value FROM schema_meta WHERE key = 'fts_stemming'`).Scan(&marker)
	if err == nil && marker == "1" {
		return nil
	}
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	if _, err := db.Exec(`INSERT INTO entities_fts(entities_fts) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("rebuild fts index: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO schema_meta (key, value) VALUES ('fts_stemming', '1')
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`)
	return err
}
