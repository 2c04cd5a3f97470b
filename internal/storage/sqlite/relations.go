package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// CreateRelations inserts typed edges between existing entities, skipping
// any (from, to, type) triple that already exists (spec §4.2). Endpoint
// names are lowercased before storage: relation identity is
// case-insensitive end to end, independent of how the entity's own name
// is cased.
func (s *Store) CreateRelations(ctx context.Context, relations []types.Relation) (types.Performance, error) {
	start := time.Now()
	if len(relations) == 0 {
		return perfFor(start, 0, 0, 0, 0), nil
	}
	for _, r := range relations {
		if strings.TrimSpace(r.From) == "" || strings.TrimSpace(r.To) == "" {
			return types.Performance{}, fmt.Errorf("%w: from/to must not be empty", types.ErrInvalidRelation)
		}
		if r.RelationType == "" {
			return types.Performance{}, fmt.Errorf("%w: relationType must not be empty", types.ErrInvalidRelation)
		}
	}

	var succeeded, skipped int
	now := time.Now().UTC()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO relations (from_name, to_name, relation_type, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(from_name, to_name, relation_type) DO NOTHING
		`)
		if err != nil {
			return wrapDBError("create_relations", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range relations {
			from := strings.ToLower(r.From)
			to := strings.ToLower(r.To)
			res, execErr := stmt.ExecContext(ctx, from, to, r.RelationType, now)
			if execErr != nil {
				if isUniqueConstraintErr(execErr) {
					skipped++
					continue
				}
				return wrapDBError("create_relations", execErr)
			}
			n, _ := res.RowsAffected()
			if n == 0 {
				skipped++
				continue
			}
			succeeded++
		}
		return nil
	})
	if err == nil {
		s.searchCache.Clear()
	}
	return perfFor(start, len(relations), succeeded, skipped, len(relations)-succeeded-skipped), err
}

// DeleteRelations removes the matching (from, to, type) edges (spec
// §4.5). A relation that doesn't exist is counted as skipped, not an
// error — delete is idempotent like create.
func (s *Store) DeleteRelations(ctx context.Context, relations []types.Relation) (types.Performance, error) {
	start := time.Now()
	if len(relations) == 0 {
		return perfFor(start, 0, 0, 0, 0), nil
	}

	var succeeded, skipped int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			DELETE FROM relations WHERE from_name = ? AND to_name = ? AND relation_type = ?
		`)
		if err != nil {
			return wrapDBError("delete_relations", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, r := range relations {
			res, execErr := stmt.ExecContext(ctx, strings.ToLower(r.From), strings.ToLower(r.To), r.RelationType)
			if execErr != nil {
				return wrapDBError("delete_relations", execErr)
			}
			n, _ := res.RowsAffected()
			if n == 0 {
				skipped++
			} else {
				succeeded++
			}
		}
		return nil
	})
	if err == nil {
		s.searchCache.Clear()
	}
	return perfFor(start, len(relations), succeeded, skipped, 0), err
}

// relationsTouching returns every relation with from_name or to_name (or
// both, per dir) among names, used by read_graph/search_nodes to expand
// the entity set into its attached edges (spec §4.6 "relation
// expansion"). For name sets at or below cfg.Performance.RelationQueryThreshold
// this runs a direct IN-clause query; larger sets go through
// relationsTouchingScratch, which joins against a scratch temp table
// instead of a placeholder list with thousands of entries.
func (s *Store) relationsTouching(ctx context.Context, exec interface {
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
}, names []string, dir types.Direction, relationType string) ([]types.Relation, error) {
	if len(names) == 0 {
		return nil, nil
	}
	if db, ok := exec.(*sql.DB); ok && len(names) > s.cfg.Performance.RelationQueryThreshold {
		return s.relationsTouchingScratch(ctx, db, names, dir, relationType)
	}

	placeholders := make([]string, len(names))
	args := make([]interface{}, len(names))
	for i, n := range names {
		placeholders[i] = "?"
		args[i] = strings.ToLower(n)
	}
	in := strings.Join(placeholders, ",")

	var where string
	switch dir {
	case types.DirectionOutgoing:
		where = "from_name IN (" + in + ")"
	case types.DirectionIncoming:
		where = "to_name IN (" + in + ")"
	default:
		where = "from_name IN (" + in + ") OR to_name IN (" + in + ")"
		args = append(args, args...)
	}
	if relationType != "" {
		where = "(" + where + ") AND relation_type = ?"
		args = append(args, relationType)
	}

	rows, err := exec.QueryContext(ctx, `
		SELECT id, from_name, to_name, relation_type, created_at, access_count, last_accessed, prominence
		FROM relations WHERE `+where, args...)
	if err != nil {
		return nil, wrapDBError("relations_touching", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Relation
	for rows.Next() {
		var r types.Relation
		var lastAccessed sql.NullTime
		if err := rows.Scan(&r.ID, &r.From, &r.To, &r.RelationType, &r.CreatedAt, &r.AccessCount, &lastAccessed, &r.ProminenceScore); err != nil {
			return nil, wrapDBError("relations_touching", err)
		}
		if lastAccessed.Valid {
			r.LastAccessed = lastAccessed.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// relationsTouchingScratch implements the large-name-set branch of spec
// §4.6 step 8: within one connection, materialize names into a scratch
// temp table, join relations against it, then drop the table. A single
// *sql.Conn is held for the whole sequence because SQLite temp tables are
// connection-scoped — handing the insert and the join to two different
// pooled connections would silently see an empty table.
func (s *Store) relationsTouchingScratch(ctx context.Context, db *sql.DB, names []string, dir types.Direction, relationType string) ([]types.Relation, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, wrapDBError("relations_touching_scratch", err)
	}
	defer func() { _ = conn.Close() }()

	tmpName := fmt.Sprintf("scratch_names_%d", time.Now().UnixNano())
	if _, err := conn.ExecContext(ctx, fmt.Sprintf(`CREATE TEMP TABLE %s (name TEXT PRIMARY KEY)`, tmpName)); err != nil {
		return nil, wrapDBError("relations_touching_scratch", err)
	}
	defer func() { _, _ = conn.ExecContext(context.Background(), `DROP TABLE IF EXISTS `+tmpName) }()

	const insertBatch = 500
	insertSQL := fmt.Sprintf(`INSERT OR IGNORE INTO %s (name) VALUES `, tmpName)
	for start := 0; start < len(names); start += insertBatch {
		end := start + insertBatch
		if end > len(names) {
			end = len(names)
		}
		chunk := names[start:end]
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, len(chunk))
		for i, n := range chunk {
			placeholders[i] = "(?)"
			args[i] = strings.ToLower(n)
		}
		stmt := insertSQL + strings.Join(placeholders, ",")
		if _, err := conn.ExecContext(ctx, stmt, args...); err != nil {
			return nil, wrapDBError("relations_touching_scratch", err)
		}
	}

	var where string
	switch dir {
	case types.DirectionOutgoing:
		where = fmt.Sprintf("r.from_name IN (SELECT name FROM %s)", tmpName)
	case types.DirectionIncoming:
		where = fmt.Sprintf("r.to_name IN (SELECT name FROM %s)", tmpName)
	default:
		where = fmt.Sprintf("r.from_name IN (SELECT name FROM %s) OR r.to_name IN (SELECT name FROM %s)", tmpName, tmpName)
	}
	var args []interface{}
	if relationType != "" {
		where = "(" + where + ") AND r.relation_type = ?"
		args = append(args, relationType)
	}

	rows, err := conn.QueryContext(ctx, `
		SELECT r.id, r.from_name, r.to_name, r.relation_type, r.created_at, r.access_count, r.last_accessed, r.prominence
		FROM relations r WHERE `+where, args...)
	if err != nil {
		return nil, wrapDBError("relations_touching_scratch", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.Relation
	for rows.Next() {
		var r types.Relation
		var lastAccessed sql.NullTime
		if err := rows.Scan(&r.ID, &r.From, &r.To, &r.RelationType, &r.CreatedAt, &r.AccessCount, &lastAccessed, &r.ProminenceScore); err != nil {
			return nil, wrapDBError("relations_touching_scratch", err)
		}
		if lastAccessed.Valid {
			r.LastAccessed = lastAccessed.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
