package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/codec"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// AddObservations appends content blocks to existing entities, skipping
// any block that structurally duplicates one already on the entity (spec
// §4.3 "structural dedup"). An edit naming an entity that doesn't exist
// is counted failed, not fatal to the batch.
func (s *Store) AddObservations(ctx context.Context, edits []types.ObservationEdit) (types.Performance, error) {
	return s.editObservations(ctx, "add_observations", edits, codec.DedupAppend)
}

// DeleteObservations removes content blocks structurally equal to any of
// the given ones from existing entities (spec §4.4). Deleting a block
// that isn't present is a no-op, not an error.
func (s *Store) DeleteObservations(ctx context.Context, edits []types.ObservationEdit) (types.Performance, error) {
	return s.editObservations(ctx, "delete_observations", edits, codec.RemoveEqual)
}

func (s *Store) editObservations(ctx context.Context, op string, edits []types.ObservationEdit, combine func(base, incoming []codec.Block) []codec.Block) (types.Performance, error) {
	start := time.Now()
	if len(edits) == 0 {
		return perfFor(start, 0, 0, 0, 0), nil
	}

	var succeeded, failed int
	var err error
	if len(edits) >= s.cfg.Performance.BatchSize {
		succeeded, failed, err = s.editObservationsBatch(ctx, op, edits, combine)
	} else {
		succeeded, failed, err = s.editObservationsOneByOne(ctx, op, edits, combine)
	}
	if err == nil {
		s.searchCache.Clear()
	}
	return perfFor(start, len(edits), succeeded, 0, failed), err
}

// editObservationsOneByOne is the small-set path (spec §4.7): one
// SELECT then one UPDATE per edit, all within a single transaction.
func (s *Store) editObservationsOneByOne(ctx context.Context, op string, edits []types.ObservationEdit, combine func(base, incoming []codec.Block) []codec.Block) (succeeded, failed int, err error) {
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		selectStmt, err := tx.PrepareContext(ctx, `SELECT observations_blob FROM entities WHERE name = ?`)
		if err != nil {
			return wrapDBError(op, err)
		}
		defer func() { _ = selectStmt.Close() }()

		updateStmt, err := tx.PrepareContext(ctx, `
			UPDATE entities SET observations_blob = ?, observations_text = ?, updated_at = ? WHERE name = ?
		`)
		if err != nil {
			return wrapDBError(op, err)
		}
		defer func() { _ = updateStmt.Close() }()

		for _, edit := range edits {
			var blob []byte
			scanErr := selectStmt.QueryRowContext(ctx, edit.EntityName).Scan(&blob)
			if scanErr != nil {
				if scanErr == sql.ErrNoRows {
					failed++
					continue
				}
				return wrapDBError(op, scanErr)
			}

			existing, decErr := codec.Decode(blob)
			if decErr != nil {
				return decErr
			}
			merged := combine(existing, edit.Observations)

			newBlob, encErr := codec.Encode(merged, s.cfg.Performance.CompressionEnabled)
			if encErr != nil {
				return encErr
			}
			if _, execErr := updateStmt.ExecContext(ctx, newBlob, observationsText(merged), time.Now().UTC(), edit.EntityName); execErr != nil {
				return wrapDBError(op, execErr)
			}
			succeeded++
			s.entityCache.Delete(strings.ToLower(edit.EntityName))
		}
		return nil
	})
	return succeeded, failed, err
}

// editObservationsBatch is the large-set path (spec §4.7 "batch variant
// that pre-fetches all affected rows in one IN (…) query"): one query
// loads every named entity's current blob into a map, then each edit is
// applied and written back row by row within the same transaction —
// one round trip for the reads instead of len(edits).
func (s *Store) editObservationsBatch(ctx context.Context, op string, edits []types.ObservationEdit, combine func(base, incoming []codec.Block) []codec.Block) (succeeded, failed int, err error) {
	names := make([]string, len(edits))
	for i, e := range edits {
		names[i] = e.EntityName
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		placeholders := make([]string, len(names))
		args := make([]interface{}, len(names))
		for i, n := range names {
			placeholders[i] = "?"
			args[i] = n
		}
		rows, queryErr := tx.QueryContext(ctx, `
			SELECT name, observations_blob FROM entities WHERE name IN (`+strings.Join(placeholders, ",")+`)
		`, args...)
		if queryErr != nil {
			return wrapDBError(op, queryErr)
		}
		current := make(map[string][]byte, len(names))
		for rows.Next() {
			var name string
			var blob []byte
			if scanErr := rows.Scan(&name, &blob); scanErr != nil {
				_ = rows.Close()
				return wrapDBError(op, scanErr)
			}
			current[strings.ToLower(name)] = blob
		}
		if rowsErr := rows.Err(); rowsErr != nil {
			_ = rows.Close()
			return wrapDBError(op, rowsErr)
		}
		_ = rows.Close()

		updateStmt, err := tx.PrepareContext(ctx, `
			UPDATE entities SET observations_blob = ?, observations_text = ?, updated_at = ? WHERE name = ?
		`)
		if err != nil {
			return wrapDBError(op, err)
		}
		defer func() { _ = updateStmt.Close() }()

		for _, edit := range edits {
			blob, ok := current[strings.ToLower(edit.EntityName)]
			if !ok {
				failed++
				continue
			}
			existing, decErr := codec.Decode(blob)
			if decErr != nil {
				return decErr
			}
			merged := combine(existing, edit.Observations)

			newBlob, encErr := codec.Encode(merged, s.cfg.Performance.CompressionEnabled)
			if encErr != nil {
				return encErr
			}
			if _, execErr := updateStmt.ExecContext(ctx, newBlob, observationsText(merged), time.Now().UTC(), edit.EntityName); execErr != nil {
				return wrapDBError(op, execErr)
			}
			current[strings.ToLower(edit.EntityName)] = newBlob
			succeeded++
			s.entityCache.Delete(strings.ToLower(edit.EntityName))
		}
		return nil
	})
	return succeeded, failed, err
}
