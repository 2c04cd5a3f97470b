package sqlite

import (
	"context"
	"fmt"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// CheckIntegrity runs the user-initiated consistency scan (spec §7
// "Crash recovery"): SQLite's own structural check, the entities/term
// index row-count invariant (P2), and relation endpoint referential
// integrity (P6's steady-state form). Any discrepancy is reported as
// types.ErrStorageCorruption so the caller knows to invoke the recovery
// path (restore from backup, or RebuildIndex/RebuildBloom).
func (s *Store) CheckIntegrity(ctx context.Context) error {
	var verdict string
	if err := s.writer.QueryRowContext(ctx, `PRAGMA quick_check`).Scan(&verdict); err != nil {
		return fmt.Errorf("%w: quick_check: %v", types.ErrStorageCorruption, err)
	}
	if verdict != "ok" {
		return fmt.Errorf("%w: quick_check: %s", types.ErrStorageCorruption, verdict)
	}

	var entityRows, indexRows int
	if err := s.writer.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&entityRows); err != nil {
		return fmt.Errorf("%w: count entities: %v", types.ErrStorageCorruption, err)
	}
	if err := s.writer.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities_fts`).Scan(&indexRows); err != nil {
		return fmt.Errorf("%w: count term index: %v", types.ErrStorageCorruption, err)
	}
	if entityRows != indexRows {
		return fmt.Errorf("%w: term index has %d rows for %d entities", types.ErrStorageCorruption, indexRows, entityRows)
	}

	var orphans int
	if err := s.writer.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM relations r
		WHERE NOT EXISTS (SELECT 1 FROM entities e WHERE e.name = r.from_name)
		   OR NOT EXISTS (SELECT 1 FROM entities e WHERE e.name = r.to_name)
	`).Scan(&orphans); err != nil {
		return fmt.Errorf("%w: scan relation endpoints: %v", types.ErrStorageCorruption, err)
	}
	if orphans > 0 {
		return fmt.Errorf("%w: %d relations reference missing entities", types.ErrStorageCorruption, orphans)
	}

	return nil
}
