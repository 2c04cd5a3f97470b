package sqlite

import (
	"context"
	"time"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// OpenNodes hydrates a specific, caller-named set of entities (spec §4.6
// "open_nodes"). Each name is first checked against the bloom filter: a
// definite miss skips the database round trip entirely, since the filter
// is a superset of what's actually stored (spec invariant P3).
func (s *Store) OpenNodes(ctx context.Context, names []string) (types.GraphResult, types.Performance, error) {
	start := time.Now()
	if len(names) == 0 {
		return types.GraphResult{}, perfFor(start, 0, 0, 0, 0), nil
	}

	db, release, err := s.pool.acquire(ctx, s.writer)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}
	defer release()

	var present []string
	skipped := 0
	for _, name := range names {
		s.bloomMu.Lock()
		maybePresent := s.bloom.Contains(name)
		s.bloomMu.Unlock()
		if !maybePresent {
			skipped++
			continue
		}
		present = append(present, name)
	}

	entities, err := s.hydrateEntities(ctx, db, present)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}

	resultNames := make([]string, len(entities))
	ranked := make([]types.RankedEntity, len(entities))
	for i, e := range entities {
		ranked[i] = types.RankedEntity{Entity: e}
		resultNames[i] = e.Name
	}
	relations, err := s.relationsTouching(ctx, db, resultNames, types.DirectionBoth, "")
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}

	result := types.GraphResult{Entities: ranked, Relations: relations, Total: len(ranked)}
	return result, perfFor(start, len(names), len(entities), skipped, len(names)-len(entities)-skipped), nil
}

// ReadGraph returns a page of the full entity set ordered by name, along
// with every relation touching an entity on that page, including ones
// whose other endpoint is off the page (spec §4.6 "read_graph"). offset/
// limit give callers a stable way to page through a large graph; limit
// <= 0 defaults to 100.
func (s *Store) ReadGraph(ctx context.Context, offset, limit int) (types.GraphResult, types.Performance, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	db, release, err := s.pool.acquire(ctx, s.writer)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}
	defer release()

	rows, err := db.QueryContext(ctx, `SELECT name FROM entities ORDER BY name LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, wrapDBError("read_graph", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return types.GraphResult{}, types.Performance{}, wrapDBError("read_graph", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return types.GraphResult{}, types.Performance{}, wrapDBError("read_graph", err)
	}
	_ = rows.Close()

	entities, err := s.hydrateEntities(ctx, db, names)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}

	ranked := make([]types.RankedEntity, len(entities))
	for i, e := range entities {
		ranked[i] = types.RankedEntity{Entity: e}
	}

	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entities`).Scan(&total); err != nil {
		return types.GraphResult{}, types.Performance{}, wrapDBError("read_graph", err)
	}

	relations, err := s.relationsTouching(ctx, db, names, types.DirectionBoth, "")
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}

	result := types.GraphResult{Entities: ranked, Relations: relations, Total: total, Offset: offset}
	return result, perfFor(start, limit, len(entities), 0, 0), nil
}
