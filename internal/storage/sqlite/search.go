package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/codec"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// SearchNodes runs the full search pipeline (spec §4.6): a cache check by
// canonical request fingerprint, a primary FTS5 query, a substring
// fallback when FTS finds nothing (short or punctuation-heavy queries
// often tokenize to nothing useful), hydration, ranking, and relation
// expansion.
func (s *Store) SearchNodes(ctx context.Context, req types.SearchRequest) (types.GraphResult, types.Performance, error) {
	start := time.Now()
	if req.Limit <= 0 {
		req.Limit = 50
	}

	fingerprint, fpErr := fingerprintRequest(req)
	if fpErr == nil {
		if cached, ok := s.searchCache.Get(fingerprint); ok {
			return *cached, perfFor(start, 1, 1, 0, 0), nil
		}
	}

	db, release, err := s.pool.acquire(ctx, s.writer)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}
	defer release()

	names, ranks, err := s.ftsQuery(ctx, db, req)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}
	viaFallback := false
	if len(names) == 0 {
		viaFallback = true
		names, ranks, err = s.substringFallback(ctx, db, req)
		if err != nil {
			return types.GraphResult{}, types.Performance{}, err
		}
	}

	entities, err := s.hydrateEntities(ctx, db, names)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}
	entities = filterByContentType(entities, req.ContentTypes)

	ranked := make([]types.RankedEntity, 0, len(entities))
	for _, e := range entities {
		candidate := scoreEntity(e, ranks[strings.ToLower(e.Name)], req, viaFallback)
		if candidate.Score < minRelevance {
			continue
		}
		ranked = append(ranked, candidate)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > req.Limit {
		ranked = ranked[:req.Limit]
	}

	resultNames := make([]string, len(ranked))
	for i, r := range ranked {
		resultNames[i] = r.Name
	}
	relations, err := s.relationsTouching(ctx, db, resultNames, types.DirectionBoth, "")
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}

	result := types.GraphResult{Entities: ranked, Relations: relations, Total: len(ranked)}
	if fpErr == nil {
		s.searchCache.Set(fingerprint, &result)
	}
	return result, perfFor(start, 1, 1, 0, 0), nil
}

// ftsQuery runs the primary full-text query against entities_fts and
// returns matched names alongside their bm25 rank, keyed lowercase.
func (s *Store) ftsQuery(ctx context.Context, db *sql.DB, req types.SearchRequest) ([]string, map[string]float64, error) {
	matchExpr := ftsMatchExpr(req.Query, req.Mode)
	if matchExpr == "" {
		return nil, nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT e.name, bm25(entities_fts) AS rank
		FROM entities_fts
		JOIN entities e ON e.rowid = entities_fts.rowid
		WHERE entities_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, matchExpr, req.Limit*2)
	if err != nil {
		// A malformed MATCH expression (stray punctuation in the raw
		// query) falls through to the substring scan rather than failing
		// the whole search.
		return nil, nil, nil
	}
	defer func() { _ = rows.Close() }()

	ranks := make(map[string]float64)
	var names []string
	for rows.Next() {
		var name string
		var rank float64
		if err := rows.Scan(&name, &rank); err != nil {
			return nil, nil, wrapDBError("search_nodes", err)
		}
		names = append(names, name)
		ranks[strings.ToLower(name)] = rank
	}
	return names, ranks, rows.Err()
}

// ftsMatchExpr builds an FTS5 MATCH expression from the raw query,
// quoting each token so punctuation in user input can't break the query
// syntax. Exact mode wraps the whole phrase in quotes; fuzzy/auto
// OR-joins the tokens, each with a trailing prefix wildcard.
func ftsMatchExpr(query string, mode types.SearchMode) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return ""
	}
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return ""
	}

	quote := func(tok string) string {
		return `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}

	if mode == types.SearchModeExact {
		return quote(query)
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = quote(f) + "*"
	}
	return strings.Join(parts, " OR ")
}

// substringFallback scans observations_text and name with a LIKE filter
// when the FTS query tokenizes to nothing usable (spec §4.6 "fallback
// substring scan"). It never ranks better than FTS results since it has
// no bm25 score to contribute — rank 0 means "no FTS signal" in
// scoreEntity, not "neutral".
func (s *Store) substringFallback(ctx context.Context, db *sql.DB, req types.SearchRequest) ([]string, map[string]float64, error) {
	needle := "%" + strings.ToLower(req.Query) + "%"
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM entities
		WHERE LOWER(name) LIKE ? OR LOWER(observations_text) LIKE ?
		LIMIT ?
	`, needle, needle, req.Limit)
	if err != nil {
		return nil, nil, wrapDBError("search_nodes_fallback", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, nil, wrapDBError("search_nodes_fallback", err)
		}
		names = append(names, name)
	}
	return names, map[string]float64{}, rows.Err()
}

// hydrateEntities loads and decodes full entity rows for the given
// names, consulting the entity cache before the database.
func (s *Store) hydrateEntities(ctx context.Context, db *sql.DB, names []string) ([]types.Entity, error) {
	out := make([]types.Entity, 0, len(names))
	for _, name := range names {
		if cached, ok := s.entityCache.Get(strings.ToLower(name)); ok {
			out = append(out, *cached)
			continue
		}

		var e types.Entity
		var blob []byte
		var lastAccessed sql.NullTime
		err := db.QueryRowContext(ctx, `
			SELECT name, entity_type, observations_blob, created_at, updated_at,
			       access_count, last_accessed, prominence, importance
			FROM entities WHERE name = ?
		`, name).Scan(&e.Name, &e.EntityType, &blob, &e.CreatedAt, &e.UpdatedAt,
			&e.AccessCount, &lastAccessed, &e.ProminenceScore, &e.ImportanceWeight)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, wrapDBError("search_nodes_hydrate", err)
		}
		if lastAccessed.Valid {
			e.LastAccessed = lastAccessed.Time
		}
		blocks, decErr := codec.Decode(blob)
		if decErr != nil {
			return nil, decErr
		}
		e.Observations = blocks

		s.entityCache.Set(strings.ToLower(e.Name), &e)
		out = append(out, e)

		if s.cfg.Aging.Enabled {
			_ = s.touchAccess(ctx, e.Name)
		}
	}
	return out, nil
}

// filterByContentType drops candidates whose observation lists contain
// none of the allowed variants (spec §4.6 stage 6). Surviving entities
// keep their full observation lists — the filter gates membership, it
// doesn't redact content.
func filterByContentType(entities []types.Entity, kinds []codec.Kind) []types.Entity {
	if len(kinds) == 0 {
		return entities
	}
	allowed := make(map[codec.Kind]bool, len(kinds))
	for _, k := range kinds {
		allowed[k] = true
	}

	out := make([]types.Entity, 0, len(entities))
	for _, e := range entities {
		for _, b := range e.Observations {
			if allowed[b.Kind] {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// fingerprintRequest derives a stable cache key from the parts of req
// that affect the result set, via the same structural hashing the
// teacher's query cache uses for its keys.
func fingerprintRequest(req types.SearchRequest) (string, error) {
	key := struct {
		Query        string
		Limit        int
		Mode         types.SearchMode
		ContentTypes []codec.Kind
		Intent       types.Intent
		Context      *types.SearchContext
	}{req.Query, req.Limit, req.Mode, req.ContentTypes, req.Intent, req.Context}

	h, err := hashstructure.Hash(key, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("sqlite: fingerprint search request: %w", err)
	}
	return fmt.Sprintf("search:%x", h), nil
}
