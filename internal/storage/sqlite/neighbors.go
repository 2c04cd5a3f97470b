package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// GetNeighbors runs a breadth-first traversal from startName out to
// maxDepth hops, honoring dir (outgoing/incoming/both) and an optional
// relationType filter at every step (spec §4.10). Depth must be in
// [1, 5]; a caller asking for a depth outside that range gets a
// ValidationError rather than a silently-clamped result, so the mistake
// is visible rather than masked. When includeRelations is false, the
// traversal still uses relations to find neighbors but the result's
// Relations field is left empty, sparing the caller a payload it didn't
// ask for.
func (s *Store) GetNeighbors(ctx context.Context, startName string, maxDepth int, dir types.Direction, relationType string, includeRelations bool) (types.GraphResult, types.Performance, error) {
	start := time.Now()
	if strings.TrimSpace(startName) == "" {
		return types.GraphResult{}, types.Performance{}, types.NewValidationError("startName", "must not be empty")
	}
	if maxDepth < 1 || maxDepth > 5 {
		return types.GraphResult{}, types.Performance{}, types.NewValidationError("maxDepth", "must be between 1 and 5")
	}

	db, release, err := s.pool.acquire(ctx, s.writer)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}
	defer release()

	visited := map[string]bool{strings.ToLower(startName): true}
	frontier := []string{strings.ToLower(startName)}
	var allRelations []types.Relation

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		rels, err := s.relationsTouching(ctx, db, frontier, dir, relationType)
		if err != nil {
			return types.GraphResult{}, types.Performance{}, err
		}

		var next []string
		for _, r := range rels {
			allRelations = append(allRelations, r)
			for _, candidate := range []string{strings.ToLower(r.From), strings.ToLower(r.To)} {
				if !visited[candidate] {
					visited[candidate] = true
					next = append(next, candidate)
				}
			}
		}
		frontier = next
	}

	names := make([]string, 0, len(visited))
	for n := range visited {
		names = append(names, n)
	}
	entities, err := s.hydrateEntities(ctx, db, names)
	if err != nil {
		return types.GraphResult{}, types.Performance{}, err
	}

	ranked := make([]types.RankedEntity, len(entities))
	for i, e := range entities {
		ranked[i] = types.RankedEntity{Entity: e}
	}

	result := types.GraphResult{Entities: ranked, Total: len(ranked)}
	if includeRelations {
		result.Relations = dedupRelations(allRelations)
	}
	return result, perfFor(start, 1, 1, 0, 0), nil
}

func dedupRelations(relations []types.Relation) []types.Relation {
	seen := make(map[string]bool, len(relations))
	out := make([]types.Relation, 0, len(relations))
	for _, r := range relations {
		key := r.From + "\x00" + r.To + "\x00" + r.RelationType
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
