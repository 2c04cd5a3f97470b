package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// FindShortestPath runs an unweighted BFS from fromName to toName,
// treating relations as undirected edges, out to maxDepth hops, optionally
// restricted to a single relationType (spec §4.10). A maxDepth outside
// [1, 10] is rejected with a ValidationError.
func (s *Store) FindShortestPath(ctx context.Context, fromName, toName string, maxDepth int, relationType string) (types.PathResult, types.Performance, error) {
	start := time.Now()
	if strings.TrimSpace(fromName) == "" || strings.TrimSpace(toName) == "" {
		return types.PathResult{}, types.Performance{}, types.NewValidationError("fromName/toName", "must not be empty")
	}
	if maxDepth < 1 || maxDepth > 10 {
		return types.PathResult{}, types.Performance{}, types.NewValidationError("maxDepth", "must be between 1 and 10")
	}

	from := strings.ToLower(fromName)
	to := strings.ToLower(toName)
	if from == to {
		// Path entries are lowercased names throughout, including the
		// trivial self-path.
		return types.PathResult{Found: true, Path: []string{from}, Distance: 0, NodesExplored: 1},
			perfFor(start, 1, 1, 0, 0), nil
	}

	db, release, err := s.pool.acquire(ctx, s.writer)
	if err != nil {
		return types.PathResult{}, types.Performance{}, err
	}
	defer release()

	visited := map[string]bool{from: true}
	parent := map[string]string{}
	frontier := []string{from}
	explored := 1

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		rels, err := s.relationsTouching(ctx, db, frontier, types.DirectionBoth, relationType)
		if err != nil {
			return types.PathResult{}, types.Performance{}, err
		}

		var next []string
		for _, r := range rels {
			from1, to1 := strings.ToLower(r.From), strings.ToLower(r.To)
			for _, pair := range [][2]string{{from1, to1}, {to1, from1}} {
				a, b := pair[0], pair[1]
				if !visited[b] {
					visited[b] = true
					parent[b] = a
					explored++
					if b == to {
						return types.PathResult{
							Found:         true,
							Path:          reconstructPath(parent, from, to),
							Distance:      depth + 1,
							NodesExplored: explored,
						}, perfFor(start, 1, 1, 0, 0), nil
					}
					next = append(next, b)
				}
			}
		}
		frontier = next
	}

	return types.PathResult{Found: false, NodesExplored: explored}, perfFor(start, 1, 0, 1, 0), nil
}

func reconstructPath(parent map[string]string, from, to string) []string {
	var rev []string
	cur := to
	for cur != from {
		rev = append(rev, cur)
		cur = parent[cur]
	}
	rev = append(rev, from)

	path := make([]string, len(rev))
	for i, n := range rev {
		path[len(rev)-1-i] = n
	}
	return path
}
