package sqlite

import (
	"strings"
	"time"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/codec"
	"github.com/OneTrueJASH/Mem100X-sub000/internal/types"
)

// rankingWeights are the fixed contribution weights that make up a
// RankedEntity's score (spec §4.6 "ranking"). Each contributing term also
// appends a one-line explanation so callers can see why a result scored
// the way it did.
const (
	weightFTSMatch     = 1.0
	weightSubstring    = 0.3
	weightNameMatch    = 0.6
	weightProminence   = 0.3
	weightUsage        = 0.2
	weightRecency      = 0.15
	weightIntentBoost  = 0.25
	weightContextBoost = 0.2

	// minRelevance is the floor below which a candidate is dropped before
	// relation expansion (spec §4.6: "Results falling below a minimum
	// relevance threshold are dropped").
	minRelevance = 0.01
)

// scoreEntity computes a RankedEntity's composite score from its raw FTS
// rank (more negative is a better match in SQLite's bm25-style rank()),
// the entity's own prominence/recency/usage attributes, and the caller's
// intent/context hints. viaFallback marks candidates that arrived through
// the substring scan, which carries no bm25 signal but is still a real
// match the threshold must not starve out.
func scoreEntity(e types.Entity, ftsRank float64, req types.SearchRequest, viaFallback bool) types.RankedEntity {
	var score float64
	var explain []string

	if ftsRank != 0 {
		contribution := weightFTSMatch / (1 + absFloat(ftsRank))
		score += contribution
		explain = append(explain, "fts match")
	} else if viaFallback {
		score += weightSubstring
		explain = append(explain, "substring match")
	}

	if strings.EqualFold(e.Name, req.Query) {
		score += weightNameMatch
		explain = append(explain, "exact name match")
	} else if strings.Contains(strings.ToLower(e.Name), strings.ToLower(req.Query)) {
		score += weightNameMatch * 0.5
		explain = append(explain, "partial name match")
	}

	if e.ProminenceScore > 0 {
		score += weightProminence * clamp01(e.ProminenceScore)
		explain = append(explain, "prominence boost")
	}

	if e.AccessCount > 0 {
		score += weightUsage * clamp01(float64(e.AccessCount)/100)
		explain = append(explain, "usage boost")
	}

	if recency := recencyFactor(e.LastAccessed, e.UpdatedAt); recency > 0 {
		score += weightRecency * recency
		explain = append(explain, "recency boost")
	}

	switch req.Intent {
	case types.IntentFind, types.IntentVerify:
		if strings.EqualFold(e.Name, req.Query) {
			score += weightIntentBoost
			explain = append(explain, "intent:"+string(req.Intent))
		}
	case types.IntentBrowse, types.IntentExplore:
		score += weightIntentBoost * 0.4
		explain = append(explain, "intent:"+string(req.Intent))
	}

	if req.Context != nil {
		score, explain = applyContextBoosts(e, req.Context, score, explain)
	}

	return types.RankedEntity{Entity: e, Score: score, Explanation: explain}
}

// recencyFactor maps last_accessed (falling back to updated_at) to [0, 1]:
// touched within the last day scores full, decaying linearly to zero at
// thirty days out.
func recencyFactor(lastAccessed, updatedAt time.Time) float64 {
	ts := lastAccessed
	if ts.IsZero() {
		ts = updatedAt
	}
	if ts.IsZero() {
		return 0
	}
	age := time.Since(ts)
	if age <= 24*time.Hour {
		return 1
	}
	const horizon = 30 * 24 * time.Hour
	if age >= horizon {
		return 0
	}
	return 1 - float64(age-24*time.Hour)/float64(horizon-24*time.Hour)
}

// applyContextBoosts adds one weightContextBoost class per matching hint
// (spec §4.6 "Context boost"): membership in currentEntities, a
// recentSearches term in the name, entity_type consistent with
// userContext, and conversationContext appearing in the name or a text
// observation.
func applyContextBoosts(e types.Entity, ctx *types.SearchContext, score float64, explain []string) (float64, []string) {
	for _, name := range ctx.CurrentEntities {
		if strings.EqualFold(name, e.Name) {
			score += weightContextBoost
			explain = append(explain, "active entity")
			break
		}
	}
	for _, term := range ctx.RecentSearches {
		if term != "" && strings.Contains(strings.ToLower(e.Name), strings.ToLower(term)) {
			score += weightContextBoost
			explain = append(explain, "recent search")
			break
		}
	}
	if ctx.UserContext != "" && strings.Contains(strings.ToLower(ctx.UserContext), strings.ToLower(e.EntityType)) {
		score += weightContextBoost
		explain = append(explain, "user context")
	}
	if ctx.ConversationContext != "" && entityMentions(e, ctx.ConversationContext) {
		score += weightContextBoost
		explain = append(explain, "conversation context")
	}
	return score, explain
}

// entityMentions reports whether needle appears in the entity's name or
// any of its text observations, case-insensitively.
func entityMentions(e types.Entity, needle string) bool {
	needle = strings.ToLower(needle)
	if strings.Contains(strings.ToLower(e.Name), needle) {
		return true
	}
	for _, b := range e.Observations {
		if b.Kind == codec.KindText && strings.Contains(strings.ToLower(b.Text), needle) {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
