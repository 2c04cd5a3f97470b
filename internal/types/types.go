// Package types holds the value types shared between the storage engine
// and the core facade: entities, relations, search requests/results, and
// the stats/path records returned by the operation surface.
package types

import (
	"time"

	"github.com/OneTrueJASH/Mem100X-sub000/internal/codec"
)

// Entity is a named node with a type and an ordered list of content
// observations (spec §3).
type Entity struct {
	Name        string        `json:"name"`
	EntityType  string        `json:"entityType"`
	Observations []codec.Block `json:"observations"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`

	// Optional aging attributes.
	AccessCount      int       `json:"accessCount,omitempty"`
	LastAccessed     time.Time `json:"lastAccessed,omitempty"`
	ProminenceScore  float64   `json:"prominenceScore,omitempty"`
	ImportanceWeight float64   `json:"importanceWeight,omitempty"`
}

// Relation is a typed, directed edge between two entities, unique by
// (From, To, RelationType) (spec §3). Endpoint names are stored
// lowercased — relation identity is case-insensitive end to end.
type Relation struct {
	ID           int64     `json:"id,omitempty"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	RelationType string    `json:"relationType"`
	CreatedAt    time.Time `json:"createdAt"`

	AccessCount     int       `json:"accessCount,omitempty"`
	LastAccessed    time.Time `json:"lastAccessed,omitempty"`
	ProminenceScore float64   `json:"prominenceScore,omitempty"`
}

// ObservationEdit is the (entity, contents) pair used by add_observations
// and delete_observations.
type ObservationEdit struct {
	EntityName   string
	Observations []codec.Block
}

// SearchMode narrows how the query string is interpreted during parsing
// (C6 stage 2).
type SearchMode string

const (
	SearchModeAuto   SearchMode = "auto"
	SearchModeExact  SearchMode = "exact"
	SearchModeFuzzy  SearchMode = "fuzzy"
)

// Intent is a caller-supplied hint that nudges ranking (C6 ranking
// "Intent boost").
type Intent string

const (
	IntentFind    Intent = "find"
	IntentBrowse  Intent = "browse"
	IntentExplore Intent = "explore"
	IntentVerify  Intent = "verify"
)

// SearchContext carries the semantic hints used by the context boost
// (C6 ranking): recently active entities, recent search terms, a
// free-form user-context tag, and ambient conversation text.
type SearchContext struct {
	CurrentEntities    []string `json:"currentEntities,omitempty"`
	RecentSearches     []string `json:"recentSearches,omitempty"`
	UserContext        string   `json:"userContext,omitempty"`
	ConversationContext string  `json:"conversationContext,omitempty"`
}

// SearchRequest is the input to search_nodes (spec §4.6).
type SearchRequest struct {
	Query        string
	Limit        int
	Context      *SearchContext
	Mode         SearchMode
	ContentTypes []codec.Kind // optional content-type filter
	Intent       Intent
}

// Direction filters which side of a relation matches the start name
// during neighbor/path traversal (spec §4.10).
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// RankedEntity decorates an Entity with its ranking score and a short
// human-readable explanation of how the score was composed (C6 "ranking
// contributions... documented per result").
type RankedEntity struct {
	Entity
	Score       float64  `json:"score"`
	Explanation []string `json:"explanation,omitempty"`
}

// GraphResult is the shared read-operation result shape: entities plus
// the relations touching them, with optional pagination metadata.
type GraphResult struct {
	Entities  []RankedEntity `json:"entities"`
	Relations []Relation     `json:"relations"`
	Total     int            `json:"total,omitempty"`
	Offset    int            `json:"offset,omitempty"`
}

// PathResult is the result of find_shortest_path (spec §4.10).
type PathResult struct {
	Found         bool     `json:"found"`
	Path          []string `json:"path,omitempty"`
	Distance      int      `json:"distance"`
	NodesExplored int      `json:"nodesExplored"`
}

// CacheStats mirrors cache.Stats without importing the cache package
// from types, keeping this package dependency-light for callers that
// only need the value shapes.
type CacheStats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// BloomStats mirrors bloomfilter.Stats for the same reason.
type BloomStats struct {
	Size            uint32  `json:"size"`
	NumHashes       uint32  `json:"numHashes"`
	NonZeroCounters uint32  `json:"nonZeroCounters"`
	SaturatedSlots  uint32  `json:"saturatedSlots"`
	Load            float64 `json:"load"`
}

// BreakerStats reports the circuit breaker's current state (spec §4.8).
type BreakerStats struct {
	State               string `json:"state"`
	Counts              string `json:"counts"`
	ConsecutiveFailures uint32 `json:"consecutiveFailures"`
}

// Stats is the result of get_stats (spec §4.9).
type Stats struct {
	EntityCount   int          `json:"entityCount"`
	RelationCount int          `json:"relationCount"`
	EntityCache   CacheStats   `json:"entityCache"`
	SearchCache   CacheStats   `json:"searchCache"`
	Bloom         BloomStats   `json:"bloom"`
	Breaker       BreakerStats `json:"breaker"`
	DBSizeBytes   int64        `json:"dbSizeBytes"`
}

// Performance is the duration/throughput envelope attached to the result
// of each create, delete, observation, search, read, neighbor and path
// operation (spec §6 "performance record"); get_stats returns none.
type Performance struct {
	DurationMS float64  `json:"durationMs"`
	RatePerSec *float64 `json:"ratePerSec,omitempty"`
	Counts     Counts   `json:"counts"`
}

// Counts summarizes how many items an operation touched.
type Counts struct {
	Requested int `json:"requested"`
	Succeeded int `json:"succeeded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
