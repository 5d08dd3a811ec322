package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContextAllStages is the wildcard pattern context: a pattern stored under it
// is recalled for every query context.
const ContextAllStages = "all_stages"

// Pattern is one semantic memory record: running statistics for a
// (context, action) pair aggregated across all deals.
//
// Invariants maintained by the aggregator on every observation:
//
//	ObservationCount == SuccessCount + FailureCount
//	SuccessRate == SuccessCount / ObservationCount   (nil when count is zero)
//	ConfidenceScore ∈ [0,1], non-decreasing in ObservationCount for a fixed rate
type Pattern struct {
	ID               uuid.UUID      `json:"id"`
	Key              string         `json:"pattern_key"`
	Description      string         `json:"description"`
	Context          string         `json:"context"`
	Action           string         `json:"action"`
	SuccessCount     int64          `json:"success_count"`
	FailureCount     int64          `json:"failure_count"`
	SuccessRate      *float64       `json:"success_rate,omitempty"`
	ConfidenceScore  float64        `json:"confidence_score"`
	AvgImpact        float64        `json:"avg_impact"`
	ObservationCount int64          `json:"observation_count"`
	LearnedRule      string         `json:"learned_rule"`
	Metadata         map[string]any `json:"metadata"`
	FirstSeenAt      time.Time      `json:"first_seen_at"`
	LastUpdatedAt    time.Time      `json:"last_updated_at"`
}

// PatternKey derives the unique key for a (context, action) pair:
// lowercase, space-separated words joined with underscores.
func PatternKey(context, action string) string {
	key := context + "_" + action
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, " ", "_")
}

// MatchesContext reports whether a pattern stored under stored applies to a
// query context. The wildcard ContextAllStages matches everything; any other
// stored context matches only itself.
func MatchesContext(stored, query string) bool {
	return stored == ContextAllStages || stored == query
}
