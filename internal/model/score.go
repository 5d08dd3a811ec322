package model

import (
	"time"

	"github.com/google/uuid"
)

// FrameworkScore is one evaluation of a deal against a qualification
// framework (MEDDIC, BANT, a custom adapter). Scores form an immutable time
// series per deal; re-scoring appends a new row.
type FrameworkScore struct {
	ID              uuid.UUID      `json:"id"`
	DealID          uuid.UUID      `json:"deal_id"`
	Framework       string         `json:"framework"`
	OverallScore    int            `json:"overall_score"` // 0-100
	DimensionScores map[string]int `json:"dimension_scores"`
	Gaps            []string       `json:"gaps"`
	Recommendations []string       `json:"recommendations"`
	Reasoning       string         `json:"reasoning"`
	AgentName       string         `json:"agent_name"`
	CreatedAt       time.Time      `json:"created_at"`
}
