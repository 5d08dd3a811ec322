package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pipewise-ai/pipewise/internal/model"
)

const scoreColumns = `id, deal_id, framework, overall_score, dimension_scores, gaps,
	recommendations, reasoning, agent_name, created_at`

// InsertScore appends one framework evaluation. Scores form an immutable
// time series per deal.
func (db *DB) InsertScore(ctx context.Context, s model.FrameworkScore) (model.FrameworkScore, error) {
	if s.DimensionScores == nil {
		s.DimensionScores = map[string]int{}
	}
	if s.Gaps == nil {
		s.Gaps = []string{}
	}
	if s.Recommendations == nil {
		s.Recommendations = []string{}
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO framework_scores (deal_id, framework, overall_score, dimension_scores, gaps, recommendations, reasoning, agent_name)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		s.DealID, s.Framework, s.OverallScore, s.DimensionScores, s.Gaps,
		s.Recommendations, s.Reasoning, s.AgentName,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return model.FrameworkScore{}, fmt.Errorf("storage: insert score: %w", err)
	}
	return s, nil
}

// ListScoresByDeal returns a deal's framework scores, most recent first.
func (db *DB) ListScoresByDeal(ctx context.Context, dealID uuid.UUID, limit int) ([]model.FrameworkScore, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+scoreColumns+`
		 FROM framework_scores
		 WHERE deal_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		dealID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list scores: %w", err)
	}
	defer rows.Close()

	var out []model.FrameworkScore
	for rows.Next() {
		var s model.FrameworkScore
		if err := rows.Scan(
			&s.ID, &s.DealID, &s.Framework, &s.OverallScore, &s.DimensionScores,
			&s.Gaps, &s.Recommendations, &s.Reasoning, &s.AgentName, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan score: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
