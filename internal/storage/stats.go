package storage

import (
	"context"
	"fmt"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// MemoryStats summarizes both memory systems.
type MemoryStats struct {
	InteractionCount int64           `json:"interaction_count"`
	PatternCount     int64           `json:"pattern_count"`
	AvgConfidence    float64         `json:"avg_confidence"`
	TopPatterns      []model.Pattern `json:"top_patterns"`
}

// GetMemoryStats returns episodic and semantic counts, the mean confidence
// over observed patterns, and the five strongest high-confidence patterns.
func (db *DB) GetMemoryStats(ctx context.Context) (MemoryStats, error) {
	var stats MemoryStats
	err := db.pool.QueryRow(ctx,
		`SELECT
		    (SELECT COUNT(*) FROM deal_interactions),
		    (SELECT COUNT(*) FROM deal_patterns WHERE observation_count > 0),
		    (SELECT COALESCE(AVG(confidence_score), 0) FROM deal_patterns WHERE observation_count > 0)`,
	).Scan(&stats.InteractionCount, &stats.PatternCount, &stats.AvgConfidence)
	if err != nil {
		return MemoryStats{}, fmt.Errorf("storage: memory stats: %w", err)
	}

	top, err := db.topPatterns(ctx, 0.5, 5)
	if err != nil {
		return MemoryStats{}, err
	}
	stats.TopPatterns = top
	return stats, nil
}

func (db *DB) topPatterns(ctx context.Context, minConfidence float64, limit int) ([]model.Pattern, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+patternColumns+`
		 FROM deal_patterns
		 WHERE confidence_score >= $1 AND observation_count > 0
		 ORDER BY success_rate DESC NULLS LAST, observation_count DESC
		 LIMIT $2`,
		minConfidence, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: top patterns: %w", err)
	}
	defer rows.Close()

	var out []model.Pattern
	for rows.Next() {
		var p model.Pattern
		if err := rows.Scan(patternFields(&p)...); err != nil {
			return nil, fmt.Errorf("storage: scan top pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
