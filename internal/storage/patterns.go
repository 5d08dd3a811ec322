package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pipewise-ai/pipewise/internal/confidence"
	"github.com/pipewise-ai/pipewise/internal/model"
)

const patternColumns = `id, pattern_key, description, context, action, success_count, failure_count,
	success_rate, confidence_score, avg_impact, observation_count, learned_rule, metadata,
	first_seen_at, last_updated_at`

// PatternObservation is one outcome to fold into a pattern's statistics.
type PatternObservation struct {
	Key         string
	Context     string
	Action      string
	Description string
	Success     bool
	Impact      *float64 // optional measured effect; folded into a running mean
}

// ObservePattern atomically folds one observation into the pattern row for
// obs.Key, creating the row on first observation. The read-modify-write runs
// in a transaction holding a row lock on the pattern, and the whole
// transaction is retried on serialization conflicts, so concurrent observers
// on the same key never lose updates.
func (db *DB) ObservePattern(ctx context.Context, obs PatternObservation) (model.Pattern, error) {
	var p model.Pattern
	err := WithRetry(ctx, 3, 10*time.Millisecond, func() error {
		return db.observePatternTx(ctx, obs, &p)
	})
	if err != nil {
		return model.Pattern{}, err
	}
	return p, nil
}

func (db *DB) observePatternTx(ctx context.Context, obs PatternObservation, out *model.Pattern) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin observe tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Ensure the row exists, then lock it. The ON CONFLICT no-op keeps the
	// lazy create race-free across concurrent first observers.
	if _, err := tx.Exec(ctx,
		`INSERT INTO deal_patterns (pattern_key, description, context, action)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (pattern_key) DO NOTHING`,
		obs.Key, obs.Description, obs.Context, obs.Action,
	); err != nil {
		return fmt.Errorf("storage: ensure pattern %s: %w", obs.Key, err)
	}

	var p model.Pattern
	err = tx.QueryRow(ctx,
		`SELECT `+patternColumns+` FROM deal_patterns WHERE pattern_key = $1 FOR UPDATE`,
		obs.Key,
	).Scan(patternFields(&p)...)
	if err != nil {
		return fmt.Errorf("storage: lock pattern %s: %w", obs.Key, err)
	}

	if obs.Success {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	p.ObservationCount = p.SuccessCount + p.FailureCount
	if obs.Impact != nil {
		// Incremental mean; stable without storing individual impacts.
		p.AvgImpact += (*obs.Impact - p.AvgImpact) / float64(p.ObservationCount)
	}

	rate, score := confidence.Estimate(p.SuccessCount, p.FailureCount)
	p.SuccessRate = &rate
	p.ConfidenceScore = score
	desc := p.Description
	if desc == "" {
		desc = obs.Description
	}
	p.LearnedRule = confidence.Rule(desc, p.SuccessCount, p.FailureCount)

	err = tx.QueryRow(ctx,
		`UPDATE deal_patterns SET
		    success_count = $2,
		    failure_count = $3,
		    success_rate = $4,
		    confidence_score = $5,
		    avg_impact = $6,
		    observation_count = $7,
		    learned_rule = $8,
		    description = $9,
		    last_updated_at = now()
		 WHERE pattern_key = $1
		 RETURNING `+patternColumns,
		obs.Key, p.SuccessCount, p.FailureCount, p.SuccessRate, p.ConfidenceScore,
		p.AvgImpact, p.ObservationCount, p.LearnedRule, desc,
	).Scan(patternFields(out)...)
	if err != nil {
		return fmt.Errorf("storage: update pattern %s: %w", obs.Key, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit observe tx: %w", err)
	}
	return nil
}

// GetPattern retrieves one pattern by key.
func (db *DB) GetPattern(ctx context.Context, key string) (model.Pattern, error) {
	var p model.Pattern
	err := db.pool.QueryRow(ctx,
		`SELECT `+patternColumns+` FROM deal_patterns WHERE pattern_key = $1`, key,
	).Scan(patternFields(&p)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Pattern{}, ErrNotFound
		}
		return model.Pattern{}, fmt.Errorf("storage: get pattern: %w", err)
	}
	return p, nil
}

// ListPatterns returns patterns at or above minConfidence, strongest first
// (confidence weighted by success rate). A non-empty contextFilter keeps
// patterns stored under that context or under the all_stages wildcard.
func (db *DB) ListPatterns(ctx context.Context, contextFilter string, minConfidence float64, limit int) ([]model.Pattern, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + patternColumns + `
	      FROM deal_patterns
	      WHERE confidence_score >= $1 AND observation_count > 0`
	args := []any{minConfidence}
	if contextFilter != "" {
		q += ` AND (context = $2 OR context = $3)`
		args = append(args, contextFilter, model.ContextAllStages)
	}
	q += fmt.Sprintf(` ORDER BY confidence_score * COALESCE(success_rate, 0) DESC, observation_count DESC LIMIT %d`, limit)

	rows, err := db.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list patterns: %w", err)
	}
	defer rows.Close()

	var out []model.Pattern
	for rows.Next() {
		var p model.Pattern
		if err := rows.Scan(patternFields(&p)...); err != nil {
			return nil, fmt.Errorf("storage: scan pattern: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountPatterns returns the number of patterns with at least one observation.
func (db *DB) CountPatterns(ctx context.Context) (int64, error) {
	var n int64
	if err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM deal_patterns WHERE observation_count > 0`,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count patterns: %w", err)
	}
	return n, nil
}

func patternFields(p *model.Pattern) []any {
	return []any{
		&p.ID, &p.Key, &p.Description, &p.Context, &p.Action,
		&p.SuccessCount, &p.FailureCount, &p.SuccessRate, &p.ConfidenceScore,
		&p.AvgImpact, &p.ObservationCount, &p.LearnedRule, &p.Metadata,
		&p.FirstSeenAt, &p.LastUpdatedAt,
	}
}
