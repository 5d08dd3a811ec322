package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// InsertPrediction appends one model prediction. Immutable time series,
// like framework scores.
func (db *DB) InsertPrediction(ctx context.Context, p model.Prediction) (model.Prediction, error) {
	if p.Features == nil {
		p.Features = map[string]any{}
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO deal_predictions (deal_id, prediction_kind, predicted_value, ci_lower, ci_upper, confidence, model_id, features)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		p.DealID, string(p.Kind), p.PredictedValue, p.CILower, p.CIUpper,
		p.Confidence, p.ModelID, p.Features,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return model.Prediction{}, fmt.Errorf("storage: insert prediction: %w", err)
	}
	return p, nil
}

// ListPredictionsByDeal returns a deal's predictions, most recent first.
func (db *DB) ListPredictionsByDeal(ctx context.Context, dealID uuid.UUID, limit int) ([]model.Prediction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, deal_id, prediction_kind, predicted_value, ci_lower, ci_upper, confidence, model_id, features, created_at
		 FROM deal_predictions
		 WHERE deal_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		dealID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list predictions: %w", err)
	}
	defer rows.Close()

	var out []model.Prediction
	for rows.Next() {
		var p model.Prediction
		if err := rows.Scan(
			&p.ID, &p.DealID, &p.Kind, &p.PredictedValue, &p.CILower, &p.CIUpper,
			&p.Confidence, &p.ModelID, &p.Features, &p.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan prediction: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
