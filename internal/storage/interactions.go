package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pipewise-ai/pipewise/internal/model"
)

const interactionColumns = `id, deal_id, interaction_kind, agent_name, context, action_taken,
	outcome, success, metadata, created_at`

// InsertInteraction appends one episodic record. The table is append-only:
// there is no update or delete method, corrections are new records. Failures
// propagate to the caller; memory writes are never silently dropped.
func (db *DB) InsertInteraction(ctx context.Context, in model.InteractionInput) (model.Interaction, error) {
	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	var rec model.Interaction
	err := db.pool.QueryRow(ctx,
		`INSERT INTO deal_interactions (deal_id, interaction_kind, agent_name, context, action_taken, outcome, success, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+interactionColumns,
		in.DealID, string(in.Kind), in.AgentName, in.Context, in.Action, in.Outcome, in.Success, metadata,
	).Scan(interactionFields(&rec)...)
	if err != nil {
		return model.Interaction{}, fmt.Errorf("storage: insert interaction: %w", err)
	}
	return rec, nil
}

// ListInteractionsByDeal returns a deal's interactions, most recent first.
// kind filters to one interaction kind when non-empty.
func (db *DB) ListInteractionsByDeal(ctx context.Context, dealID uuid.UUID, kind model.InteractionKind, limit int) ([]model.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + interactionColumns + ` FROM deal_interactions WHERE deal_id = $1`
	args := []any{dealID}
	if kind != "" {
		q += ` AND interaction_kind = $2`
		args = append(args, string(kind))
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := db.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list interactions: %w", err)
	}
	defer rows.Close()

	var out []model.Interaction
	for rows.Next() {
		var rec model.Interaction
		if err := rows.Scan(interactionFields(&rec)...); err != nil {
			return nil, fmt.Errorf("storage: scan interaction: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SearchInteractionsByContext returns interactions across all deals whose
// context resembles the query (case-insensitive substring), most recent first.
func (db *DB) SearchInteractionsByContext(ctx context.Context, query string, limit int) ([]model.Interaction, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+interactionColumns+`
		 FROM deal_interactions
		 WHERE context ILIKE '%' || $1 || '%'
		 ORDER BY created_at DESC
		 LIMIT $2`,
		query, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: search interactions: %w", err)
	}
	defer rows.Close()

	var out []model.Interaction
	for rows.Next() {
		var rec model.Interaction
		if err := rows.Scan(interactionFields(&rec)...); err != nil {
			return nil, fmt.Errorf("storage: scan interaction: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountInteractions returns the total number of episodic records.
func (db *DB) CountInteractions(ctx context.Context) (int64, error) {
	var n int64
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deal_interactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("storage: count interactions: %w", err)
	}
	return n, nil
}

func interactionFields(rec *model.Interaction) []any {
	return []any{
		&rec.ID, &rec.DealID, &rec.Kind, &rec.AgentName, &rec.Context,
		&rec.Action, &rec.Outcome, &rec.Success, &rec.Metadata, &rec.CreatedAt,
	}
}
