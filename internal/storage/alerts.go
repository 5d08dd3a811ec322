package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pipewise-ai/pipewise/internal/model"
)

const alertColumns = `id, deal_id, alert_kind, severity, title, message, recommended_action,
	sent, sent_channel, sent_at, acknowledged, acknowledged_at, created_at`

// InsertAlert persists a new alert in undelivered, unacknowledged state.
func (db *DB) InsertAlert(ctx context.Context, a model.Alert) (model.Alert, error) {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO deal_alerts (deal_id, alert_kind, severity, title, message, recommended_action)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		a.DealID, string(a.Kind), string(a.Severity), a.Title, a.Message, a.RecommendedAction,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return model.Alert{}, fmt.Errorf("storage: insert alert: %w", err)
	}
	return a, nil
}

// MarkAlertSent records successful delivery through a channel.
func (db *DB) MarkAlertSent(ctx context.Context, id uuid.UUID, channel string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE deal_alerts SET sent = TRUE, sent_channel = $2, sent_at = now() WHERE id = $1`,
		id, channel,
	)
	if err != nil {
		return fmt.Errorf("storage: mark alert sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// AcknowledgeAlert marks an alert as acknowledged by a human. Idempotent:
// acknowledging twice keeps the first acknowledgement time.
func (db *DB) AcknowledgeAlert(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE deal_alerts
		 SET acknowledged = TRUE, acknowledged_at = COALESCE(acknowledged_at, now())
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("storage: acknowledge alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAlertsByDeal returns a deal's alerts, most recent first.
// unacknowledgedOnly filters out acknowledged alerts.
func (db *DB) ListAlertsByDeal(ctx context.Context, dealID uuid.UUID, unacknowledgedOnly bool, limit int) ([]model.Alert, error) {
	if limit <= 0 {
		limit = 50
	}

	q := `SELECT ` + alertColumns + ` FROM deal_alerts WHERE deal_id = $1`
	if unacknowledgedOnly {
		q += ` AND NOT acknowledged`
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := db.pool.Query(ctx, q, dealID)
	if err != nil {
		return nil, fmt.Errorf("storage: list alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(
			&a.ID, &a.DealID, &a.Kind, &a.Severity, &a.Title, &a.Message,
			&a.RecommendedAction, &a.Sent, &a.SentChannel, &a.SentAt,
			&a.Acknowledged, &a.AcknowledgedAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
