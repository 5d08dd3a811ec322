package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pipewise-ai/pipewise/internal/model"
)

const dealColumns = `id, external_id, name, company_name, value, currency, stage, probability,
	expected_close_date, actual_close_date, owner_email, source_data, is_active, created_at, updated_at`

// UpsertDealBySource inserts or updates a deal from a CRM snapshot, keyed on
// external_id. updated_at reflects the snapshot's last activity time so
// staleness checks see CRM time, not sync time. Closing stages stamp
// actual_close_date once.
func (db *DB) UpsertDealBySource(ctx context.Context, snap model.DealSnapshot) (model.Deal, error) {
	updatedAt := time.Now().UTC()
	if snap.UpdatedAt != nil {
		updatedAt = snap.UpdatedAt.UTC()
	}
	sourceData := snap.SourceData
	if sourceData == nil {
		sourceData = map[string]any{}
	}

	var d model.Deal
	err := db.pool.QueryRow(ctx,
		`INSERT INTO deals (external_id, name, company_name, value, currency, stage, probability,
		    expected_close_date, owner_email, source_data, updated_at,
		    actual_close_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
		    CASE WHEN $6 IN ('closed_won', 'closed_lost') THEN now() END)
		 ON CONFLICT (external_id) DO UPDATE SET
		    name = EXCLUDED.name,
		    company_name = EXCLUDED.company_name,
		    value = EXCLUDED.value,
		    currency = EXCLUDED.currency,
		    stage = EXCLUDED.stage,
		    probability = EXCLUDED.probability,
		    expected_close_date = EXCLUDED.expected_close_date,
		    owner_email = EXCLUDED.owner_email,
		    source_data = EXCLUDED.source_data,
		    updated_at = EXCLUDED.updated_at,
		    actual_close_date = COALESCE(deals.actual_close_date, EXCLUDED.actual_close_date),
		    is_active = TRUE
		 RETURNING `+dealColumns,
		snap.ExternalID, snap.Name, snap.CompanyName, snap.Value, snap.Currency,
		string(snap.Stage), snap.Probability, snap.ExpectedCloseDate, snap.OwnerEmail,
		sourceData, updatedAt,
	).Scan(dealFields(&d)...)
	if err != nil {
		return model.Deal{}, fmt.Errorf("storage: upsert deal %s: %w", snap.ExternalID, err)
	}
	return d, nil
}

// GetDeal retrieves a deal by internal ID.
func (db *DB) GetDeal(ctx context.Context, id uuid.UUID) (model.Deal, error) {
	var d model.Deal
	err := db.pool.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE id = $1`, id,
	).Scan(dealFields(&d)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Deal{}, ErrNotFound
		}
		return model.Deal{}, fmt.Errorf("storage: get deal: %w", err)
	}
	return d, nil
}

// GetDealByExternalID retrieves a deal by its CRM identifier.
func (db *DB) GetDealByExternalID(ctx context.Context, externalID string) (model.Deal, error) {
	var d model.Deal
	err := db.pool.QueryRow(ctx,
		`SELECT `+dealColumns+` FROM deals WHERE external_id = $1`, externalID,
	).Scan(dealFields(&d)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Deal{}, ErrNotFound
		}
		return model.Deal{}, fmt.Errorf("storage: get deal by external id: %w", err)
	}
	return d, nil
}

// DeactivateDeal marks a deal inactive. History is preserved; deals are
// never hard-deleted.
func (db *DB) DeactivateDeal(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE deals SET is_active = FALSE, updated_at = now() WHERE id = $1`, id,
	)
	if err != nil {
		return fmt.Errorf("storage: deactivate deal: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListStalledDeals returns active, non-terminal deals whose last activity is
// older than the cutoff, longest idle first.
func (db *DB) ListStalledDeals(ctx context.Context, cutoff time.Time, limit int) ([]model.Deal, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+dealColumns+`
		 FROM deals
		 WHERE is_active
		   AND stage NOT IN ('closed_won', 'closed_lost')
		   AND updated_at < $1
		 ORDER BY updated_at ASC
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list stalled deals: %w", err)
	}
	defer rows.Close()

	var out []model.Deal
	for rows.Next() {
		var d model.Deal
		if err := rows.Scan(dealFields(&d)...); err != nil {
			return nil, fmt.Errorf("storage: scan stalled deal: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func dealFields(d *model.Deal) []any {
	return []any{
		&d.ID, &d.ExternalID, &d.Name, &d.CompanyName, &d.Value, &d.Currency,
		&d.Stage, &d.Probability, &d.ExpectedCloseDate, &d.ActualCloseDate,
		&d.OwnerEmail, &d.SourceData, &d.IsActive, &d.CreatedAt, &d.UpdatedAt,
	}
}
