package storage

import (
	"context"
	"fmt"
)

// EvictionResult reports what one retention sweep removed.
type EvictionResult struct {
	GlobalEvicted  int64 `json:"global_evicted"`
	PerDealEvicted int64 `json:"per_deal_evicted"`
}

// EvictInteractions trims episodic memory to its configured caps, oldest
// records first. globalCap bounds total interaction rows; perDealCap bounds
// rows per deal. Zero disables the corresponding pass. Deletes run in
// batches of batchSize so a large backlog never holds a long transaction.
// Runs out of band on a schedule, never on the append path.
func (db *DB) EvictInteractions(ctx context.Context, globalCap, perDealCap, batchSize int) (EvictionResult, error) {
	if batchSize <= 0 {
		batchSize = 200
	}

	var res EvictionResult

	if perDealCap > 0 {
		for {
			// Delete one batch of rows ranked past the per-deal cap.
			tag, err := db.pool.Exec(ctx,
				`DELETE FROM deal_interactions WHERE id IN (
				    SELECT id FROM (
				        SELECT id, row_number() OVER (PARTITION BY deal_id ORDER BY created_at DESC) AS rn
				        FROM deal_interactions
				    ) ranked
				    WHERE rn > $1
				    LIMIT $2
				 )`,
				perDealCap, batchSize,
			)
			if err != nil {
				return res, fmt.Errorf("storage: evict per-deal interactions: %w", err)
			}
			res.PerDealEvicted += tag.RowsAffected()
			if tag.RowsAffected() < int64(batchSize) {
				break
			}
		}
	}

	if globalCap > 0 {
		for {
			var excess int64
			if err := db.pool.QueryRow(ctx,
				`SELECT GREATEST(COUNT(*) - $1, 0) FROM deal_interactions`, globalCap,
			).Scan(&excess); err != nil {
				return res, fmt.Errorf("storage: count interaction excess: %w", err)
			}
			if excess == 0 {
				break
			}
			n := min(excess, int64(batchSize))

			tag, err := db.pool.Exec(ctx,
				`DELETE FROM deal_interactions WHERE id IN (
				    SELECT id FROM deal_interactions ORDER BY created_at ASC LIMIT $1
				 )`,
				n,
			)
			if err != nil {
				return res, fmt.Errorf("storage: evict interactions: %w", err)
			}
			res.GlobalEvicted += tag.RowsAffected()
			if tag.RowsAffected() == 0 {
				break
			}
		}
	}

	return res, nil
}
