package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// perceive syncs the snapshot into storage and gathers everything the
// planner needs: relevant patterns, recent history, and deal staleness.
// Returns false when the run cannot proceed.
func (o *Orchestrator) perceive(ctx context.Context, r *run) bool {
	deal, err := o.deals.UpsertDealBySource(ctx, r.snap)
	if err != nil {
		r.fail("perceive", fmt.Errorf("sync deal: %w", err))
		return false
	}
	if !deal.IsActive {
		r.fail("perceive", fmt.Errorf("deal %s is inactive", deal.ExternalID))
		return false
	}
	r.deal = deal
	r.daysSinceUpdate = int(time.Now().UTC().Sub(deal.UpdatedAt).Hours() / 24)

	recalled, err := o.recall.RelevantPatterns(ctx, string(deal.Stage), o.cfg.MinConfidence, o.cfg.RecallLimit)
	if err != nil {
		r.fail("perceive", fmt.Errorf("recall patterns: %w", err))
		return false
	}
	r.recalled = recalled

	recent, err := o.recall.RecentInteractions(ctx, deal.ID, o.cfg.RecallLimit)
	if err != nil {
		r.fail("perceive", fmt.Errorf("recall interactions: %w", err))
		return false
	}
	r.recent = recent

	o.logger.Debug("perceived deal",
		"run_id", r.id, "deal_id", deal.ID, "stage", deal.Stage,
		"patterns", len(recalled), "history", len(recent),
		"days_since_update", r.daysSinceUpdate)
	return true
}
