package memory

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// Episodic records and retrieves per-deal interaction history.
type Episodic struct {
	store  EventStore
	logger *slog.Logger
}

// NewEpisodic creates the episodic memory service.
func NewEpisodic(store EventStore, logger *slog.Logger) *Episodic {
	return &Episodic{store: store, logger: logger.With("component", "episodic")}
}

// Append validates and persists one interaction. A persistence failure
// propagates to the caller: memory writes are never silently dropped.
func (e *Episodic) Append(ctx context.Context, in model.InteractionInput) (model.Interaction, error) {
	if in.DealID == uuid.Nil {
		return model.Interaction{}, fmt.Errorf("memory: append: deal id is required")
	}
	if !in.Kind.Valid() {
		return model.Interaction{}, fmt.Errorf("memory: append: unknown interaction kind %q", in.Kind)
	}

	rec, err := e.store.InsertInteraction(ctx, in)
	if err != nil {
		return model.Interaction{}, fmt.Errorf("memory: append interaction: %w", err)
	}
	e.logger.Debug("interaction recorded",
		"deal_id", rec.DealID, "kind", rec.Kind, "action", rec.Action)
	return rec, nil
}

// RecentByDeal returns a deal's interactions, most recent first.
// kind filters to one interaction kind when non-empty.
func (e *Episodic) RecentByDeal(ctx context.Context, dealID uuid.UUID, kind model.InteractionKind, limit int) ([]model.Interaction, error) {
	recs, err := e.store.ListInteractionsByDeal(ctx, dealID, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recent interactions: %w", err)
	}
	return recs, nil
}

// SimilarByContext returns interactions across all deals whose context
// resembles the query, most recent first.
func (e *Episodic) SimilarByContext(ctx context.Context, query string, limit int) ([]model.Interaction, error) {
	recs, err := e.store.SearchInteractionsByContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: similar interactions: %w", err)
	}
	return recs, nil
}

// Count returns the total number of episodic records.
func (e *Episodic) Count(ctx context.Context) (int64, error) {
	return e.store.CountInteractions(ctx)
}
