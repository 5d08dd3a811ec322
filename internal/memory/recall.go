package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// Recall is the read-only retrieval surface over both memory systems.
// It never mutates state and is safe to call from concurrent runs.
type Recall struct {
	events   EventStore
	patterns PatternStore
}

// NewRecall creates the recall service.
func NewRecall(events EventStore, patterns PatternStore) *Recall {
	return &Recall{events: events, patterns: patterns}
}

// RelevantPatterns returns patterns applicable to the given context at or
// above minConfidence, strongest first. A pattern applies when its stored
// context matches exactly or is the all_stages wildcard.
func (r *Recall) RelevantPatterns(ctx context.Context, contextLabel string, minConfidence float64, limit int) ([]model.Pattern, error) {
	if contextLabel == "" {
		return nil, fmt.Errorf("memory: recall: context is required")
	}
	patterns, err := r.patterns.ListPatterns(ctx, contextLabel, minConfidence, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recall patterns: %w", err)
	}
	return patterns, nil
}

// RecentInteractions returns a deal's latest episodic records.
func (r *Recall) RecentInteractions(ctx context.Context, dealID uuid.UUID, limit int) ([]model.Interaction, error) {
	recs, err := r.events.ListInteractionsByDeal(ctx, dealID, "", limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recall interactions: %w", err)
	}
	return recs, nil
}
