// Package memory implements the dual memory system: an episodic event store
// of per-deal interactions and a semantic pattern store of aggregated
// cross-deal statistics, plus the recall service that reads both.
package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/pipewise-ai/pipewise/internal/model"
	"github.com/pipewise-ai/pipewise/internal/storage"
)

// EventStore is the episodic persistence boundary. Append-only by contract:
// implementations must not expose update or delete of individual records.
type EventStore interface {
	InsertInteraction(ctx context.Context, in model.InteractionInput) (model.Interaction, error)
	ListInteractionsByDeal(ctx context.Context, dealID uuid.UUID, kind model.InteractionKind, limit int) ([]model.Interaction, error)
	SearchInteractionsByContext(ctx context.Context, query string, limit int) ([]model.Interaction, error)
	CountInteractions(ctx context.Context) (int64, error)
}

// PatternStore is the semantic persistence boundary. ObservePattern must be
// atomic per key: concurrent observers never lose updates.
type PatternStore interface {
	ObservePattern(ctx context.Context, obs storage.PatternObservation) (model.Pattern, error)
	GetPattern(ctx context.Context, key string) (model.Pattern, error)
	ListPatterns(ctx context.Context, contextFilter string, minConfidence float64, limit int) ([]model.Pattern, error)
	CountPatterns(ctx context.Context) (int64, error)
}

// Compile-time checks that the Postgres layer satisfies both boundaries.
var (
	_ EventStore   = (*storage.DB)(nil)
	_ PatternStore = (*storage.DB)(nil)
)
