package memory

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pipewise-ai/pipewise/internal/model"
	"github.com/pipewise-ai/pipewise/internal/storage"
	"github.com/pipewise-ai/pipewise/internal/telemetry"
)

// Aggregator folds observed outcomes into cross-deal patterns. It owns key
// normalization; atomicity of the underlying increment is the PatternStore's
// contract.
type Aggregator struct {
	store        PatternStore
	logger       *slog.Logger
	observations metric.Int64Counter
}

// NewAggregator creates the pattern aggregation service.
func NewAggregator(store PatternStore, logger *slog.Logger) *Aggregator {
	meter := telemetry.Meter("pipewise/memory")
	observations, _ := meter.Int64Counter("pipewise.pattern.observations",
		metric.WithDescription("Outcomes folded into semantic memory"))

	return &Aggregator{
		store:        store,
		logger:       logger.With("component", "aggregator"),
		observations: observations,
	}
}

// Observe records one (context, action) outcome. The pattern key is derived
// from the lowercased pair with spaces collapsed to underscores, so
// "Negotiation" + "send pricing" and "negotiation" + "Send Pricing" land on
// the same pattern. impact optionally carries a measured effect and is folded
// into a running mean.
func (a *Aggregator) Observe(ctx context.Context, contextLabel, action string, success bool, impact *float64) (model.Pattern, error) {
	if contextLabel == "" || action == "" {
		return model.Pattern{}, fmt.Errorf("memory: observe: context and action are required")
	}

	key := model.PatternKey(contextLabel, action)
	p, err := a.store.ObservePattern(ctx, storage.PatternObservation{
		Key:         key,
		Context:     contextLabel,
		Action:      action,
		Description: fmt.Sprintf("%s during %s", action, contextLabel),
		Success:     success,
		Impact:      impact,
	})
	if err != nil {
		return model.Pattern{}, fmt.Errorf("memory: observe pattern %s: %w", key, err)
	}

	if a.observations != nil {
		a.observations.Add(ctx, 1, metric.WithAttributes(
			attribute.Bool("success", success),
		))
	}
	a.logger.Debug("pattern observed",
		"key", key, "success", success,
		"observations", p.ObservationCount, "confidence", p.ConfidenceScore)
	return p, nil
}

// Pattern retrieves one pattern by its derived key.
func (a *Aggregator) Pattern(ctx context.Context, key string) (model.Pattern, error) {
	return a.store.GetPattern(ctx, key)
}
