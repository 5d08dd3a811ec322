package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// plan decides what this run should do: which frameworks to score with,
// which recalled patterns count as insights, and the run's intent.
// Returns false when the run cannot proceed.
func (o *Orchestrator) plan(_ context.Context, r *run) bool {
	scorers, err := o.registry.Resolve(o.cfg.Frameworks)
	if err != nil {
		r.fail("plan", fmt.Errorf("resolve frameworks: %w", err))
		return false
	}
	r.scorers = scorers

	// Recall already filtered by confidence; recalled patterns are the
	// learned insights this run acts with.
	r.insights = r.recalled

	switch {
	case r.deal.Stage.Terminal():
		r.intent = model.IntentMonitor
	case time.Duration(r.daysSinceUpdate)*24*time.Hour >= o.cfg.StalledAfter:
		r.intent = model.IntentAlert
	default:
		r.intent = model.IntentAnalyze
	}

	o.logger.Debug("planned run",
		"run_id", r.id, "intent", r.intent,
		"frameworks", len(r.scorers), "insights", len(r.insights))
	return true
}
