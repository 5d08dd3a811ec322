package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// reflect persists everything the run produced and feeds outcomes back into
// semantic memory. It runs under context.WithoutCancel: once a run has acted,
// its results must land even if the caller has gone away. Persistence
// failures here mark the run failed; the learning loop cannot silently lose
// what it just learned.
func (o *Orchestrator) reflect(ctx context.Context, r *run) model.AnalysisResult {
	ctx = context.WithoutCancel(ctx)

	failed := r.state == StateFailed

	if !failed {
		failed = !o.persistFindings(ctx, r)
	}

	succeeded := len(r.scores) > 0 && !failed
	o.recordRunInteraction(ctx, r, succeeded)
	if !failed {
		o.feedAggregator(ctx, r)
	}

	status := runStatus(r, failed)
	result := model.AnalysisResult{
		RunID:           r.id,
		DealID:          r.deal.ID,
		Status:          status,
		Intent:          r.intent,
		Scores:          r.scores,
		Prediction:      r.prediction,
		Alerts:          r.alerts,
		Insights:        r.insights,
		Errors:          r.errs,
		DaysSinceUpdate: r.daysSinceUpdate,
		StartedAt:       r.startedAt,
		FinishedAt:      time.Now().UTC(),
	}
	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	return result
}

// persistFindings stores scores, the prediction, and alerts, and hands
// alerts to the notifier. Returns false on a persistence failure.
func (o *Orchestrator) persistFindings(ctx context.Context, r *run) bool {
	for i, score := range r.scores {
		stored, err := o.results.InsertScore(ctx, score)
		if err != nil {
			r.errs["reflect"] = err.Error()
			return false
		}
		r.scores[i] = stored
	}

	if r.prediction != nil {
		stored, err := o.results.InsertPrediction(ctx, *r.prediction)
		if err != nil {
			r.errs["reflect"] = err.Error()
			return false
		}
		r.prediction = &stored
	}

	for i, alert := range r.alerts {
		stored, err := o.results.InsertAlert(ctx, alert)
		if err != nil {
			r.errs["reflect"] = err.Error()
			return false
		}
		r.alerts[i] = stored
		o.deliverAlert(ctx, r, i)
	}
	return true
}

// deliverAlert hands one stored alert to the notifier. Best-effort: delivery
// failures are logged, the alert stays stored for later inspection.
func (o *Orchestrator) deliverAlert(ctx context.Context, r *run, i int) {
	if o.notifier == nil {
		return
	}
	alert := r.alerts[i]
	channel, err := o.notifier.Notify(ctx, r.deal, alert)
	if err != nil {
		o.logger.Warn("alert delivery failed",
			"run_id", r.id, "alert_id", alert.ID, "error", err)
		return
	}
	if err := o.results.MarkAlertSent(ctx, alert.ID, channel); err != nil {
		o.logger.Warn("failed to record alert delivery",
			"run_id", r.id, "alert_id", alert.ID, "error", err)
		return
	}
	now := time.Now().UTC()
	r.alerts[i].Sent = true
	r.alerts[i].SentChannel = &channel
	r.alerts[i].SentAt = &now
}

// recordRunInteraction appends the episodic record for this run. For failed
// runs this is best-effort; for successful runs a failure here flips the run
// to failed via the errs map read in runStatus.
func (o *Orchestrator) recordRunInteraction(ctx context.Context, r *run, succeeded bool) {
	if r.deal.ID == uuid.Nil {
		return // perceive never located a deal to attach history to
	}

	outcome := fmt.Sprintf("%d scores, %d alerts", len(r.scores), len(r.alerts))
	if !succeeded {
		outcome = "analysis failed: " + strings.Join(errValues(r.errs), "; ")
	}
	s := succeeded
	_, err := o.episodic.Append(ctx, model.InteractionInput{
		DealID:    r.deal.ID,
		Kind:      model.InteractionAnalysis,
		AgentName: "orchestrator",
		Context:   string(r.deal.Stage),
		Action:    fmt.Sprintf("analyzed with intent %s", r.intent),
		Outcome:   outcome,
		Success:   &s,
		Metadata: map[string]any{
			"run_id":            r.id.String(),
			"days_since_update": r.daysSinceUpdate,
		},
	})
	if err != nil {
		o.logger.Error("failed to record run interaction", "run_id", r.id, "error", err)
		if succeeded {
			r.errs["reflect"] = err.Error()
		}
	}
}

// feedAggregator turns each produced score into a semantic observation for
// the deal's stage. A score counts as a successful outcome when it is strong
// or produced actionable recommendations. Aggregation failures are logged
// but never fail a run that already persisted its findings.
func (o *Orchestrator) feedAggregator(ctx context.Context, r *run) {
	for _, score := range r.scores {
		success := score.OverallScore > 60 || len(score.Recommendations) > 0
		impact := float64(score.OverallScore)
		_, err := o.aggregator.Observe(ctx, string(r.deal.Stage), score.Framework+" analysis", success, &impact)
		if err != nil {
			o.logger.Warn("failed to aggregate outcome",
				"run_id", r.id, "framework", score.Framework, "error", err)
		}
	}
}

// runStatus classifies the finished run. Absence is flagged: anything short
// of every requested framework scoring plus a prediction is at best degraded.
func runStatus(r *run, failed bool) model.RunStatus {
	if failed || r.errs["reflect"] != "" || len(r.scores) == 0 {
		return model.RunFailed
	}
	if len(r.scores) < len(r.scorers) || r.prediction == nil {
		return model.RunDegraded
	}
	return model.RunSucceeded
}

func errValues(errs map[string]string) []string {
	out := make([]string, 0, len(errs))
	for k, v := range errs {
		out = append(out, k+": "+v)
	}
	return out
}
