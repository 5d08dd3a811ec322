package orchestrator

import (
	"fmt"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// deriveAlerts applies the deterministic alert rules to the run's findings.
// Rules are pure functions of deal state and produced scores.
func (o *Orchestrator) deriveAlerts(r *run) []model.Alert {
	var alerts []model.Alert

	if sev, ok := stalledSeverity(r.daysSinceUpdate); ok && !r.deal.Stage.Terminal() {
		alerts = append(alerts, model.Alert{
			DealID:   r.deal.ID,
			Kind:     model.AlertDealStalled,
			Severity: sev,
			Title:    fmt.Sprintf("Deal stalled for %d days", r.daysSinceUpdate),
			Message: fmt.Sprintf("%s (%s) has had no activity for %d days in stage %s.",
				r.deal.Name, r.deal.ExternalID, r.daysSinceUpdate, r.deal.Stage),
			RecommendedAction: "Re-engage the account before the deal goes cold",
		})
	}

	if len(r.scores) > 0 && allScoresBelow(r.scores, 40) {
		alerts = append(alerts, model.Alert{
			DealID:   r.deal.ID,
			Kind:     model.AlertLowScore,
			Severity: model.SeverityHigh,
			Title:    "All framework scores are low",
			Message: fmt.Sprintf("%s scored below 40 on every evaluated framework.",
				r.deal.Name),
			RecommendedAction: "Requalify the opportunity or adjust the close plan",
		})
	}

	return alerts
}

// stalledSeverity scales with how long the deal has sat idle:
// 10 days is medium, 20 high, 30 critical.
func stalledSeverity(days int) (model.AlertSeverity, bool) {
	switch {
	case days >= 30:
		return model.SeverityCritical, true
	case days >= 20:
		return model.SeverityHigh, true
	case days >= 10:
		return model.SeverityMedium, true
	default:
		return "", false
	}
}

func allScoresBelow(scores []model.FrameworkScore, threshold int) bool {
	for _, s := range scores {
		if s.OverallScore >= threshold {
			return false
		}
	}
	return true
}
