package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertSeverity orders alert urgency from low to critical.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

var severityRank = map[AlertSeverity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// AtLeast reports whether s is at least as severe as min.
func (s AlertSeverity) AtLeast(min AlertSeverity) bool {
	return severityRank[s] >= severityRank[min]
}

// AlertKind names the condition an alert reports.
type AlertKind string

const (
	AlertDealStalled AlertKind = "deal_stalled"
	AlertLowScore    AlertKind = "low_score"
)

// Alert is a persisted risk signal for a deal. Delivery state (sent,
// acknowledged) is tracked on the row; the engine itself never delivers,
// it hands alerts to an injected notifier.
type Alert struct {
	ID                uuid.UUID     `json:"id"`
	DealID            uuid.UUID     `json:"deal_id"`
	Kind              AlertKind     `json:"kind"`
	Severity          AlertSeverity `json:"severity"`
	Title             string        `json:"title"`
	Message           string        `json:"message"`
	RecommendedAction string        `json:"recommended_action"`
	Sent              bool          `json:"sent"`
	SentChannel       *string       `json:"sent_channel,omitempty"`
	SentAt            *time.Time    `json:"sent_at,omitempty"`
	Acknowledged      bool          `json:"acknowledged"`
	AcknowledgedAt    *time.Time    `json:"acknowledged_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}
