package pipewise

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a pipeline stage.
type Stage string

const (
	StageQualification Stage = "qualification"
	StageProposal      Stage = "proposal"
	StageNegotiation   Stage = "negotiation"
	StageClosedWon     Stage = "closed_won"
	StageClosedLost    Stage = "closed_lost"
)

// DealSnapshot is the CRM-side view of a deal handed to AnalyzeDeal and
// SyncDeal. ExternalID carries identity; everything else is state as of the
// snapshot. It is a curated view of internal/model.DealSnapshot for use in
// the public API and extension interfaces.
// No internal package imports — safe to use from outside the module.
type DealSnapshot struct {
	ExternalID        string         `json:"external_id"`
	Name              string         `json:"name"`
	CompanyName       string         `json:"company_name"`
	Value             float64        `json:"value"`
	Currency          string         `json:"currency"`
	Stage             Stage          `json:"stage"`
	Probability       int            `json:"probability"`
	ExpectedCloseDate *time.Time     `json:"expected_close_date,omitempty"`
	OwnerEmail        string         `json:"owner_email"`
	SourceData        map[string]any `json:"source_data,omitempty"`
	UpdatedAt         *time.Time     `json:"updated_at,omitempty"`
}

// Deal is a tracked opportunity as stored by the engine.
type Deal struct {
	ID                uuid.UUID      `json:"id"`
	ExternalID        string         `json:"external_id"`
	Name              string         `json:"name"`
	CompanyName       string         `json:"company_name"`
	Value             float64        `json:"value"`
	Currency          string         `json:"currency"`
	Stage             Stage          `json:"stage"`
	Probability       int            `json:"probability"`
	ExpectedCloseDate *time.Time     `json:"expected_close_date,omitempty"`
	ActualCloseDate   *time.Time     `json:"actual_close_date,omitempty"`
	OwnerEmail        string         `json:"owner_email"`
	SourceData        map[string]any `json:"source_data,omitempty"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Interaction is one episodic memory record: something that happened to a
// deal, with its outcome.
type Interaction struct {
	ID        uuid.UUID      `json:"id"`
	DealID    uuid.UUID      `json:"deal_id"`
	Kind      string         `json:"kind"`
	AgentName string         `json:"agent_name"`
	Context   string         `json:"context"`
	Action    string         `json:"action"`
	Outcome   string         `json:"outcome"`
	Success   *bool          `json:"success,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Pattern is one semantic memory record: aggregate outcome statistics for a
// (context, action) pair across all deals, with a confidence score derived
// from the observation count.
type Pattern struct {
	Key              string    `json:"pattern_key"`
	Description      string    `json:"description"`
	Context          string    `json:"context"`
	Action           string    `json:"action"`
	SuccessCount     int64     `json:"success_count"`
	FailureCount     int64     `json:"failure_count"`
	ObservationCount int64     `json:"observation_count"`
	SuccessRate      *float64  `json:"success_rate,omitempty"`
	ConfidenceScore  float64   `json:"confidence_score"`
	AvgImpact        float64   `json:"avg_impact"`
	LearnedRule      string    `json:"learned_rule"`
	FirstSeenAt      time.Time `json:"first_seen_at"`
	LastUpdatedAt    time.Time `json:"last_updated_at"`
}

// FrameworkScore is one framework's evaluation of a deal.
type FrameworkScore struct {
	ID              uuid.UUID      `json:"id"`
	DealID          uuid.UUID      `json:"deal_id"`
	Framework       string         `json:"framework"`
	OverallScore    int            `json:"overall_score"`
	DimensionScores map[string]int `json:"dimension_scores"`
	Gaps            []string       `json:"gaps,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Reasoning       string         `json:"reasoning"`
	CreatedAt       time.Time      `json:"created_at"`
}

// Prediction is one model output for a deal.
type Prediction struct {
	ID             uuid.UUID      `json:"id"`
	DealID         uuid.UUID      `json:"deal_id"`
	Kind           string         `json:"kind"`
	PredictedValue float64        `json:"predicted_value"`
	CILower        *float64       `json:"ci_lower,omitempty"`
	CIUpper        *float64       `json:"ci_upper,omitempty"`
	Confidence     float64        `json:"confidence"`
	ModelID        string         `json:"model_id"`
	Features       map[string]any `json:"features,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Alert is a persisted risk signal for a deal.
type Alert struct {
	ID                uuid.UUID  `json:"id"`
	DealID            uuid.UUID  `json:"deal_id"`
	Kind              string     `json:"kind"`
	Severity          string     `json:"severity"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	RecommendedAction string     `json:"recommended_action"`
	Sent              bool       `json:"sent"`
	SentChannel       *string    `json:"sent_channel,omitempty"`
	SentAt            *time.Time `json:"sent_at,omitempty"`
	Acknowledged      bool       `json:"acknowledged"`
	CreatedAt         time.Time  `json:"created_at"`
}

// AnalysisResult is everything one AnalyzeDeal call produced. Status is
// "succeeded", "degraded" (partial results), or "failed"; Errors names each
// framework or phase that fell short.
type AnalysisResult struct {
	RunID           uuid.UUID         `json:"run_id"`
	DealID          uuid.UUID         `json:"deal_id"`
	Status          string            `json:"status"`
	Intent          string            `json:"intent"`
	Scores          []FrameworkScore  `json:"scores"`
	Prediction      *Prediction       `json:"prediction,omitempty"`
	Alerts          []Alert           `json:"alerts,omitempty"`
	Insights        []Pattern         `json:"insights,omitempty"`
	Errors          map[string]string `json:"errors,omitempty"`
	DaysSinceUpdate int               `json:"days_since_update"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
}

// MemoryStats summarizes both memory systems.
type MemoryStats struct {
	InteractionCount int64     `json:"interaction_count"`
	PatternCount     int64     `json:"pattern_count"`
	AvgConfidence    float64   `json:"avg_confidence"`
	TopPatterns      []Pattern `json:"top_patterns"`
}
