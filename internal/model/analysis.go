package model

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus classifies the outcome of one analysis run.
type RunStatus string

const (
	// RunSucceeded: every requested framework scored and the prediction landed.
	RunSucceeded RunStatus = "succeeded"
	// RunDegraded: at least one score produced, but something is missing.
	RunDegraded RunStatus = "degraded"
	// RunFailed: no scores at all, or a prerequisite or persistence failure.
	RunFailed RunStatus = "failed"
)

// Intent is what the planner decided a run should do.
type Intent string

const (
	IntentAnalyze Intent = "analyze"
	IntentMonitor Intent = "monitor"
	IntentAlert   Intent = "alert"
)

// AnalysisResult is the outcome of one full perceive/plan/act/reflect run.
// Absence of a requested score or prediction is always visible: the missing
// framework appears in Errors and the status is degraded or failed.
type AnalysisResult struct {
	RunID           uuid.UUID         `json:"run_id"`
	DealID          uuid.UUID         `json:"deal_id"`
	Status          RunStatus         `json:"status"`
	Intent          Intent            `json:"intent"`
	Scores          []FrameworkScore  `json:"scores"`
	Prediction      *Prediction       `json:"prediction,omitempty"`
	Alerts          []Alert           `json:"alerts"`
	Insights        []Pattern         `json:"insights"`
	Errors          map[string]string `json:"errors,omitempty"` // framework (or phase) -> error text
	DaysSinceUpdate int               `json:"days_since_update"`
	StartedAt       time.Time         `json:"started_at"`
	FinishedAt      time.Time         `json:"finished_at"`
}
