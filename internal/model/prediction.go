package model

import (
	"time"

	"github.com/google/uuid"
)

// PredictionKind names the quantity a prediction estimates.
type PredictionKind string

const (
	PredictionWinProbability PredictionKind = "win_probability"
	PredictionTimeToClose    PredictionKind = "time_to_close"
	PredictionDealValue      PredictionKind = "deal_value"
)

// Prediction is one model output for a deal. Immutable time series,
// like FrameworkScore.
type Prediction struct {
	ID             uuid.UUID      `json:"id"`
	DealID         uuid.UUID      `json:"deal_id"`
	Kind           PredictionKind `json:"kind"`
	PredictedValue float64        `json:"predicted_value"`
	CILower        *float64       `json:"ci_lower,omitempty"`
	CIUpper        *float64       `json:"ci_upper,omitempty"`
	Confidence     float64        `json:"confidence"`
	ModelID        string         `json:"model_id"`
	Features       map[string]any `json:"features"`
	CreatedAt      time.Time      `json:"created_at"`
}
