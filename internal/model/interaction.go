package model

import (
	"time"

	"github.com/google/uuid"
)

// InteractionKind categorizes an episodic memory record.
type InteractionKind string

const (
	InteractionAnalysis       InteractionKind = "analysis"
	InteractionFeedback       InteractionKind = "feedback"
	InteractionStageChange    InteractionKind = "stage_change"
	InteractionRecommendation InteractionKind = "recommendation"
)

// Valid reports whether k is one of the known interaction kinds.
func (k InteractionKind) Valid() bool {
	switch k {
	case InteractionAnalysis, InteractionFeedback, InteractionStageChange, InteractionRecommendation:
		return true
	}
	return false
}

// Interaction is one episodic memory record tied to exactly one deal.
// Append-only: never mutated after creation — corrections are new records.
type Interaction struct {
	ID        uuid.UUID       `json:"id"`
	DealID    uuid.UUID       `json:"deal_id"`
	Kind      InteractionKind `json:"kind"`
	AgentName string          `json:"agent_name"`
	Context   string          `json:"context"`
	Action    string          `json:"action"`
	Outcome   string          `json:"outcome"`
	Success   *bool           `json:"success,omitempty"` // nil until feedback arrives
	Metadata  map[string]any  `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}

// InteractionInput is the caller-supplied portion of a new interaction.
// ID and CreatedAt are assigned by the event store on append.
type InteractionInput struct {
	DealID    uuid.UUID
	Kind      InteractionKind
	AgentName string
	Context   string
	Action    string
	Outcome   string
	Success   *bool
	Metadata  map[string]any
}
