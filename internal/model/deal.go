// Package model defines the core domain types for Pipewise.
//
// All types correspond directly to database tables or analysis payloads.
// Types use strong typing (UUIDs, time.Time, enums) and avoid interface{}
// wherever possible.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a pipeline stage. The set is open: CRMs define their own stage
// names, so Stage is a string type rather than a closed enum. The constants
// below cover the stages the engine itself reasons about.
type Stage string

const (
	StageQualification Stage = "qualification"
	StageProposal      Stage = "proposal"
	StageNegotiation   Stage = "negotiation"
	StageClosedWon     Stage = "closed_won"
	StageClosedLost    Stage = "closed_lost"
)

// Terminal reports whether the stage is a closed (won or lost) stage.
// Stalled-deal alerting never fires for terminal stages.
func (s Stage) Terminal() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// Deal is a tracked opportunity, synced from an external CRM.
// Deals are never hard-deleted; they are marked inactive instead.
type Deal struct {
	ID                uuid.UUID      `json:"id"`
	ExternalID        string         `json:"external_id"`
	Name              string         `json:"name"`
	CompanyName       string         `json:"company_name"`
	Value             float64        `json:"value"`
	Currency          string         `json:"currency"`
	Stage             Stage          `json:"stage"`
	Probability       int            `json:"probability"` // 0-100
	ExpectedCloseDate *time.Time     `json:"expected_close_date,omitempty"`
	ActualCloseDate   *time.Time     `json:"actual_close_date,omitempty"`
	OwnerEmail        string         `json:"owner_email"`
	SourceData        map[string]any `json:"source_data"`
	IsActive          bool           `json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// DealSnapshot is the CRM-supplied view of a deal handed to AnalyzeDeal and
// SyncDeal. It carries the external identity; the engine resolves or creates
// the corresponding Deal row.
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
	UpdatedAt         *time.Time     `json:"updated_at,omitempty"` // last CRM activity; defaults to now
}
