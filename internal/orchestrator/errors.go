package orchestrator

import "errors"

// ErrAnalysisInProgress is returned when a run is requested for a deal that
// already has one in flight. Runs are rejected, not queued.
var ErrAnalysisInProgress = errors.New("orchestrator: analysis already in progress for this deal")

// ErrMissingExternalID is returned when a snapshot carries no CRM identity.
var ErrMissingExternalID = errors.New("orchestrator: snapshot has no external id")
