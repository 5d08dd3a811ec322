// Package orchestrator drives the perceive, plan, act, reflect cycle for one
// deal analysis run.
//
// Each run is an explicit state machine. Phases only ever move forward;
// any phase can fail the run, and reflection always gets a chance to record
// what happened, even when the caller's context is already gone.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/pipewise-ai/pipewise/internal/memory"
	"github.com/pipewise-ai/pipewise/internal/model"
	"github.com/pipewise-ai/pipewise/internal/scoring"
	"github.com/pipewise-ai/pipewise/internal/telemetry"
)

// State is a phase of the analysis state machine.
type State string

const (
	StatePerceiving State = "perceiving"
	StatePlanning   State = "planning"
	StateActing     State = "acting"
	StateReflecting State = "reflecting"
	StateDone       State = "done"
	StateFailed     State = "failed"
)

// DealStore is the deal persistence boundary the orchestrator needs. One
// method only: perceive refreshes the deal from the snapshot and works with
// the returned row from there.
type DealStore interface {
	UpsertDealBySource(ctx context.Context, snap model.DealSnapshot) (model.Deal, error)
}

// ResultStore persists the artifacts a run produces.
type ResultStore interface {
	InsertScore(ctx context.Context, s model.FrameworkScore) (model.FrameworkScore, error)
	InsertPrediction(ctx context.Context, p model.Prediction) (model.Prediction, error)
	InsertAlert(ctx context.Context, a model.Alert) (model.Alert, error)
	MarkAlertSent(ctx context.Context, id uuid.UUID, channel string) error
}

// Notifier delivers an alert through some external channel and reports which
// channel carried it. Delivery failures never fail a run.
type Notifier interface {
	Notify(ctx context.Context, deal model.Deal, alert model.Alert) (channel string, err error)
}

// Config tunes run behavior.
type Config struct {
	Frameworks      []string      // enabled framework names; empty means all registered
	MinConfidence   float64       // patterns below this are not planned with
	ScoreTimeout    time.Duration // per-adapter call budget
	MaxScoreRetries int           // extra attempts for transient adapter failures
	StalledAfter    time.Duration // inactivity before a deal counts as stalled
	RecallLimit     int           // patterns and interactions pulled during perceive
}

func (c *Config) applyDefaults() {
	if c.ScoreTimeout <= 0 {
		c.ScoreTimeout = 30 * time.Second
	}
	if c.MaxScoreRetries < 0 {
		c.MaxScoreRetries = 0
	}
	if c.StalledAfter <= 0 {
		c.StalledAfter = 10 * 24 * time.Hour
	}
	if c.RecallLimit <= 0 {
		c.RecallLimit = 10
	}
}

// Orchestrator runs analyses. Safe for concurrent use; runs on the same deal
// are mutually exclusive.
type Orchestrator struct {
	deals      DealStore
	results    ResultStore
	episodic   *memory.Episodic
	aggregator *memory.Aggregator
	recall     *memory.Recall
	registry   *scoring.Registry
	predictor  scoring.Predictor
	notifier   Notifier
	cfg        Config
	logger     *slog.Logger
	locks      *dealLocks

	runs        metric.Int64Counter
	runDuration metric.Float64Histogram
}

// New creates an orchestrator. predictor and notifier may be nil; a nil
// predictor degrades runs that would otherwise succeed, a nil notifier
// leaves alerts stored but unsent.
func New(
	deals DealStore,
	results ResultStore,
	episodic *memory.Episodic,
	aggregator *memory.Aggregator,
	recall *memory.Recall,
	registry *scoring.Registry,
	predictor scoring.Predictor,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	cfg.applyDefaults()

	meter := telemetry.Meter("pipewise/orchestrator")
	runs, _ := meter.Int64Counter("pipewise.analysis.runs",
		metric.WithDescription("Completed analysis runs by status"))
	runDuration, _ := meter.Float64Histogram("pipewise.analysis.duration",
		metric.WithDescription("Analysis run duration"),
		metric.WithUnit("s"))

	return &Orchestrator{
		deals:       deals,
		results:     results,
		episodic:    episodic,
		aggregator:  aggregator,
		recall:      recall,
		registry:    registry,
		predictor:   predictor,
		notifier:    notifier,
		cfg:         cfg,
		logger:      logger.With("component", "orchestrator"),
		locks:       newDealLocks(),
		runs:        runs,
		runDuration: runDuration,
	}
}

// run carries all per-run state through the phases.
type run struct {
	id    uuid.UUID
	state State
	snap  model.DealSnapshot

	// Perceive.
	deal            model.Deal
	recalled        []model.Pattern
	recent          []model.Interaction
	daysSinceUpdate int

	// Plan.
	intent   model.Intent
	scorers  []scoring.Scorer
	insights []model.Pattern

	// Act.
	scores     []model.FrameworkScore
	prediction *model.Prediction
	alerts     []model.Alert

	errs      map[string]string
	startedAt time.Time
}

func (r *run) fail(key string, err error) {
	r.errs[key] = err.Error()
	r.state = StateFailed
}

// AnalyzeDeal executes one full analysis run for the deal in snap. A second
// concurrent run on the same deal is rejected with ErrAnalysisInProgress
// rather than queued; the caller already gets fresh results from the run in
// flight.
func (o *Orchestrator) AnalyzeDeal(ctx context.Context, snap model.DealSnapshot) (model.AnalysisResult, error) {
	if snap.ExternalID == "" {
		return model.AnalysisResult{}, ErrMissingExternalID
	}
	if !o.locks.tryAcquire(snap.ExternalID) {
		return model.AnalysisResult{}, ErrAnalysisInProgress
	}
	defer o.locks.release(snap.ExternalID)

	r := &run{
		id:        uuid.New(),
		state:     StatePerceiving,
		snap:      snap,
		intent:    model.IntentAnalyze,
		errs:      make(map[string]string),
		startedAt: time.Now().UTC(),
	}
	o.logger.Info("analysis run started", "run_id", r.id, "external_id", snap.ExternalID)

	for r.state != StateDone && r.state != StateFailed {
		o.step(ctx, r)
	}
	// Reflection runs even for failed runs, and is entered exactly once.
	result := o.reflect(ctx, r)

	if o.runs != nil {
		o.runs.Add(ctx, 1, metric.WithAttributes(
			attribute.String("status", string(result.Status)),
		))
	}
	if o.runDuration != nil {
		o.runDuration.Record(ctx, result.FinishedAt.Sub(result.StartedAt).Seconds())
	}
	o.logger.Info("analysis run finished",
		"run_id", r.id, "status", result.Status,
		"scores", len(result.Scores), "alerts", len(result.Alerts))
	return result, nil
}

// step advances the state machine by one phase. All transitions live here.
func (o *Orchestrator) step(ctx context.Context, r *run) {
	switch r.state {
	case StatePerceiving:
		if o.perceive(ctx, r) {
			r.state = StatePlanning
		}
	case StatePlanning:
		if o.plan(ctx, r) {
			r.state = StateActing
		}
	case StateActing:
		o.act(ctx, r)
		r.state = StateReflecting
	case StateReflecting:
		// Terminal for the loop; reflection itself runs after it.
		r.state = StateDone
	}
}
