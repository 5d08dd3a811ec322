// Package pipewise is the public API for embedding the Pipewise deal
// learning engine.
//
// Applications import this package to analyze deals and query what the
// engine has learned without running a separate service:
//
//	eng, err := pipewise.New(
//	    pipewise.WithVersion(version),
//	    pipewise.WithLogger(logger),
//	    pipewise.WithNotifier(mySlackNotifier{}),
//	)
//	if err != nil { ... }
//	defer eng.Close()
//	result, err := eng.AnalyzeDeal(ctx, snapshot)
//
// The import graph enforces a strict no-cycle rule: pipewise (root) imports
// internal/*, but internal/* never imports pipewise (root). Public types
// (Deal, Pattern, etc.) are standalone structs with no internal imports;
// conversion helpers (toPublicDeal, toPublicPattern) live here because this
// is the only file that sees both sides of the boundary.
package pipewise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/pipewise-ai/pipewise/internal/config"
	"github.com/pipewise-ai/pipewise/internal/memory"
	"github.com/pipewise-ai/pipewise/internal/model"
	"github.com/pipewise-ai/pipewise/internal/orchestrator"
	"github.com/pipewise-ai/pipewise/internal/scoring"
	"github.com/pipewise-ai/pipewise/internal/storage"
	"github.com/pipewise-ai/pipewise/internal/telemetry"
	"github.com/pipewise-ai/pipewise/migrations"
)

// Public sentinel errors. Internal errors are translated at this boundary so
// embedders never match against internal packages.
var (
	// ErrAnalysisInProgress means the deal already has a run in flight.
	// Runs are rejected, not queued; retry after the current run finishes.
	ErrAnalysisInProgress = errors.New("pipewise: analysis already in progress for this deal")

	// ErrMissingExternalID means the snapshot carries no CRM identity.
	ErrMissingExternalID = errors.New("pipewise: snapshot has no external id")

	// ErrNotFound means the requested deal, pattern, or alert does not exist.
	ErrNotFound = errors.New("pipewise: not found")
)

// Engine is the deal learning engine lifecycle. Construct with New(); an
// Engine is ready to analyze immediately. Start() is optional and only runs
// the background retention sweep. Engine has no public fields — use New()
// options to configure it.
type Engine struct {
	cfg          config.Config
	db           *storage.DB
	episodic     *memory.Episodic
	aggregator   *memory.Aggregator
	recall       *memory.Recall
	registry     *scoring.Registry
	orch         *orchestrator.Orchestrator
	otelShutdown telemetry.Shutdown
	logger       *slog.Logger
	version      string
}

// New initialises the engine. It connects to the database, runs migrations,
// and wires both memory systems, the scoring registry, and the orchestrator.
// It does NOT start any goroutines — the retention sweep only runs once
// Start() is called.
func New(opts ...Option) (*Engine, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	// Load configuration (env vars), then apply option overrides.
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.episodicCapacity != nil {
		cfg.EpisodicCapacity = *o.episodicCapacity
	}
	if o.perDealCapacity != nil {
		cfg.PerDealCapacity = *o.perDealCapacity
	}
	if o.minConfidence != nil {
		cfg.MinConfidence = *o.minConfidence
	}
	if o.scoreTimeout != nil {
		cfg.ScoreTimeout = *o.scoreTimeout
	}
	if o.maxScoreRetries != nil {
		cfg.MaxScoreRetries = *o.maxScoreRetries
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("pipewise starting", "version", version)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	// Connect to database.
	db, err := storage.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	// Run migrations.
	if o.skipMigrations {
		logger.Info("embedded migrations skipped by option")
	} else if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close()
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for _, extra := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extra); err != nil {
			db.Close()
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("extra migrations: %w", err)
		}
	}

	// Memory systems. The storage layer backs both: interactions for the
	// episodic side, aggregated patterns for the semantic side.
	episodic := memory.NewEpisodic(db, logger)
	aggregator := memory.NewAggregator(db, logger)
	recall := memory.NewRecall(db, db)

	// Scoring registry: built-in frameworks first, then custom ones so a
	// name collision favors the caller's implementation.
	registry := scoring.NewRegistry()
	registry.Register(scoring.NewMEDDICScorer())
	registry.Register(scoring.NewBANTScorer())
	for _, s := range o.frameworks {
		registry.Register(scorerAdapter{inner: s})
	}

	var predictor scoring.Predictor = scoring.NaivePredictor{}
	if o.predictorSet {
		if o.predictor == nil {
			predictor = nil
		} else {
			predictor = predictorAdapter{inner: o.predictor}
		}
	}

	var notifier orchestrator.Notifier
	if o.notifier != nil {
		notifier = notifierAdapter{inner: o.notifier}
	}

	orch := orchestrator.New(db, db, episodic, aggregator, recall, registry, predictor, notifier,
		orchestrator.Config{
			Frameworks:      o.enabledFrameworks,
			MinConfidence:   cfg.MinConfidence,
			ScoreTimeout:    cfg.ScoreTimeout,
			MaxScoreRetries: cfg.MaxScoreRetries,
			StalledAfter:    cfg.StalledAfter,
		}, logger)

	return &Engine{
		cfg:          cfg,
		db:           db,
		episodic:     episodic,
		aggregator:   aggregator,
		recall:       recall,
		registry:     registry,
		orch:         orch,
		otelShutdown: otelShutdown,
		logger:       logger,
		version:      version,
	}, nil
}

// AnalyzeDeal runs one full perceive/plan/act/reflect cycle for the deal in
// snap and returns everything the run produced. A second concurrent call for
// the same deal returns ErrAnalysisInProgress.
func (e *Engine) AnalyzeDeal(ctx context.Context, snap DealSnapshot) (AnalysisResult, error) {
	result, err := e.orch.AnalyzeDeal(ctx, fromPublicSnapshot(snap))
	if err != nil {
		return AnalysisResult{}, translateErr(err)
	}
	return toPublicResult(result), nil
}

// SyncDeal upserts the deal's state without analyzing it. Use this to keep
// the engine's view of the pipeline current between analysis runs.
func (e *Engine) SyncDeal(ctx context.Context, snap DealSnapshot) (Deal, error) {
	if snap.ExternalID == "" {
		return Deal{}, ErrMissingExternalID
	}
	deal, err := e.db.UpsertDealBySource(ctx, fromPublicSnapshot(snap))
	if err != nil {
		return Deal{}, translateErr(err)
	}
	return toPublicDeal(deal), nil
}

// GetHistory returns a deal's episodic memory, most recent first.
func (e *Engine) GetHistory(ctx context.Context, externalID string, limit int) ([]Interaction, error) {
	deal, err := e.db.GetDealByExternalID(ctx, externalID)
	if err != nil {
		return nil, translateErr(err)
	}
	recs, err := e.episodic.RecentByDeal(ctx, deal.ID, "", limit)
	if err != nil {
		return nil, translateErr(err)
	}
	return toPublicInteractions(recs), nil
}

// GetScores returns a deal's framework score history, newest first.
func (e *Engine) GetScores(ctx context.Context, externalID string, limit int) ([]FrameworkScore, error) {
	deal, err := e.db.GetDealByExternalID(ctx, externalID)
	if err != nil {
		return nil, translateErr(err)
	}
	scores, err := e.db.ListScoresByDeal(ctx, deal.ID, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	out := make([]FrameworkScore, len(scores))
	for i, s := range scores {
		out[i] = toPublicScore(s)
	}
	return out, nil
}

// GetPredictions returns a deal's prediction history, newest first.
func (e *Engine) GetPredictions(ctx context.Context, externalID string, limit int) ([]Prediction, error) {
	deal, err := e.db.GetDealByExternalID(ctx, externalID)
	if err != nil {
		return nil, translateErr(err)
	}
	preds, err := e.db.ListPredictionsByDeal(ctx, deal.ID, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	out := make([]Prediction, len(preds))
	for i, p := range preds {
		out[i] = toPublicPrediction(p)
	}
	return out, nil
}

// GetAlerts returns a deal's alerts, newest first. Alert IDs from here feed
// Acknowledge. unacknowledgedOnly filters to alerts still awaiting action.
func (e *Engine) GetAlerts(ctx context.Context, externalID string, unacknowledgedOnly bool, limit int) ([]Alert, error) {
	deal, err := e.db.GetDealByExternalID(ctx, externalID)
	if err != nil {
		return nil, translateErr(err)
	}
	alerts, err := e.db.ListAlertsByDeal(ctx, deal.ID, unacknowledgedOnly, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	out := make([]Alert, len(alerts))
	for i, a := range alerts {
		out[i] = toPublicAlert(a)
	}
	return out, nil
}

// StalledDeals returns active, non-terminal deals with no activity for the
// configured stalled threshold, longest-idle first.
func (e *Engine) StalledDeals(ctx context.Context, limit int) ([]Deal, error) {
	cutoff := time.Now().UTC().Add(-e.cfg.StalledAfter)
	deals, err := e.db.ListStalledDeals(ctx, cutoff, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	out := make([]Deal, len(deals))
	for i, d := range deals {
		out[i] = toPublicDeal(d)
	}
	return out, nil
}

// GetPatterns returns learned patterns at or above minConfidence, strongest
// first. Pass a negative minConfidence to use the engine's configured
// minimum. A non-empty contextLabel keeps patterns for that context plus
// cross-stage ones; empty returns patterns for every context.
func (e *Engine) GetPatterns(ctx context.Context, contextLabel string, minConfidence float64, limit int) ([]Pattern, error) {
	patterns, err := e.db.ListPatterns(ctx, contextLabel, e.minConfidenceOr(minConfidence), limit)
	if err != nil {
		return nil, translateErr(err)
	}
	return toPublicPatterns(patterns), nil
}

// minConfidenceOr resolves a per-call confidence floor, falling back to the
// configured minimum for negative values.
func (e *Engine) minConfidenceOr(v float64) float64 {
	if v < 0 {
		return e.cfg.MinConfidence
	}
	return v
}

// GetPattern returns one pattern by its key, e.g. "negotiation_send_pricing".
func (e *Engine) GetPattern(ctx context.Context, key string) (Pattern, error) {
	p, err := e.aggregator.Pattern(ctx, key)
	if err != nil {
		return Pattern{}, translateErr(err)
	}
	return toPublicPattern(p), nil
}

// SimilarExperiences searches episodic memory across all deals for
// interactions whose context resembles the query, most recent first.
func (e *Engine) SimilarExperiences(ctx context.Context, query string, limit int) ([]Interaction, error) {
	recs, err := e.episodic.SimilarByContext(ctx, query, limit)
	if err != nil {
		return nil, translateErr(err)
	}
	return toPublicInteractions(recs), nil
}

// MemoryStats reports the size and quality of both memory systems.
func (e *Engine) MemoryStats(ctx context.Context) (MemoryStats, error) {
	stats, err := e.db.GetMemoryStats(ctx)
	if err != nil {
		return MemoryStats{}, translateErr(err)
	}
	return MemoryStats{
		InteractionCount: stats.InteractionCount,
		PatternCount:     stats.PatternCount,
		AvgConfidence:    stats.AvgConfidence,
		TopPatterns:      toPublicPatterns(stats.TopPatterns),
	}, nil
}

// Acknowledge marks an alert as acknowledged. Idempotent: acknowledging an
// already-acknowledged alert keeps the original acknowledgment time.
func (e *Engine) Acknowledge(ctx context.Context, alertID uuid.UUID) error {
	return translateErr(e.db.AcknowledgeAlert(ctx, alertID))
}

// Start runs the background retention sweep until ctx is cancelled. The
// sweep enforces the episodic memory caps by evicting the oldest
// interactions. Optional: an Engine without Start() works, its episodic
// memory just grows unbounded.
func (e *Engine) Start(ctx context.Context) error {
	e.logger.Info("retention sweep started",
		"interval", e.cfg.SweepInterval,
		"global_cap", e.cfg.EpisodicCapacity,
		"per_deal_cap", e.cfg.PerDealCapacity)

	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("retention sweep stopped")
			return nil
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}

// Sweep runs one retention pass immediately and reports how many
// interactions were evicted. Start() calls this on every tick; callers can
// also invoke it directly (the CLI sweep verb does).
func (e *Engine) Sweep(ctx context.Context) (globalEvicted, perDealEvicted int64) {
	res, err := e.db.EvictInteractions(ctx, e.cfg.EpisodicCapacity, e.cfg.PerDealCapacity, e.cfg.SweepBatchSize)
	if err != nil {
		e.logger.Error("retention sweep failed", "error", err)
		return 0, 0
	}
	if res.GlobalEvicted > 0 || res.PerDealEvicted > 0 {
		e.logger.Info("retention sweep evicted interactions",
			"global", res.GlobalEvicted, "per_deal", res.PerDealEvicted)
	}
	return res.GlobalEvicted, res.PerDealEvicted
}

// Close releases the database pool and flushes telemetry. Safe to call after
// a cancelled Start().
func (e *Engine) Close() error {
	e.db.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.otelShutdown(shutdownCtx); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

// translateErr maps internal sentinel errors to their public counterparts.
func translateErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, orchestrator.ErrAnalysisInProgress):
		return ErrAnalysisInProgress
	case errors.Is(err, orchestrator.ErrMissingExternalID):
		return ErrMissingExternalID
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}

// scoringTransient and scoringPermanent back the error constructors exposed
// in interfaces.go, keeping that file free of internal imports.
func scoringTransient(err error) error { return scoring.Transient(err) }
func scoringPermanent(err error) error { return scoring.Permanent(err) }

// --- extension point adapters ---

// scorerAdapter lets a public Scorer run inside the internal registry.
type scorerAdapter struct {
	inner Scorer
}

func (a scorerAdapter) Name() string { return a.inner.Name() }

func (a scorerAdapter) Score(ctx context.Context, snap model.DealSnapshot) (model.FrameworkScore, error) {
	res, err := a.inner.Score(ctx, toPublicSnapshot(snap))
	if err != nil {
		return model.FrameworkScore{}, err
	}
	out := model.FrameworkScore{
		Framework:       res.Framework,
		OverallScore:    res.OverallScore,
		DimensionScores: res.DimensionScores,
		Gaps:            res.Gaps,
		Recommendations: res.Recommendations,
		Reasoning:       res.Reasoning,
		AgentName:       a.inner.Name(),
	}
	if out.Framework == "" {
		out.Framework = a.inner.Name()
	}
	return out, nil
}

type predictorAdapter struct {
	inner Predictor
}

func (a predictorAdapter) ModelID() string { return a.inner.ModelID() }

func (a predictorAdapter) Predict(ctx context.Context, snap model.DealSnapshot) (model.Prediction, error) {
	res, err := a.inner.Predict(ctx, toPublicSnapshot(snap))
	if err != nil {
		return model.Prediction{}, err
	}
	out := model.Prediction{
		Kind:           model.PredictionKind(res.Kind),
		PredictedValue: res.PredictedValue,
		CILower:        res.CILower,
		CIUpper:        res.CIUpper,
		Confidence:     res.Confidence,
		ModelID:        res.ModelID,
		Features:       res.Features,
	}
	if out.ModelID == "" {
		out.ModelID = a.inner.ModelID()
	}
	return out, nil
}

type notifierAdapter struct {
	inner Notifier
}

func (a notifierAdapter) Notify(ctx context.Context, deal model.Deal, alert model.Alert) (string, error) {
	return a.inner.Notify(ctx, toPublicDeal(deal), toPublicAlert(alert))
}

// --- boundary converters ---

func fromPublicSnapshot(s DealSnapshot) model.DealSnapshot {
	return model.DealSnapshot{
		ExternalID:        s.ExternalID,
		Name:              s.Name,
		CompanyName:       s.CompanyName,
		Value:             s.Value,
		Currency:          s.Currency,
		Stage:             model.Stage(s.Stage),
		Probability:       s.Probability,
		ExpectedCloseDate: s.ExpectedCloseDate,
		OwnerEmail:        s.OwnerEmail,
		SourceData:        s.SourceData,
		UpdatedAt:         s.UpdatedAt,
	}
}

func toPublicSnapshot(s model.DealSnapshot) DealSnapshot {
	return DealSnapshot{
		ExternalID:        s.ExternalID,
		Name:              s.Name,
		CompanyName:       s.CompanyName,
		Value:             s.Value,
		Currency:          s.Currency,
		Stage:             Stage(s.Stage),
		Probability:       s.Probability,
		ExpectedCloseDate: s.ExpectedCloseDate,
		OwnerEmail:        s.OwnerEmail,
		SourceData:        s.SourceData,
		UpdatedAt:         s.UpdatedAt,
	}
}

func toPublicDeal(d model.Deal) Deal {
	return Deal{
		ID:                d.ID,
		ExternalID:        d.ExternalID,
		Name:              d.Name,
		CompanyName:       d.CompanyName,
		Value:             d.Value,
		Currency:          d.Currency,
		Stage:             Stage(d.Stage),
		Probability:       d.Probability,
		ExpectedCloseDate: d.ExpectedCloseDate,
		ActualCloseDate:   d.ActualCloseDate,
		OwnerEmail:        d.OwnerEmail,
		SourceData:        d.SourceData,
		IsActive:          d.IsActive,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

func toPublicInteraction(rec model.Interaction) Interaction {
	return Interaction{
		ID:        rec.ID,
		DealID:    rec.DealID,
		Kind:      string(rec.Kind),
		AgentName: rec.AgentName,
		Context:   rec.Context,
		Action:    rec.Action,
		Outcome:   rec.Outcome,
		Success:   rec.Success,
		Metadata:  rec.Metadata,
		CreatedAt: rec.CreatedAt,
	}
}

func toPublicInteractions(recs []model.Interaction) []Interaction {
	out := make([]Interaction, len(recs))
	for i, rec := range recs {
		out[i] = toPublicInteraction(rec)
	}
	return out
}

func toPublicPattern(p model.Pattern) Pattern {
	return Pattern{
		Key:              p.Key,
		Description:      p.Description,
		Context:          p.Context,
		Action:           p.Action,
		SuccessCount:     p.SuccessCount,
		FailureCount:     p.FailureCount,
		ObservationCount: p.ObservationCount,
		SuccessRate:      p.SuccessRate,
		ConfidenceScore:  p.ConfidenceScore,
		AvgImpact:        p.AvgImpact,
		LearnedRule:      p.LearnedRule,
		FirstSeenAt:      p.FirstSeenAt,
		LastUpdatedAt:    p.LastUpdatedAt,
	}
}

func toPublicPatterns(ps []model.Pattern) []Pattern {
	out := make([]Pattern, len(ps))
	for i, p := range ps {
		out[i] = toPublicPattern(p)
	}
	return out
}

func toPublicScore(s model.FrameworkScore) FrameworkScore {
	return FrameworkScore{
		ID:              s.ID,
		DealID:          s.DealID,
		Framework:       s.Framework,
		OverallScore:    s.OverallScore,
		DimensionScores: s.DimensionScores,
		Gaps:            s.Gaps,
		Recommendations: s.Recommendations,
		Reasoning:       s.Reasoning,
		CreatedAt:       s.CreatedAt,
	}
}

func toPublicPrediction(p model.Prediction) Prediction {
	return Prediction{
		ID:             p.ID,
		DealID:         p.DealID,
		Kind:           string(p.Kind),
		PredictedValue: p.PredictedValue,
		CILower:        p.CILower,
		CIUpper:        p.CIUpper,
		Confidence:     p.Confidence,
		ModelID:        p.ModelID,
		Features:       p.Features,
		CreatedAt:      p.CreatedAt,
	}
}

func toPublicAlert(a model.Alert) Alert {
	return Alert{
		ID:                a.ID,
		DealID:            a.DealID,
		Kind:              string(a.Kind),
		Severity:          string(a.Severity),
		Title:             a.Title,
		Message:           a.Message,
		RecommendedAction: a.RecommendedAction,
		Sent:              a.Sent,
		SentChannel:       a.SentChannel,
		SentAt:            a.SentAt,
		Acknowledged:      a.Acknowledged,
		CreatedAt:         a.CreatedAt,
	}
}

func toPublicResult(r model.AnalysisResult) AnalysisResult {
	scores := make([]FrameworkScore, len(r.Scores))
	for i, s := range r.Scores {
		scores[i] = toPublicScore(s)
	}
	alerts := make([]Alert, len(r.Alerts))
	for i, a := range r.Alerts {
		alerts[i] = toPublicAlert(a)
	}
	var pred *Prediction
	if r.Prediction != nil {
		p := toPublicPrediction(*r.Prediction)
		pred = &p
	}
	return AnalysisResult{
		RunID:           r.RunID,
		DealID:          r.DealID,
		Status:          string(r.Status),
		Intent:          string(r.Intent),
		Scores:          scores,
		Prediction:      pred,
		Alerts:          alerts,
		Insights:        toPublicPatterns(r.Insights),
		Errors:          r.Errors,
		DaysSinceUpdate: r.DaysSinceUpdate,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
	}
}
