package pipewise

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewise-ai/pipewise/internal/config"
	"github.com/pipewise-ai/pipewise/internal/model"
	"github.com/pipewise-ai/pipewise/internal/orchestrator"
	"github.com/pipewise-ai/pipewise/internal/scoring"
	"github.com/pipewise-ai/pipewise/internal/storage"
)

func TestOptionsApply(t *testing.T) {
	timeout := 5 * time.Second
	o := resolvedOptions{}
	for _, fn := range []Option{
		WithDatabaseURL("postgres://x"),
		WithVersion("1.2.3"),
		WithEnabledFrameworks("meddic"),
		WithEpisodicCapacity(500),
		WithPerDealCapacity(25),
		WithMinConfidence(0.7),
		WithScoreTimeout(timeout),
		WithMaxScoreRetries(1),
		WithMigrations(false),
	} {
		fn(&o)
	}

	assert.Equal(t, "postgres://x", o.databaseURL)
	assert.Equal(t, "1.2.3", o.version)
	assert.Equal(t, []string{"meddic"}, o.enabledFrameworks)
	require.NotNil(t, o.episodicCapacity)
	assert.Equal(t, 500, *o.episodicCapacity)
	require.NotNil(t, o.perDealCapacity)
	assert.Equal(t, 25, *o.perDealCapacity)
	require.NotNil(t, o.minConfidence)
	assert.Equal(t, 0.7, *o.minConfidence)
	require.NotNil(t, o.scoreTimeout)
	assert.Equal(t, timeout, *o.scoreTimeout)
	require.NotNil(t, o.maxScoreRetries)
	assert.Equal(t, 1, *o.maxScoreRetries)
	assert.True(t, o.skipMigrations)
}

func TestWithPredictorNilDisablesPrediction(t *testing.T) {
	o := resolvedOptions{}
	WithPredictor(nil)(&o)
	assert.True(t, o.predictorSet)
	assert.Nil(t, o.predictor)
}

func TestMinConfidenceResolution(t *testing.T) {
	e := &Engine{cfg: config.Config{MinConfidence: 0.5}}

	assert.Equal(t, 0.5, e.minConfidenceOr(-1), "negative falls back to the configured minimum")
	assert.Equal(t, 0.0, e.minConfidenceOr(0), "zero is an explicit no-floor request")
	assert.Equal(t, 0.3, e.minConfidenceOr(0.3), "per-call floor wins over config")
}

func TestTranslateErr(t *testing.T) {
	assert.NoError(t, translateErr(nil))
	assert.ErrorIs(t, translateErr(orchestrator.ErrAnalysisInProgress), ErrAnalysisInProgress)
	assert.ErrorIs(t, translateErr(orchestrator.ErrMissingExternalID), ErrMissingExternalID)
	assert.ErrorIs(t, translateErr(storage.ErrNotFound), ErrNotFound)

	opaque := errors.New("connection refused")
	assert.Equal(t, opaque, translateErr(opaque))
}

func TestSnapshotConversionRoundTrip(t *testing.T) {
	closeDate := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	snap := DealSnapshot{
		ExternalID:        "sf-001",
		Name:              "Acme renewal",
		CompanyName:       "Acme Corp",
		Value:             120000,
		Currency:          "USD",
		Stage:             StageNegotiation,
		Probability:       70,
		ExpectedCloseDate: &closeDate,
		OwnerEmail:        "rep@example.com",
		SourceData:        map[string]any{"budget_confirmed": true},
		UpdatedAt:         &updated,
	}

	got := toPublicSnapshot(fromPublicSnapshot(snap))
	assert.Equal(t, snap, got)
}

func TestResultConversion(t *testing.T) {
	dealID := uuid.New()
	rate := 0.9
	internal := model.AnalysisResult{
		RunID:  uuid.New(),
		DealID: dealID,
		Status: model.RunDegraded,
		Intent: model.IntentAnalyze,
		Scores: []model.FrameworkScore{{
			DealID:       dealID,
			Framework:    "meddic",
			OverallScore: 72,
		}},
		Alerts: []model.Alert{{
			DealID:   dealID,
			Kind:     model.AlertDealStalled,
			Severity: model.SeverityMedium,
		}},
		Insights: []model.Pattern{{
			Key:         "negotiation_send_pricing",
			SuccessRate: &rate,
		}},
		Errors:          map[string]string{"bant": "adapter down"},
		DaysSinceUpdate: 12,
	}

	got := toPublicResult(internal)
	assert.Equal(t, "degraded", got.Status)
	assert.Equal(t, "analyze", got.Intent)
	require.Len(t, got.Scores, 1)
	assert.Equal(t, "meddic", got.Scores[0].Framework)
	assert.Equal(t, 72, got.Scores[0].OverallScore)
	require.Len(t, got.Alerts, 1)
	assert.Equal(t, "deal_stalled", got.Alerts[0].Kind)
	assert.Equal(t, "medium", got.Alerts[0].Severity)
	require.Len(t, got.Insights, 1)
	assert.Equal(t, "negotiation_send_pricing", got.Insights[0].Key)
	assert.Equal(t, map[string]string{"bant": "adapter down"}, got.Errors)
	assert.Nil(t, got.Prediction)
	assert.Equal(t, 12, got.DaysSinceUpdate)
}

type stubScorer struct {
	name  string
	score FrameworkScore
	err   error
}

func (s stubScorer) Name() string { return s.name }
func (s stubScorer) Score(ctx context.Context, snap DealSnapshot) (FrameworkScore, error) {
	return s.score, s.err
}

func TestScorerAdapterStampsFrameworkAndAgent(t *testing.T) {
	adapter := scorerAdapter{inner: stubScorer{
		name: "custom",
		score: FrameworkScore{
			OverallScore:    55,
			DimensionScores: map[string]int{"fit": 55},
		},
	}}

	assert.Equal(t, "custom", adapter.Name())

	got, err := adapter.Score(context.Background(), model.DealSnapshot{ExternalID: "sf-1"})
	require.NoError(t, err)
	assert.Equal(t, "custom", got.Framework)
	assert.Equal(t, "custom", got.AgentName)
	assert.Equal(t, 55, got.OverallScore)
}

func TestScorerAdapterPropagatesErrors(t *testing.T) {
	wantErr := errors.New("upstream down")
	adapter := scorerAdapter{inner: stubScorer{name: "custom", err: wantErr}}

	_, err := adapter.Score(context.Background(), model.DealSnapshot{})
	assert.ErrorIs(t, err, wantErr)
}

type stubPredictor struct{}

func (stubPredictor) ModelID() string { return "stub-v1" }
func (stubPredictor) Predict(ctx context.Context, snap DealSnapshot) (Prediction, error) {
	return Prediction{Kind: "win_probability", PredictedValue: 0.8}, nil
}

func TestPredictorAdapterStampsModelID(t *testing.T) {
	adapter := predictorAdapter{inner: stubPredictor{}}

	got, err := adapter.Predict(context.Background(), model.DealSnapshot{})
	require.NoError(t, err)
	assert.Equal(t, model.PredictionWinProbability, got.Kind)
	assert.Equal(t, 0.8, got.PredictedValue)
	assert.Equal(t, "stub-v1", got.ModelID)
}

type recordingNotifier struct {
	gotDeal  Deal
	gotAlert Alert
}

func (n *recordingNotifier) Notify(ctx context.Context, deal Deal, alert Alert) (string, error) {
	n.gotDeal = deal
	n.gotAlert = alert
	return "slack", nil
}

func TestNotifierAdapterConvertsAtBoundary(t *testing.T) {
	rec := &recordingNotifier{}
	adapter := notifierAdapter{inner: rec}

	dealID := uuid.New()
	channel, err := adapter.Notify(context.Background(),
		model.Deal{ID: dealID, Stage: model.StageNegotiation},
		model.Alert{DealID: dealID, Kind: model.AlertLowScore, Severity: model.SeverityHigh})
	require.NoError(t, err)
	assert.Equal(t, "slack", channel)
	assert.Equal(t, dealID, rec.gotDeal.ID)
	assert.Equal(t, StageNegotiation, rec.gotDeal.Stage)
	assert.Equal(t, "low_score", rec.gotAlert.Kind)
	assert.Equal(t, "high", rec.gotAlert.Severity)
}

func TestErrorConstructorsClassify(t *testing.T) {
	base := errors.New("rate limited")
	transient := TransientError(base)
	permanent := PermanentError(errors.New("bad credentials"))

	assert.ErrorIs(t, transient, base)
	assert.True(t, scoring.IsTransient(transient))
	assert.True(t, scoring.IsPermanent(permanent))
	assert.False(t, scoring.IsTransient(permanent))
}
