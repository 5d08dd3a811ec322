package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewise-ai/pipewise/internal/memory"
	"github.com/pipewise-ai/pipewise/internal/model"
	"github.com/pipewise-ai/pipewise/internal/scoring"
	"github.com/pipewise-ai/pipewise/internal/testutil"
)

type fakeDealStore struct {
	mu        sync.Mutex
	deals     map[string]model.Deal
	upsertErr error
}

func newFakeDealStore() *fakeDealStore {
	return &fakeDealStore{deals: make(map[string]model.Deal)}
}

func (f *fakeDealStore) UpsertDealBySource(_ context.Context, snap model.DealSnapshot) (model.Deal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return model.Deal{}, f.upsertErr
	}
	updatedAt := time.Now().UTC()
	if snap.UpdatedAt != nil {
		updatedAt = *snap.UpdatedAt
	}
	d, ok := f.deals[snap.ExternalID]
	if !ok {
		d = model.Deal{ID: uuid.New(), ExternalID: snap.ExternalID, CreatedAt: time.Now().UTC()}
	}
	d.Name = snap.Name
	d.Stage = snap.Stage
	d.Probability = snap.Probability
	d.UpdatedAt = updatedAt
	d.IsActive = true
	f.deals[snap.ExternalID] = d
	return d, nil
}

type fakeResultStore struct {
	mu          sync.Mutex
	scores      []model.FrameworkScore
	predictions []model.Prediction
	alerts      []model.Alert
	sent        map[uuid.UUID]string
	scoreErr    error
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{sent: make(map[uuid.UUID]string)}
}

func (f *fakeResultStore) InsertScore(_ context.Context, s model.FrameworkScore) (model.FrameworkScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.scoreErr != nil {
		return model.FrameworkScore{}, f.scoreErr
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	f.scores = append(f.scores, s)
	return s, nil
}

func (f *fakeResultStore) InsertPrediction(_ context.Context, p model.Prediction) (model.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	f.predictions = append(f.predictions, p)
	return p, nil
}

func (f *fakeResultStore) InsertAlert(_ context.Context, a model.Alert) (model.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	f.alerts = append(f.alerts, a)
	return a, nil
}

func (f *fakeResultStore) MarkAlertSent(_ context.Context, id uuid.UUID, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent[id] = channel
	return nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	delivered []model.Alert
	err       error
}

func (f *fakeNotifier) Notify(_ context.Context, _ model.Deal, a model.Alert) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.delivered = append(f.delivered, a)
	return "test-channel", nil
}

type blockingScorer struct {
	startedOnce sync.Once
	started     chan struct{}
	release     chan struct{}
}

func (b *blockingScorer) Name() string { return "blocking" }
func (b *blockingScorer) Score(ctx context.Context, _ model.DealSnapshot) (model.FrameworkScore, error) {
	b.startedOnce.Do(func() { close(b.started) })
	select {
	case <-b.release:
		return model.FrameworkScore{Framework: "blocking", OverallScore: 50}, nil
	case <-ctx.Done():
		return model.FrameworkScore{}, ctx.Err()
	}
}

type failingScorer struct{ name string }

func (f *failingScorer) Name() string { return f.name }
func (f *failingScorer) Score(context.Context, model.DealSnapshot) (model.FrameworkScore, error) {
	return model.FrameworkScore{}, scoring.Permanent(errors.New("adapter down"))
}

type harness struct {
	orch     *Orchestrator
	deals    *fakeDealStore
	results  *fakeResultStore
	events   *memory.InMemoryEventStore
	patterns *memory.InMemoryPatternStore
	notifier *fakeNotifier
}

func newHarness(t *testing.T, registry *scoring.Registry, predictor scoring.Predictor, cfg Config) *harness {
	t.Helper()
	logger := testutil.TestLogger()

	h := &harness{
		deals:    newFakeDealStore(),
		results:  newFakeResultStore(),
		events:   memory.NewInMemoryEventStore(),
		patterns: memory.NewInMemoryPatternStore(),
		notifier: &fakeNotifier{},
	}
	h.orch = New(
		h.deals,
		h.results,
		memory.NewEpisodic(h.events, logger),
		memory.NewAggregator(h.patterns, logger),
		memory.NewRecall(h.events, h.patterns),
		registry,
		predictor,
		h.notifier,
		cfg,
		logger,
	)
	return h
}

func defaultRegistry() *scoring.Registry {
	r := scoring.NewRegistry()
	r.Register(scoring.NewMEDDICScorer())
	r.Register(scoring.NewBANTScorer())
	return r
}

func freshSnapshot(externalID string) model.DealSnapshot {
	now := time.Now().UTC()
	return model.DealSnapshot{
		ExternalID:  externalID,
		Name:        "Acme expansion",
		Stage:       model.StageNegotiation,
		Probability: 70,
		UpdatedAt:   &now,
	}
}

func TestAnalyzeDealHappyPath(t *testing.T) {
	h := newHarness(t, defaultRegistry(), scoring.NaivePredictor{}, Config{})

	res, err := h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-happy"))
	require.NoError(t, err)

	assert.Equal(t, model.RunSucceeded, res.Status)
	assert.Equal(t, model.IntentAnalyze, res.Intent)
	assert.Len(t, res.Scores, 2)
	require.NotNil(t, res.Prediction)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Alerts, "fresh healthy deal raises no alerts")

	// Findings persisted.
	assert.Len(t, h.results.scores, 2)
	assert.Len(t, h.results.predictions, 1)

	// Episodic memory recorded the run as a success.
	recs, err := h.events.ListInteractionsByDeal(context.Background(), res.DealID, "", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Success)
	assert.True(t, *recs[0].Success)
	assert.Equal(t, "negotiation", recs[0].Context)

	// Semantic memory learned from both frameworks.
	n, err := h.patterns.CountPatterns(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	p, err := h.patterns.GetPattern(context.Background(), "negotiation_meddic_analysis")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ObservationCount)
}

func TestAnalyzeDealDegradedWhenOneScorerFails(t *testing.T) {
	reg := scoring.NewRegistry()
	reg.Register(scoring.NewMEDDICScorer())
	reg.Register(&failingScorer{name: "bant"})

	h := newHarness(t, reg, scoring.NaivePredictor{}, Config{})

	res, err := h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-degraded"))
	require.NoError(t, err)

	assert.Equal(t, model.RunDegraded, res.Status)
	assert.Len(t, res.Scores, 1)
	require.Contains(t, res.Errors, "bant", "the missing framework is flagged, never silent")
	assert.Contains(t, res.Errors["bant"], "adapter down")
}

func TestAnalyzeDealDegradedWithoutPredictor(t *testing.T) {
	h := newHarness(t, defaultRegistry(), nil, Config{})

	res, err := h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-nopred"))
	require.NoError(t, err)

	assert.Equal(t, model.RunDegraded, res.Status)
	assert.Len(t, res.Scores, 2)
	assert.Nil(t, res.Prediction)
}

func TestAnalyzeDealFailsWhenAllScorersFail(t *testing.T) {
	reg := scoring.NewRegistry()
	reg.Register(&failingScorer{name: "meddic"})
	reg.Register(&failingScorer{name: "bant"})

	h := newHarness(t, reg, scoring.NaivePredictor{}, Config{})

	res, err := h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-allfail"))
	require.NoError(t, err)

	assert.Equal(t, model.RunFailed, res.Status, "no scores at all is a failure, not degradation")
	assert.Empty(t, res.Scores)
	assert.Contains(t, res.Errors, "meddic")
	assert.Contains(t, res.Errors, "bant")

	// The failure itself is episodic memory.
	recs, err := h.events.ListInteractionsByDeal(context.Background(), res.DealID, "", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].Success)
	assert.False(t, *recs[0].Success)

	// Nothing was learned from a run that produced nothing.
	n, err := h.patterns.CountPatterns(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAnalyzeDealFailsOnPerceiveError(t *testing.T) {
	h := newHarness(t, defaultRegistry(), scoring.NaivePredictor{}, Config{})
	h.deals.upsertErr = errors.New("database down")

	res, err := h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-noperc"))
	require.NoError(t, err)

	assert.Equal(t, model.RunFailed, res.Status)
	assert.Contains(t, res.Errors["perceive"], "database down")
	assert.Equal(t, uuid.Nil, res.DealID)
}

func TestAnalyzeDealFailsOnReflectStorageError(t *testing.T) {
	h := newHarness(t, defaultRegistry(), scoring.NaivePredictor{}, Config{})
	h.results.scoreErr = errors.New("disk full")

	res, err := h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-noreflect"))
	require.NoError(t, err)

	assert.Equal(t, model.RunFailed, res.Status)
	assert.Contains(t, res.Errors["reflect"], "disk full")
}

func TestAnalyzeDealStalledAlertSeverities(t *testing.T) {
	cases := []struct {
		days     int
		severity model.AlertSeverity
	}{
		{12, model.SeverityMedium},
		{22, model.SeverityHigh},
		{35, model.SeverityCritical},
	}
	for _, tc := range cases {
		t.Run(string(tc.severity), func(t *testing.T) {
			h := newHarness(t, defaultRegistry(), scoring.NaivePredictor{}, Config{})

			stale := time.Now().UTC().Add(-time.Duration(tc.days) * 24 * time.Hour)
			snap := freshSnapshot("crm-stalled")
			snap.UpdatedAt = &stale

			res, err := h.orch.AnalyzeDeal(context.Background(), snap)
			require.NoError(t, err)

			assert.Equal(t, model.IntentAlert, res.Intent)
			require.Len(t, res.Alerts, 1)
			alert := res.Alerts[0]
			assert.Equal(t, model.AlertDealStalled, alert.Kind)
			assert.Equal(t, tc.severity, alert.Severity)

			// Delivered through the notifier and recorded as sent.
			assert.Len(t, h.notifier.delivered, 1)
			assert.True(t, alert.Sent)
			require.NotNil(t, alert.SentChannel)
			assert.Equal(t, "test-channel", *alert.SentChannel)
		})
	}
}

func TestAnalyzeDealNoStalledAlertForClosedDeal(t *testing.T) {
	h := newHarness(t, defaultRegistry(), scoring.NaivePredictor{}, Config{})

	stale := time.Now().UTC().Add(-40 * 24 * time.Hour)
	snap := freshSnapshot("crm-closed")
	snap.Stage = model.StageClosedWon
	snap.UpdatedAt = &stale

	res, err := h.orch.AnalyzeDeal(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, model.IntentMonitor, res.Intent)
	assert.Empty(t, res.Alerts, "terminal stages never stall")
}

func TestAnalyzeDealLowScoreAlert(t *testing.T) {
	h := newHarness(t, defaultRegistry(), scoring.NaivePredictor{}, Config{})

	snap := freshSnapshot("crm-weak")
	snap.Stage = model.StageQualification
	snap.Probability = 5

	res, err := h.orch.AnalyzeDeal(context.Background(), snap)
	require.NoError(t, err)

	require.Len(t, res.Alerts, 1)
	assert.Equal(t, model.AlertLowScore, res.Alerts[0].Kind)
	assert.Equal(t, model.SeverityHigh, res.Alerts[0].Severity)
}

func TestAnalyzeDealNotifierFailureIsNonFatal(t *testing.T) {
	h := newHarness(t, defaultRegistry(), scoring.NaivePredictor{}, Config{})
	h.notifier.err = errors.New("slack is down")

	stale := time.Now().UTC().Add(-15 * 24 * time.Hour)
	snap := freshSnapshot("crm-undelivered")
	snap.UpdatedAt = &stale

	res, err := h.orch.AnalyzeDeal(context.Background(), snap)
	require.NoError(t, err)

	assert.Equal(t, model.RunSucceeded, res.Status)
	require.Len(t, res.Alerts, 1)
	assert.False(t, res.Alerts[0].Sent, "alert stays stored but unsent")
}

func TestAnalyzeDealRejectsConcurrentRunOnSameDeal(t *testing.T) {
	blocker := &blockingScorer{started: make(chan struct{}), release: make(chan struct{})}
	reg := scoring.NewRegistry()
	reg.Register(blocker)

	h := newHarness(t, reg, scoring.NaivePredictor{}, Config{})

	done := make(chan model.AnalysisResult, 1)
	go func() {
		res, err := h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-locked"))
		assert.NoError(t, err)
		done <- res
	}()

	<-blocker.started
	_, err := h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-locked"))
	assert.ErrorIs(t, err, ErrAnalysisInProgress)

	close(blocker.release)
	res := <-done
	assert.Equal(t, model.RunSucceeded, res.Status)

	// Lock released after the run; the same deal can run again.
	_, err = h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-locked"))
	assert.NoError(t, err)
}

func TestAnalyzeDealRequiresExternalID(t *testing.T) {
	h := newHarness(t, defaultRegistry(), scoring.NaivePredictor{}, Config{})

	_, err := h.orch.AnalyzeDeal(context.Background(), model.DealSnapshot{Name: "anonymous"})
	assert.ErrorIs(t, err, ErrMissingExternalID)
}

func TestAnalyzeDealUsesLearnedInsights(t *testing.T) {
	h := newHarness(t, defaultRegistry(), scoring.NaivePredictor{}, Config{MinConfidence: 0.5})

	// Seed semantic memory with a well-established pattern for this stage.
	agg := memory.NewAggregator(h.patterns, testutil.TestLogger())
	for range 30 {
		_, err := agg.Observe(context.Background(), "negotiation", "send pricing", true, nil)
		require.NoError(t, err)
	}

	res, err := h.orch.AnalyzeDeal(context.Background(), freshSnapshot("crm-insight"))
	require.NoError(t, err)

	require.NotEmpty(t, res.Insights)
	assert.Equal(t, "negotiation_send_pricing", res.Insights[0].Key)
}
