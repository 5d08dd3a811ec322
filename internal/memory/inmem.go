package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pipewise-ai/pipewise/internal/confidence"
	"github.com/pipewise-ai/pipewise/internal/model"
	"github.com/pipewise-ai/pipewise/internal/storage"
)

// InMemoryEventStore is a mutex-guarded EventStore for tests.
type InMemoryEventStore struct {
	mu      sync.Mutex
	records []model.Interaction
}

// NewInMemoryEventStore returns an empty in-memory event store.
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

// InsertInteraction appends a record, assigning ID and timestamp.
func (s *InMemoryEventStore) InsertInteraction(_ context.Context, in model.InteractionInput) (model.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	metadata := in.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	rec := model.Interaction{
		ID:        uuid.New(),
		DealID:    in.DealID,
		Kind:      in.Kind,
		AgentName: in.AgentName,
		Context:   in.Context,
		Action:    in.Action,
		Outcome:   in.Outcome,
		Success:   in.Success,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	s.records = append(s.records, rec)
	return rec, nil
}

// ListInteractionsByDeal returns a deal's records, most recent first.
func (s *InMemoryEventStore) ListInteractionsByDeal(_ context.Context, dealID uuid.UUID, kind model.InteractionKind, limit int) ([]model.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []model.Interaction
	// Records append in time order; walk backwards for recency.
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[i]
		if rec.DealID != dealID {
			continue
		}
		if kind != "" && rec.Kind != kind {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// SearchInteractionsByContext returns records whose context contains the
// query, case-insensitively, most recent first.
func (s *InMemoryEventStore) SearchInteractionsByContext(_ context.Context, query string, limit int) ([]model.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	q := strings.ToLower(query)
	var out []model.Interaction
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if strings.Contains(strings.ToLower(s.records[i].Context), q) {
			out = append(out, s.records[i])
		}
	}
	return out, nil
}

// CountInteractions returns the total number of records.
func (s *InMemoryEventStore) CountInteractions(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

// InMemoryPatternStore is a mutex-guarded PatternStore for tests. Its
// ObservePattern holds the lock across the full read-modify-write, giving the
// same no-lost-update guarantee as the Postgres implementation.
type InMemoryPatternStore struct {
	mu       sync.Mutex
	patterns map[string]*model.Pattern
}

// NewInMemoryPatternStore returns an empty in-memory pattern store.
func NewInMemoryPatternStore() *InMemoryPatternStore {
	return &InMemoryPatternStore{patterns: make(map[string]*model.Pattern)}
}

// ObservePattern folds one observation into the keyed pattern, creating it
// on first observation.
func (s *InMemoryPatternStore) ObservePattern(_ context.Context, obs storage.PatternObservation) (model.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	p, ok := s.patterns[obs.Key]
	if !ok {
		p = &model.Pattern{
			ID:          uuid.New(),
			Key:         obs.Key,
			Description: obs.Description,
			Context:     obs.Context,
			Action:      obs.Action,
			Metadata:    map[string]any{},
			FirstSeenAt: now,
		}
		s.patterns[obs.Key] = p
	}

	if obs.Success {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	p.ObservationCount = p.SuccessCount + p.FailureCount
	if obs.Impact != nil {
		p.AvgImpact += (*obs.Impact - p.AvgImpact) / float64(p.ObservationCount)
	}

	rate, score := confidence.Estimate(p.SuccessCount, p.FailureCount)
	p.SuccessRate = &rate
	p.ConfidenceScore = score
	if p.Description == "" {
		p.Description = obs.Description
	}
	p.LearnedRule = confidence.Rule(p.Description, p.SuccessCount, p.FailureCount)
	p.LastUpdatedAt = now

	return clonePattern(p), nil
}

// GetPattern retrieves one pattern by key.
func (s *InMemoryPatternStore) GetPattern(_ context.Context, key string) (model.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[key]
	if !ok {
		return model.Pattern{}, storage.ErrNotFound
	}
	return clonePattern(p), nil
}

// ListPatterns returns patterns at or above minConfidence, strongest first.
func (s *InMemoryPatternStore) ListPatterns(_ context.Context, contextFilter string, minConfidence float64, limit int) ([]model.Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}
	var out []model.Pattern
	for _, p := range s.patterns {
		if p.ObservationCount == 0 || p.ConfidenceScore < minConfidence {
			continue
		}
		if contextFilter != "" && !model.MatchesContext(p.Context, contextFilter) {
			continue
		}
		out = append(out, clonePattern(p))
	}
	sort.Slice(out, func(i, j int) bool {
		si := out[i].ConfidenceScore * rateOf(out[i])
		sj := out[j].ConfidenceScore * rateOf(out[j])
		if si != sj {
			return si > sj
		}
		return out[i].ObservationCount > out[j].ObservationCount
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CountPatterns returns the number of patterns with at least one observation.
func (s *InMemoryPatternStore) CountPatterns(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, p := range s.patterns {
		if p.ObservationCount > 0 {
			n++
		}
	}
	return n, nil
}

func rateOf(p model.Pattern) float64 {
	if p.SuccessRate == nil {
		return 0
	}
	return *p.SuccessRate
}

func clonePattern(p *model.Pattern) model.Pattern {
	out := *p
	if p.SuccessRate != nil {
		rate := *p.SuccessRate
		out.SuccessRate = &rate
	}
	return out
}

var (
	_ EventStore   = (*InMemoryEventStore)(nil)
	_ PatternStore = (*InMemoryPatternStore)(nil)
)
