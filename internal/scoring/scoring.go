// Package scoring defines the adapter boundary for deal evaluation.
//
// Scorers evaluate a deal snapshot against a qualification framework;
// predictors estimate outcomes. Both are pluggable: the engine ships
// deterministic baselines and callers register their own (LLM-backed or
// otherwise) through the same interfaces.
package scoring

import (
	"context"
	"fmt"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// Scorer evaluates one deal snapshot against one framework.
// Implementations must be safe for concurrent use: the act phase fans out
// over all enabled scorers in parallel.
type Scorer interface {
	// Name is the framework identifier, e.g. "meddic". Stable and unique.
	Name() string
	Score(ctx context.Context, snap model.DealSnapshot) (model.FrameworkScore, error)
}

// Predictor estimates a deal outcome from a snapshot.
type Predictor interface {
	// ModelID identifies the predictor for provenance on stored predictions.
	ModelID() string
	Predict(ctx context.Context, snap model.DealSnapshot) (model.Prediction, error)
}

// Registry holds the available scorers by framework name, preserving
// registration order. Not safe for concurrent mutation; register everything
// during engine construction.
type Registry struct {
	order   []string
	scorers map[string]Scorer
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{scorers: make(map[string]Scorer)}
}

// Register adds a scorer. Re-registering a name replaces the scorer but
// keeps its original position.
func (r *Registry) Register(s Scorer) {
	name := s.Name()
	if _, exists := r.scorers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.scorers[name] = s
}

// Get returns the scorer for a framework name.
func (r *Registry) Get(name string) (Scorer, bool) {
	s, ok := r.scorers[name]
	return s, ok
}

// Names returns all registered framework names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Resolve maps framework names to scorers, failing on the first unknown
// name. An empty request resolves to every registered scorer.
func (r *Registry) Resolve(names []string) ([]Scorer, error) {
	if len(names) == 0 {
		names = r.order
	}
	out := make([]Scorer, 0, len(names))
	for _, name := range names {
		s, ok := r.scorers[name]
		if !ok {
			return nil, fmt.Errorf("scoring: unknown framework %q", name)
		}
		out = append(out, s)
	}
	return out, nil
}
