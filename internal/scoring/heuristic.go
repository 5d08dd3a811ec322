package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// Dimension sets for the built-in frameworks.
var (
	meddicDimensions = []string{
		"metrics", "economic_buyer", "decision_criteria",
		"decision_process", "identify_pain", "champion",
	}
	bantDimensions = []string{"budget", "authority", "need", "timing"}
)

// stageBaseline anchors dimension scores to pipeline progress.
var stageBaseline = map[model.Stage]int{
	model.StageQualification: 35,
	model.StageProposal:      50,
	model.StageNegotiation:   65,
	model.StageClosedWon:     90,
	model.StageClosedLost:    20,
}

// BaselineScorer is a deterministic heuristic scorer. It needs no external
// service: dimension scores derive from pipeline stage, CRM probability, and
// per-dimension evidence flags in the snapshot's source data. It exists so
// the engine produces useful output before any LLM-backed scorer is plugged
// in, and serves as the reference for adapter behavior in tests.
type BaselineScorer struct {
	framework  string
	dimensions []string
}

// NewMEDDICScorer returns the baseline MEDDIC scorer.
func NewMEDDICScorer() *BaselineScorer {
	return &BaselineScorer{framework: "meddic", dimensions: meddicDimensions}
}

// NewBANTScorer returns the baseline BANT scorer.
func NewBANTScorer() *BaselineScorer {
	return &BaselineScorer{framework: "bant", dimensions: bantDimensions}
}

// Name returns the framework identifier.
func (b *BaselineScorer) Name() string { return b.framework }

// Score evaluates the snapshot. Dimensions scoring below 50 become gaps, and
// recommendations address the weakest dimensions first.
func (b *BaselineScorer) Score(ctx context.Context, snap model.DealSnapshot) (model.FrameworkScore, error) {
	if err := ctx.Err(); err != nil {
		return model.FrameworkScore{}, Transient(err)
	}
	if snap.ExternalID == "" {
		return model.FrameworkScore{}, Permanent(fmt.Errorf("scoring: snapshot has no external id"))
	}

	base, ok := stageBaseline[snap.Stage]
	if !ok {
		base = 40
	}
	// Blend stage progress with the rep's own read on the deal.
	base = (base + clamp(snap.Probability, 0, 100)) / 2

	dims := make(map[string]int, len(b.dimensions))
	total := 0
	for _, dim := range b.dimensions {
		score := clamp(base+evidenceAdjustment(snap.SourceData, dim), 0, 100)
		dims[dim] = score
		total += score
	}
	overall := total / len(b.dimensions)

	var gaps []string
	for _, dim := range b.dimensions {
		if dims[dim] < 50 {
			gaps = append(gaps, dim)
		}
	}
	sort.Slice(gaps, func(i, j int) bool {
		if dims[gaps[i]] != dims[gaps[j]] {
			return dims[gaps[i]] < dims[gaps[j]]
		}
		return gaps[i] < gaps[j]
	})

	recs := make([]string, 0, len(gaps))
	for _, dim := range gaps {
		recs = append(recs, recommendationFor(dim))
	}

	return model.FrameworkScore{
		Framework:       b.framework,
		OverallScore:    overall,
		DimensionScores: dims,
		Gaps:            gaps,
		Recommendations: recs,
		Reasoning: fmt.Sprintf("%s baseline: stage %s, rep probability %d%%, %d of %d dimensions below threshold",
			strings.ToUpper(b.framework), snap.Stage, snap.Probability, len(gaps), len(b.dimensions)),
		AgentName: "baseline",
	}, nil
}

// evidenceAdjustment reads per-dimension evidence from CRM source data.
// A truthy value under the dimension name strengthens it, an explicit false
// weakens it, absence is neutral.
func evidenceAdjustment(sourceData map[string]any, dim string) int {
	v, ok := sourceData[dim]
	if !ok {
		return 0
	}
	switch val := v.(type) {
	case bool:
		if val {
			return 30
		}
		return -20
	case string:
		if strings.TrimSpace(val) != "" {
			return 30
		}
		return -20
	case float64:
		if val > 0 {
			return 30
		}
		return -20
	default:
		return 0
	}
}

func recommendationFor(dim string) string {
	switch dim {
	case "metrics":
		return "Quantify the business impact with concrete metrics"
	case "economic_buyer":
		return "Identify and engage the economic buyer"
	case "decision_criteria":
		return "Document the customer's decision criteria"
	case "decision_process":
		return "Map the decision process and key milestones"
	case "identify_pain":
		return "Validate the pain this deal solves"
	case "champion":
		return "Develop an internal champion"
	case "budget":
		return "Confirm budget availability and approval path"
	case "authority":
		return "Reach the stakeholder with signing authority"
	case "need":
		return "Sharpen the articulation of the customer's need"
	case "timing":
		return "Establish a compelling event and timeline"
	default:
		return "Address the " + dim + " gap"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NaivePredictor estimates win probability from pipeline stage blended with
// the rep's probability. Deterministic stand-in until a trained model is
// registered.
type NaivePredictor struct{}

// ModelID identifies the predictor on stored predictions.
func (NaivePredictor) ModelID() string { return "naive-v1" }

// Predict returns a win-probability prediction with a fixed-width interval.
func (NaivePredictor) Predict(ctx context.Context, snap model.DealSnapshot) (model.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return model.Prediction{}, Transient(err)
	}

	switch snap.Stage {
	case model.StageClosedWon:
		return pointPrediction(snap, 1.0), nil
	case model.StageClosedLost:
		return pointPrediction(snap, 0.0), nil
	}

	base, ok := stageBaseline[snap.Stage]
	if !ok {
		base = 40
	}
	p := (float64(base)/100 + float64(clamp(snap.Probability, 0, 100))/100) / 2
	lo := math.Max(0, p-0.15)
	hi := math.Min(1, p+0.15)

	return model.Prediction{
		Kind:           model.PredictionWinProbability,
		PredictedValue: p,
		CILower:        &lo,
		CIUpper:        &hi,
		Confidence:     0.5,
		ModelID:        "naive-v1",
		Features: map[string]any{
			"stage":       string(snap.Stage),
			"probability": snap.Probability,
			"value":       snap.Value,
		},
	}, nil
}

func pointPrediction(snap model.DealSnapshot, p float64) model.Prediction {
	return model.Prediction{
		Kind:           model.PredictionWinProbability,
		PredictedValue: p,
		CILower:        &p,
		CIUpper:        &p,
		Confidence:     1.0,
		ModelID:        "naive-v1",
		Features:       map[string]any{"stage": string(snap.Stage)},
	}
}

var (
	_ Scorer    = (*BaselineScorer)(nil)
	_ Predictor = NaivePredictor{}
)
