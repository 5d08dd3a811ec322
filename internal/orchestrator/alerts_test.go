package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pipewise-ai/pipewise/internal/model"
)

func TestStalledSeverityScaling(t *testing.T) {
	cases := []struct {
		days     int
		severity model.AlertSeverity
		fires    bool
	}{
		{0, "", false},
		{9, "", false},
		{10, model.SeverityMedium, true},
		{19, model.SeverityMedium, true},
		{20, model.SeverityHigh, true},
		{29, model.SeverityHigh, true},
		{30, model.SeverityCritical, true},
		{120, model.SeverityCritical, true},
	}
	for _, tc := range cases {
		sev, ok := stalledSeverity(tc.days)
		assert.Equal(t, tc.fires, ok, "days=%d", tc.days)
		assert.Equal(t, tc.severity, sev, "days=%d", tc.days)
	}
}

func TestAllScoresBelow(t *testing.T) {
	scores := func(vals ...int) []model.FrameworkScore {
		out := make([]model.FrameworkScore, len(vals))
		for i, v := range vals {
			out[i].OverallScore = v
		}
		return out
	}

	assert.True(t, allScoresBelow(scores(10, 39), 40))
	assert.False(t, allScoresBelow(scores(10, 40), 40))
	assert.False(t, allScoresBelow(scores(90), 40))
	assert.True(t, allScoresBelow(nil, 40), "vacuously true; callers must gate on non-empty scores")
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, model.SeverityCritical.AtLeast(model.SeverityMedium))
	assert.True(t, model.SeverityMedium.AtLeast(model.SeverityMedium))
	assert.False(t, model.SeverityLow.AtLeast(model.SeverityHigh))
}
