package confidence

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateZeroObservations(t *testing.T) {
	rate, score := Estimate(0, 0)
	assert.Zero(t, rate)
	assert.Zero(t, score)
}

func TestEstimateBounds(t *testing.T) {
	cases := []struct{ s, f int64 }{
		{1, 0}, {0, 1}, {2, 0}, {0, 2}, {5, 5}, {1, 99}, {99, 1},
		{1000, 1000}, {1, 1}, {3, 7},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_%d", tc.s, tc.f), func(t *testing.T) {
			rate, score := Estimate(tc.s, tc.f)
			assert.GreaterOrEqual(t, rate, 0.0)
			assert.LessOrEqual(t, rate, 1.0)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		})
	}
}

func TestEstimateExactRate(t *testing.T) {
	rate, score := Estimate(45, 55)
	assert.Equal(t, 0.45, rate)
	// A hundred observations warrant moderately high confidence.
	assert.Greater(t, score, 0.7)
	assert.Less(t, score, 0.95)
}

func TestEstimateFewObservationsNotCertain(t *testing.T) {
	// Two successes and no failures is a perfect rate but weak evidence.
	rate, score := Estimate(2, 0)
	assert.Equal(t, 1.0, rate)
	assert.Less(t, score, 0.5)
}

func TestEstimateConfidenceMonotoneInVolume(t *testing.T) {
	// Hold the rate at 50% and grow the sample; confidence must not drop.
	prev := -1.0
	for n := int64(1); n <= 512; n *= 2 {
		_, score := Estimate(n, n)
		require.GreaterOrEqual(t, score, prev, "n=%d", n)
		prev = score
	}
}

func TestEstimateDeterministic(t *testing.T) {
	r1, s1 := Estimate(17, 3)
	r2, s2 := Estimate(17, 3)
	assert.Equal(t, r1, r2)
	assert.Equal(t, s1, s2)
}

func TestRuleMentionsRateAndVolume(t *testing.T) {
	rule := Rule("send pricing during negotiation", 45, 55)
	assert.Contains(t, rule, "45%")
	assert.Contains(t, rule, "100 observations")
	assert.True(t, strings.HasPrefix(rule, "send pricing during negotiation"))
}

func TestRuleNoObservations(t *testing.T) {
	rule := Rule("untested play", 0, 0)
	assert.Contains(t, rule, "no observations")
}
