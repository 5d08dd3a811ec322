// Package confidence turns raw success/failure counts into calibrated
// pattern statistics.
//
// The estimator is pure and deterministic: no clocks, no randomness, no I/O.
// Confidence is derived from the width of the Wilson 95% score interval, so
// it grows with evidence volume rather than with the success rate itself.
// Two observations at 100% success score far lower than a hundred at 45%.
package confidence

import (
	"fmt"
	"math"
)

// z for a 95% two-sided interval.
const z95 = 1.959963984540054

// Estimate returns the raw success rate and a confidence score in [0,1] for
// the given counts. With zero observations both values are 0. For a fixed
// rate, confidence is non-decreasing in the number of observations.
func Estimate(successCount, failureCount int64) (successRate, confidenceScore float64) {
	n := successCount + failureCount
	if n <= 0 {
		return 0, 0
	}

	nf := float64(n)
	p := float64(successCount) / nf

	// Wilson score interval half-width; confidence = 1 - full width.
	z2 := z95 * z95
	halfWidth := z95 * math.Sqrt(p*(1-p)/nf+z2/(4*nf*nf)) / (1 + z2/nf)
	score := 1 - 2*halfWidth
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return p, score
}

// Rule renders the human-readable learned rule for a pattern.
// The percentage is the raw success rate rounded to the nearest point.
func Rule(description string, successCount, failureCount int64) string {
	n := successCount + failureCount
	if n <= 0 {
		return fmt.Sprintf("%s: no observations yet", description)
	}
	rate, _ := Estimate(successCount, failureCount)
	return fmt.Sprintf("%s: %d%% success rate over %d observations",
		description, int(math.Round(rate*100)), n)
}
