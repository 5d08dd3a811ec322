package scoring

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/pipewise-ai/pipewise/internal/model"
)

// ScoreWithRetry invokes the scorer with a per-attempt timeout, retrying up
// to maxRetries extra attempts on transient failures with jittered
// exponential backoff. Permanent failures and parent-context cancellation
// return immediately.
func ScoreWithRetry(ctx context.Context, s Scorer, snap model.DealSnapshot, timeout time.Duration, maxRetries int) (model.FrameworkScore, error) {
	baseDelay := 100 * time.Millisecond

	var err error
	for attempt := range maxRetries + 1 {
		var score model.FrameworkScore
		score, err = scoreOnce(ctx, s, snap, timeout)
		if err == nil {
			return score, nil
		}
		if !IsTransient(err) || ctx.Err() != nil || attempt == maxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(baseDelay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		select {
		case <-ctx.Done():
			return model.FrameworkScore{}, ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return model.FrameworkScore{}, err
}

func scoreOnce(ctx context.Context, s Scorer, snap model.DealSnapshot, timeout time.Duration) (model.FrameworkScore, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.Score(ctx, snap)
}
