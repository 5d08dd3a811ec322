package orchestrator

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pipewise-ai/pipewise/internal/scoring"
)

// act fans out over the planned scorers in parallel, invokes the predictor,
// and derives alerts from what came back. Individual adapter failures are
// recorded per framework and never abort the other adapters: partial results
// are the point.
func (o *Orchestrator) act(ctx context.Context, r *run) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range r.scorers {
		g.Go(func() error {
			score, err := scoring.ScoreWithRetry(gctx, s, r.snap, o.cfg.ScoreTimeout, o.cfg.MaxScoreRetries)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.errs[s.Name()] = err.Error()
				o.logger.Warn("scorer failed",
					"run_id", r.id, "framework", s.Name(), "error", err)
				return nil // keep the other scorers going
			}
			score.DealID = r.deal.ID
			r.scores = append(r.scores, score)
			return nil
		})
	}
	_ = g.Wait()

	if o.predictor != nil {
		pctx := ctx
		if o.cfg.ScoreTimeout > 0 {
			var cancel context.CancelFunc
			pctx, cancel = context.WithTimeout(ctx, o.cfg.ScoreTimeout)
			defer cancel()
		}
		pred, err := o.predictor.Predict(pctx, r.snap)
		if err != nil {
			r.errs["predictor"] = err.Error()
			o.logger.Warn("predictor failed", "run_id", r.id, "error", err)
		} else {
			pred.DealID = r.deal.ID
			r.prediction = &pred
		}
	}

	r.alerts = o.deriveAlerts(r)
}
