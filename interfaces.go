package pipewise

import (
	"context"
)

// Scorer evaluates a deal snapshot against one sales framework.
// When provided via WithFramework, the implementation runs alongside the
// built-in MEDDIC and BANT scorers under the same timeout and retry policy.
// Name must be unique; registering a second scorer with the same name
// replaces the first.
type Scorer interface {
	Name() string
	Score(ctx context.Context, snap DealSnapshot) (FrameworkScore, error)
}

// Predictor produces one prediction per analysis run.
// When provided via WithPredictor, replaces the built-in naive stage-based
// predictor. A predictor failure degrades the run rather than failing it.
type Predictor interface {
	ModelID() string
	Predict(ctx context.Context, snap DealSnapshot) (Prediction, error)
}

// Notifier delivers alerts through an external channel (Slack, email, a
// webhook) and reports which channel carried the message. Delivery is
// best-effort: failures are logged, the alert stays stored unsent.
type Notifier interface {
	Notify(ctx context.Context, deal Deal, alert Alert) (channel string, err error)
}

// TransientError marks err as retriable. Custom Scorers return these for
// failures worth another attempt (timeouts, rate limits, flaky upstreams).
func TransientError(err error) error { return scoringTransient(err) }

// PermanentError marks err as not worth retrying (bad input, missing
// credentials). The run records the failure and moves on.
func PermanentError(err error) error { return scoringPermanent(err) }
