package pipewise

import (
	"io/fs"
	"log/slog"
	"time"
)

// Option configures an Engine.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	databaseURL       string
	logger            *slog.Logger
	version           string
	frameworks        []Scorer
	enabledFrameworks []string
	predictor         Predictor
	predictorSet      bool
	notifier          Notifier
	episodicCapacity  *int
	perDealCapacity   *int
	minConfidence     *float64
	scoreTimeout      *time.Duration
	maxScoreRetries   *int
	skipMigrations    bool
	extraMigrations   []fs.FS
}

// WithDatabaseURL overrides the database connection string from config
// (PIPEWISE_DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithLogger sets the structured logger for the Engine.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithFramework registers a custom scoring framework alongside the built-in
// MEDDIC and BANT scorers. Multiple frameworks may be registered; a scorer
// whose Name matches a built-in replaces it.
func WithFramework(s Scorer) Option {
	return func(o *resolvedOptions) { o.frameworks = append(o.frameworks, s) }
}

// WithEnabledFrameworks restricts analysis runs to the named frameworks.
// If not set, every registered framework runs.
func WithEnabledFrameworks(names ...string) Option {
	return func(o *resolvedOptions) { o.enabledFrameworks = names }
}

// WithPredictor replaces the built-in naive predictor. Pass nil to disable
// prediction entirely; runs then finish degraded rather than failed.
func WithPredictor(p Predictor) Option {
	return func(o *resolvedOptions) { o.predictor = p; o.predictorSet = true }
}

// WithNotifier sets the alert delivery channel. If not set, alerts are
// stored but never sent.
func WithNotifier(n Notifier) Option {
	return func(o *resolvedOptions) { o.notifier = n }
}

// WithEpisodicCapacity overrides the global interaction cap enforced by the
// retention sweep (PIPEWISE_EPISODIC_CAPACITY env var). Zero disables the
// global cap.
func WithEpisodicCapacity(n int) Option {
	return func(o *resolvedOptions) { o.episodicCapacity = &n }
}

// WithPerDealCapacity overrides the per-deal interaction cap enforced by the
// retention sweep (PIPEWISE_PER_DEAL_CAPACITY env var). Zero disables the
// per-deal cap.
func WithPerDealCapacity(n int) Option {
	return func(o *resolvedOptions) { o.perDealCapacity = &n }
}

// WithMinConfidence overrides the minimum pattern confidence used during
// recall (PIPEWISE_MIN_CONFIDENCE env var).
func WithMinConfidence(c float64) Option {
	return func(o *resolvedOptions) { o.minConfidence = &c }
}

// WithScoreTimeout overrides the per-framework call budget
// (PIPEWISE_SCORE_TIMEOUT env var).
func WithScoreTimeout(d time.Duration) Option {
	return func(o *resolvedOptions) { o.scoreTimeout = &d }
}

// WithMaxScoreRetries overrides the number of extra attempts made after a
// transient framework failure (PIPEWISE_MAX_SCORE_RETRIES env var).
func WithMaxScoreRetries(n int) Option {
	return func(o *resolvedOptions) { o.maxScoreRetries = &n }
}

// WithMigrations controls whether New runs schema migrations. Disable when
// the schema is managed out of band; the Engine then assumes the tables
// already exist.
func WithMigrations(run bool) Option {
	return func(o *resolvedOptions) { o.skipMigrations = !run }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the built-in migrations. Multiple filesystems may be registered;
// they are applied in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
