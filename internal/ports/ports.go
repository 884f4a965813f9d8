package ports

import (
	"context"
	"time"

	"learningfeed/internal/domain"
)

// ContentSource pulls fresh items from one upstream provider. Errors inside
// a single feed or channel degrade to partial results; only a total provider
// failure is returned, and the orchestrator isolates that too. Paid adapters
// record their spend on the tracker.
type ContentSource interface {
	Name() string
	Fetch(ctx context.Context, tracker *domain.CostTracker) ([]domain.ContentItem, error)
}

// Scorer ranks content items against the learning context. The result has
// the same length and order as the input; a failed batch degrades to
// zero-score placeholders instead of dropping items. Token usage is
// recorded on the tracker.
type Scorer interface {
	Score(ctx context.Context, items []domain.ContentItem, lc domain.LearningContext, tracker *domain.CostTracker) []domain.ScoredItem
}

// DigestBuilder renders the digest body from stored rows and returns the
// ids of all items it included.
type DigestBuilder interface {
	Build(items []domain.StoredItem, day time.Time) (string, []string, error)
}

// DigestSender delivers the digest and alert emails. Send failures are
// reported as false, never as an error; a successful digest send records
// its cost on the tracker.
type DigestSender interface {
	SendDigest(ctx context.Context, html string, day time.Time, tracker *domain.CostTracker) bool
	SendAlert(ctx context.Context, subject, body string) bool
}

// Repository is the store behind the pipeline: learning context with
// history snapshots, digest items upserted by (url, date), the per-date run
// log, feedback rows, and the derived cost and precision queries.
type Repository interface {
	LearningContext(ctx context.Context) (domain.LearningContext, error)
	UpdateLearningContext(ctx context.Context, lc domain.LearningContext) error

	UpsertDigestItems(ctx context.Context, items []domain.ScoredItem, day time.Time) ([]domain.StoredItem, error)
	DigestItems(ctx context.Context, day time.Time, minScore float64) ([]domain.StoredItem, error)
	MarkItemsEmailed(ctx context.Context, ids []string) error

	InsertFeedback(ctx context.Context, itemID, response string) error
	PrecisionForDate(ctx context.Context, day time.Time) (float64, bool, error)

	UpsertRunLog(ctx context.Context, entry domain.DigestLogEntry) error
	SetPrecision(ctx context.Context, day time.Time, rate float64) error
	PrecisionStats(ctx context.Context, days int) ([]domain.PrecisionStat, error)
	DailyCost(ctx context.Context, day time.Time) (float64, error)
	MonthlyCost(ctx context.Context, year int, month time.Month) (float64, error)
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
