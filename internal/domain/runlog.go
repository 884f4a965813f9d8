package domain

import "time"

// RunStatus enumerates the pipeline run states recorded in the digest log.
type RunStatus string

const (
	StatusRunning       RunStatus = "running"
	StatusCompleted     RunStatus = "completed"
	StatusFailed        RunStatus = "failed"
	StatusSkippedBudget RunStatus = "skipped_budget"
)

// DigestLogEntry is the per-date run record, upserted on the date key as
// the run moves from running to a terminal state.
type DigestLogEntry struct {
	DigestDate    time.Time
	Status        RunStatus
	ItemsIngested int
	ItemsScored   int
	ItemsEmailed  int
	PrecisionRate *float64
	ErrorMessage  string
	CostLLMUSD    float64
	CostScrapeUSD float64
	CostEmailUSD  float64
	CostTotalUSD  float64
	LLMTokensUsed int
}

// PrecisionStat is one persisted daily precision reading.
type PrecisionStat struct {
	DigestDate    time.Time
	PrecisionRate float64
	ItemsEmailed  int
}

// Feedback responses recorded from digest link clicks.
const (
	FeedbackUseful    = "useful"
	FeedbackNotUseful = "not_useful"
)

// ValidFeedbackResponse reports whether response is one of the accepted
// feedback values.
func ValidFeedbackResponse(response string) bool {
	return response == FeedbackUseful || response == FeedbackNotUseful
}
