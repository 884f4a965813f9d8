package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"learningfeed/internal/domain"
	"learningfeed/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Newsletters ports.ContentSource
	Videos      ports.ContentSource
	Social      ports.ContentSource
	Scorer      ports.Scorer
	Repository  ports.Repository
	Builder     ports.DigestBuilder
	Sender      ports.DigestSender
	Monitor     *PrecisionMonitor
	Budget      Budget
	Logger      *slog.Logger
}

// Pipeline implements the daily digest workflow: ingest, dedup, score,
// persist, build, deliver, monitor, log. One run per calendar date;
// re-running a date upserts rather than duplicates.
type Pipeline struct {
	newsletters ports.ContentSource
	videos      ports.ContentSource
	social      ports.ContentSource
	scorer      ports.Scorer
	repository  ports.Repository
	builder     ports.DigestBuilder
	sender      ports.DigestSender
	monitor     *PrecisionMonitor
	budget      Budget
	logger      *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		newsletters: deps.Newsletters,
		videos:      deps.Videos,
		social:      deps.Social,
		scorer:      deps.Scorer,
		repository:  deps.Repository,
		builder:     deps.Builder,
		sender:      deps.Sender,
		monitor:     deps.Monitor,
		budget:      deps.Budget,
		logger:      logger,
	}
}

// Run executes the pipeline for one calendar date and reports the terminal
// status. A failed run records its partial cost in the digest log before the
// error is returned to the caller.
func (p *Pipeline) Run(ctx context.Context, day time.Time) (domain.RunStatus, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	tracker := &domain.CostTracker{}

	p.logger.Info("starting pipeline", "date", day.Format("2006-01-02"))
	if err := p.repository.UpsertRunLog(ctx, domain.DigestLogEntry{DigestDate: day, Status: domain.StatusRunning}); err != nil {
		return domain.StatusFailed, fmt.Errorf("mark run started: %w", err)
	}

	status, err := p.run(ctx, day, tracker)
	if err != nil {
		p.logger.Error("pipeline failed", "date", day.Format("2006-01-02"), "error", err)
		failed := logEntry(day, domain.StatusFailed, tracker)
		failed.ErrorMessage = err.Error()
		if logErr := p.repository.UpsertRunLog(ctx, failed); logErr != nil {
			p.logger.Error("record failed run", "error", logErr)
		}
		return domain.StatusFailed, err
	}
	return status, nil
}

func (p *Pipeline) run(ctx context.Context, day time.Time, tracker *domain.CostTracker) (domain.RunStatus, error) {
	monthlyCost, err := p.repository.MonthlyCost(ctx, day.Year(), day.Month())
	if err != nil {
		return "", fmt.Errorf("load monthly cost: %w", err)
	}
	p.logger.Info("monthly cost so far", "spent_usd", monthlyCost, "ceiling_usd", p.budget.MonthlyUSD)

	if gate := p.budget.MonthlyGate(monthlyCost); !gate.Proceed {
		p.logger.Warn("skipping pipeline", "reason", gate.Reason)
		entry := logEntry(day, domain.StatusSkippedBudget, tracker)
		entry.ErrorMessage = gate.Reason
		if err := p.repository.UpsertRunLog(ctx, entry); err != nil {
			return "", fmt.Errorf("record skipped run: %w", err)
		}
		return domain.StatusSkippedBudget, nil
	}

	dailyCost, err := p.repository.DailyCost(ctx, day)
	if err != nil {
		return "", fmt.Errorf("load daily cost: %w", err)
	}

	lc, err := p.repository.LearningContext(ctx)
	if err != nil {
		return "", fmt.Errorf("load learning context: %w", err)
	}

	ingested := p.ingest(ctx, monthlyCost, tracker)
	unique := dedupByURL(ingested)
	p.logger.Info("ingestion done", "total", len(ingested), "unique", len(unique))

	var scored []domain.ScoredItem
	if gate := p.budget.ScoringGate(dailyCost, tracker.TotalCost()); gate.Proceed {
		scored = p.scorer.Score(ctx, unique, lc, tracker)
		p.logger.Info("scoring done", "items", len(scored))
	} else {
		p.logger.Warn("skipping scoring", "reason", gate.Reason)
	}

	// Items must land in storage before the digest is built: the builder
	// reads stored rows so a retried run also picks up items persisted but
	// not yet emailed.
	if len(scored) > 0 {
		if _, err := p.repository.UpsertDigestItems(ctx, scored, day); err != nil {
			return "", fmt.Errorf("store digest items: %w", err)
		}
	}

	stored, err := p.repository.DigestItems(ctx, day, 0)
	if err != nil {
		return "", fmt.Errorf("load digest items: %w", err)
	}

	body, includedIDs, err := p.builder.Build(stored, day)
	if err != nil {
		return "", fmt.Errorf("build digest: %w", err)
	}

	emailed := 0
	if p.sender.SendDigest(ctx, body, day, tracker) {
		if err := p.repository.MarkItemsEmailed(ctx, includedIDs); err != nil {
			return "", fmt.Errorf("mark items emailed: %w", err)
		}
		emailed = len(includedIDs)
		p.logger.Info("digest sent", "items", emailed)
	} else {
		p.logger.Error("failed to send digest email")
	}

	if p.monitor != nil {
		if err := p.monitor.CheckAndAlert(ctx, day); err != nil {
			return "", fmt.Errorf("precision check: %w", err)
		}
	}

	entry := logEntry(day, domain.StatusCompleted, tracker)
	entry.ItemsIngested = len(ingested)
	entry.ItemsScored = len(scored)
	entry.ItemsEmailed = emailed
	if err := p.repository.UpsertRunLog(ctx, entry); err != nil {
		return "", fmt.Errorf("record completed run: %w", err)
	}

	p.logger.Info("pipeline completed",
		"llm_usd", tracker.LLMCostUSD,
		"llm_tokens", tracker.LLMTokens(),
		"scrape_usd", tracker.ScrapeCostUSD,
		"email_usd", tracker.EmailCostUSD(),
		"total_usd", tracker.TotalCost(),
		"monthly_usd", monthlyCost+tracker.TotalCost())
	return domain.StatusCompleted, nil
}

// ingest invokes the adapters in fixed order: newsletters, video, then
// social. A failing adapter is logged and contributes zero items; the paid
// social adapter additionally sits behind its own budget gate.
func (p *Pipeline) ingest(ctx context.Context, monthlyCost float64, tracker *domain.CostTracker) []domain.ContentItem {
	var items []domain.ContentItem

	for _, src := range []ports.ContentSource{p.newsletters, p.videos} {
		if src == nil {
			continue
		}
		fetched, err := src.Fetch(ctx, tracker)
		if err != nil {
			p.logger.Error("ingestion failed", "source", src.Name(), "error", err)
			continue
		}
		p.logger.Info("fetched items", "source", src.Name(), "count", len(fetched))
		items = append(items, fetched...)
	}

	if p.social != nil {
		if gate := p.budget.SocialGate(monthlyCost); gate.Proceed {
			fetched, err := p.social.Fetch(ctx, tracker)
			if err != nil {
				p.logger.Error("ingestion failed", "source", p.social.Name(), "error", err)
			} else {
				p.logger.Info("fetched items", "source", p.social.Name(), "count", len(fetched))
				items = append(items, fetched...)
			}
		} else {
			p.logger.Warn("skipping social ingestion", "reason", gate.Reason)
		}
	}

	return items
}

// dedupByURL keeps the first item seen per distinct URL, preserving the
// adapter invocation order.
func dedupByURL(items []domain.ContentItem) []domain.ContentItem {
	seen := make(map[string]struct{}, len(items))
	unique := make([]domain.ContentItem, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.URL]; ok {
			continue
		}
		seen[item.URL] = struct{}{}
		unique = append(unique, item)
	}
	return unique
}

func logEntry(day time.Time, status domain.RunStatus, tracker *domain.CostTracker) domain.DigestLogEntry {
	return domain.DigestLogEntry{
		DigestDate:    day,
		Status:        status,
		CostLLMUSD:    tracker.LLMCostUSD,
		CostScrapeUSD: tracker.ScrapeCostUSD,
		CostEmailUSD:  tracker.EmailCostUSD(),
		CostTotalUSD:  tracker.TotalCost(),
		LLMTokensUsed: tracker.LLMTokens(),
	}
}
