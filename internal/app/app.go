package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"learningfeed/internal/config"
	"learningfeed/internal/digest"
	"learningfeed/internal/infrastructure/email"
	"learningfeed/internal/infrastructure/httpapi"
	"learningfeed/internal/infrastructure/ingest"
	"learningfeed/internal/infrastructure/llm"
	"learningfeed/internal/infrastructure/scheduler"
	"learningfeed/internal/infrastructure/storage"
	"learningfeed/internal/logging"
	"learningfeed/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	db        *sql.DB
	scheduler *usecase.Scheduler
	server    *httpapi.Server
	logger    *slog.Logger
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repository := storage.NewPostgresRepository(db)
	sender := email.NewResendSender(cfg.Email, baseLogger.With("component", "email"))

	lookback := cfg.Sources.Lookback()
	newsletters := ingest.NewRSSSource(
		cfg.Sources.RSS.FeedURLs, lookback, nil,
		baseLogger.With("component", "ingest.rss"))
	videos := ingest.NewYouTubeSource(
		cfg.Sources.YouTube.APIKey, cfg.Sources.YouTube.Endpoint,
		cfg.Sources.YouTube.ChannelIDs, lookback, nil,
		baseLogger.With("component", "ingest.youtube"))
	social := ingest.NewApifySource(ingest.ApifyOptions{
		Token:         cfg.Sources.Apify.Token,
		Actor:         cfg.Sources.Apify.Actor,
		Endpoint:      cfg.Sources.Apify.Endpoint,
		ListURLs:      cfg.Sources.Apify.ListURLs,
		Handles:       cfg.Sources.Apify.Handles,
		CostPerRunUSD: cfg.Sources.Apify.CostPerRunUSD,
		Lookback:      lookback,
	}, nil, baseLogger.With("component", "ingest.apify"))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Newsletters: newsletters,
		Videos:      videos,
		Social:      social,
		Scorer:      llm.NewOpenAIScorer(cfg.OpenAI, baseLogger.With("component", "scorer")),
		Repository:  repository,
		Builder:     digest.NewBuilder(cfg.Feedback.BaseURL, baseLogger.With("component", "digest")),
		Sender:      sender,
		Monitor:     usecase.NewPrecisionMonitor(repository, sender, baseLogger.With("component", "precision")),
		Budget: usecase.Budget{
			DailyUSD:         cfg.Budget.DailyUSD,
			MonthlyUSD:       cfg.Budget.MonthlyUSD,
			SocialRunCostUSD: cfg.Sources.Apify.CostPerRunUSD,
		},
		Logger: baseLogger.With("component", "pipeline"),
	})

	driver := scheduler.NewDailyScheduler(cfg.Scheduler.CronExpression)
	server := httpapi.NewServer(repository, pipeline, baseLogger.With("component", "httpapi"))

	return &Application{
		cfg:       cfg,
		db:        db,
		scheduler: usecase.NewScheduler(driver, pipeline),
		server:    server,
		logger:    baseLogger,
	}, nil
}

// Run starts the scheduler and the HTTP API and blocks until ctx is done
// or the server stops.
func (a *Application) Run(ctx context.Context) error {
	defer a.db.Close()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		_ = a.scheduler.Stop(context.Background())
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(a.cfg.Feedback.ListenAddr)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}
