package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"learningfeed/internal/domain"
	"learningfeed/internal/ports"
)

const dateLayout = "2006-01-02"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepository backs the pipeline with Postgres: the learning-context
// singleton and its history log, digest items keyed by (url, digest_date),
// the per-date digest log, and feedback rows.
type PostgresRepository struct {
	db *sql.DB
}

var _ ports.Repository = (*PostgresRepository)(nil)

// NewPostgresRepository wires a sql.DB implementation.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// LearningContext loads the singleton profile row.
func (r *PostgresRepository) LearningContext(ctx context.Context) (domain.LearningContext, error) {
	return loadLearningContext(ctx, r.db)
}

func loadLearningContext(ctx context.Context, q rowQuerier) (domain.LearningContext, error) {
	query, args, err := psql.
		Select("goals", "digest_format", "methodology", "skill_levels", "time_availability", "project_context").
		From("learning_context").
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return domain.LearningContext{}, fmt.Errorf("build query: %w", err)
	}

	var (
		lc          domain.LearningContext
		methodology []byte
		skills      []byte
	)
	row := q.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&lc.Goals, &lc.DigestFormat, &methodology, &skills, &lc.TimeAvailability, &lc.ProjectContext); err != nil {
		return domain.LearningContext{}, fmt.Errorf("scan learning context: %w", err)
	}

	if len(methodology) > 0 {
		if err := json.Unmarshal(methodology, &lc.Methodology); err != nil {
			return domain.LearningContext{}, fmt.Errorf("decode methodology: %w", err)
		}
	}
	if len(skills) > 0 {
		if err := json.Unmarshal(skills, &lc.SkillLevels); err != nil {
			return domain.LearningContext{}, fmt.Errorf("decode skill levels: %w", err)
		}
	}

	return lc, nil
}

// UpdateLearningContext snapshots the current profile into the append-only
// history log and then overwrites the singleton. Both writes share one
// transaction so a snapshot is never lost between them.
func (r *PostgresRepository) UpdateLearningContext(ctx context.Context, lc domain.LearningContext) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := loadLearningContext(ctx, tx)
	if err != nil {
		return fmt.Errorf("load current context: %w", err)
	}

	snapshot, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	query, args, err := psql.
		Insert("learning_context_history").
		Columns("snapshot").
		Values(snapshot).
		ToSql()
	if err != nil {
		return fmt.Errorf("build snapshot insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	methodology, err := json.Marshal(lc.Methodology)
	if err != nil {
		return fmt.Errorf("encode methodology: %w", err)
	}
	skills, err := json.Marshal(lc.SkillLevels)
	if err != nil {
		return fmt.Errorf("encode skill levels: %w", err)
	}

	query, args, err = psql.
		Update("learning_context").
		Set("goals", lc.Goals).
		Set("digest_format", lc.DigestFormat).
		Set("methodology", methodology).
		Set("skill_levels", skills).
		Set("time_availability", lc.TimeAvailability).
		Set("project_context", lc.ProjectContext).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": 1}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build context update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update context: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpsertDigestItems writes scored items keyed by (url, digest_date); a
// re-run for the same date overwrites scores instead of duplicating rows.
// Returned items carry their store-assigned ids in input order.
func (r *PostgresRepository) UpsertDigestItems(ctx context.Context, items []domain.ScoredItem, day time.Time) ([]domain.StoredItem, error) {
	if len(items) == 0 {
		return nil, nil
	}

	builder := psql.
		Insert("digest_items").
		Columns("digest_date", "source", "title", "url", "author", "content_snippet", "score", "justification")
	for _, item := range items {
		builder = builder.Values(
			day.Format(dateLayout),
			string(item.Source),
			item.Title,
			item.URL,
			item.Author,
			item.Snippet,
			item.Score,
			item.Justification,
		)
	}
	builder = builder.Suffix(`ON CONFLICT (url, digest_date) DO UPDATE
		SET source = EXCLUDED.source,
		    title = EXCLUDED.title,
		    author = EXCLUDED.author,
		    content_snippet = EXCLUDED.content_snippet,
		    score = EXCLUDED.score,
		    justification = EXCLUDED.justification
		RETURNING id, url`)

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build upsert: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("upsert digest items: %w", err)
	}
	defer rows.Close()

	idByURL := make(map[string]string, len(items))
	for rows.Next() {
		var id, itemURL string
		if err := rows.Scan(&id, &itemURL); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		idByURL[itemURL] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return storedItems(items, day, idByURL), nil
}

// storedItems pairs upserted rows with their store-assigned ids by URL; the
// RETURNING row order is not guaranteed to match the VALUES order.
func storedItems(items []domain.ScoredItem, day time.Time, idByURL map[string]string) []domain.StoredItem {
	stored := make([]domain.StoredItem, 0, len(items))
	for _, item := range items {
		id, ok := idByURL[item.URL]
		if !ok {
			continue
		}
		stored = append(stored, domain.StoredItem{
			ID:         id,
			ScoredItem: item,
			DigestDate: day,
		})
	}
	return stored
}

// DigestItems returns the stored rows for one date at or above minScore,
// highest score first.
func (r *PostgresRepository) DigestItems(ctx context.Context, day time.Time, minScore float64) ([]domain.StoredItem, error) {
	query, args, err := psql.
		Select("id", "digest_date", "source", "title", "url", "author", "content_snippet", "score", "justification", "included_in_email").
		From("digest_items").
		Where(sq.Eq{"digest_date": day.Format(dateLayout)}).
		Where(sq.GtOrEq{"score": minScore}).
		OrderBy("score DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query digest items: %w", err)
	}
	defer rows.Close()

	var items []domain.StoredItem
	for rows.Next() {
		var (
			item   domain.StoredItem
			source string
		)
		err := rows.Scan(
			&item.ID,
			&item.DigestDate,
			&source,
			&item.Title,
			&item.URL,
			&item.Author,
			&item.Snippet,
			&item.Score,
			&item.Justification,
			&item.IncludedInEmail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan digest item: %w", err)
		}
		item.Source = domain.Source(source)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return items, nil
}

// MarkItemsEmailed flags the given items as delivered in a digest.
func (r *PostgresRepository) MarkItemsEmailed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := psql.
		Update("digest_items").
		Set("included_in_email", true).
		Where(sq.Expr("id = ANY(?)", pq.Array(ids))).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark emailed: %w", err)
	}
	return nil
}

// InsertFeedback appends one feedback row; rows are never updated.
func (r *PostgresRepository) InsertFeedback(ctx context.Context, itemID, response string) error {
	query, args, err := psql.
		Insert("feedback").
		Columns("item_id", "response").
		Values(itemID, response).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert feedback: %w", err)
	}
	return nil
}

// PrecisionForDate computes useful/total*100 over the feedback joined to
// that date's digest items, rounded to two decimals. A date with zero
// feedback has no precision (known=false), which is distinct from 0%.
func (r *PostgresRepository) PrecisionForDate(ctx context.Context, day time.Time) (float64, bool, error) {
	query, args, err := psql.
		Select(
			"COUNT(*)",
			fmt.Sprintf("COUNT(*) FILTER (WHERE f.response = '%s')", domain.FeedbackUseful),
		).
		From("feedback f").
		Join("digest_items d ON f.item_id = d.id").
		Where(sq.Eq{"d.digest_date": day.Format(dateLayout)}).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build query: %w", err)
	}

	var total, useful int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total, &useful); err != nil {
		return 0, false, fmt.Errorf("scan feedback counts: %w", err)
	}

	rate, known := precisionRate(useful, total)
	return rate, known, nil
}

// precisionRate computes useful/total*100 rounded to two decimals. Zero
// feedback means precision is undefined, which is distinct from 0%.
func precisionRate(useful, total int) (float64, bool) {
	if total == 0 {
		return 0, false
	}
	return math.Round(float64(useful)/float64(total)*100*100) / 100, true
}

// UpsertRunLog writes the per-date run record; re-running a date overwrites
// its row. completed_at is set only when the status is completed.
func (r *PostgresRepository) UpsertRunLog(ctx context.Context, entry domain.DigestLogEntry) error {
	query, args, err := buildRunLogUpsert(entry)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert digest log: %w", err)
	}
	return nil
}

// buildRunLogUpsert assembles the run-log upsert. A nil precision in the
// entry keeps whatever rate the row already carries: the monitor writes
// precision after the fact, and a later status rewrite must not erase it.
func buildRunLogUpsert(entry domain.DigestLogEntry) (string, []any, error) {
	var completedAt any
	if entry.Status == domain.StatusCompleted {
		completedAt = sq.Expr("NOW()")
	}

	var errorMessage any
	if entry.ErrorMessage != "" {
		errorMessage = entry.ErrorMessage
	}

	var precision any
	if entry.PrecisionRate != nil {
		precision = *entry.PrecisionRate
	}

	return psql.
		Insert("digest_log").
		Columns(
			"digest_date", "status",
			"items_ingested", "items_scored", "items_emailed",
			"precision_rate", "error_message",
			"cost_llm_usd", "cost_scrape_usd", "cost_email_usd", "cost_total_usd",
			"llm_tokens_used", "completed_at",
		).
		Values(
			entry.DigestDate.Format(dateLayout), string(entry.Status),
			entry.ItemsIngested, entry.ItemsScored, entry.ItemsEmailed,
			precision, errorMessage,
			entry.CostLLMUSD, entry.CostScrapeUSD, entry.CostEmailUSD, entry.CostTotalUSD,
			entry.LLMTokensUsed, completedAt,
		).
		Suffix(`ON CONFLICT (digest_date) DO UPDATE
			SET status = EXCLUDED.status,
			    items_ingested = EXCLUDED.items_ingested,
			    items_scored = EXCLUDED.items_scored,
			    items_emailed = EXCLUDED.items_emailed,
			    precision_rate = COALESCE(EXCLUDED.precision_rate, digest_log.precision_rate),
			    error_message = EXCLUDED.error_message,
			    cost_llm_usd = EXCLUDED.cost_llm_usd,
			    cost_scrape_usd = EXCLUDED.cost_scrape_usd,
			    cost_email_usd = EXCLUDED.cost_email_usd,
			    cost_total_usd = EXCLUDED.cost_total_usd,
			    llm_tokens_used = EXCLUDED.llm_tokens_used,
			    completed_at = EXCLUDED.completed_at`).
		ToSql()
}

// SetPrecision persists a recomputed precision rate for a past date without
// touching that row's counts or costs.
func (r *PostgresRepository) SetPrecision(ctx context.Context, day time.Time, rate float64) error {
	query, args, err := psql.
		Insert("digest_log").
		Columns("digest_date", "status", "precision_rate").
		Values(day.Format(dateLayout), string(domain.StatusCompleted), rate).
		Suffix("ON CONFLICT (digest_date) DO UPDATE SET precision_rate = EXCLUDED.precision_rate").
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set precision: %w", err)
	}
	return nil
}

// PrecisionStats returns the most recent dates that have a known precision,
// newest first, at most days rows.
func (r *PostgresRepository) PrecisionStats(ctx context.Context, days int) ([]domain.PrecisionStat, error) {
	query, args, err := psql.
		Select("digest_date", "precision_rate", "items_emailed").
		From("digest_log").
		Where(sq.NotEq{"precision_rate": nil}).
		OrderBy("digest_date DESC").
		Limit(uint64(days)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query precision stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.PrecisionStat
	for rows.Next() {
		var stat domain.PrecisionStat
		if err := rows.Scan(&stat.DigestDate, &stat.PrecisionRate, &stat.ItemsEmailed); err != nil {
			return nil, fmt.Errorf("scan precision stat: %w", err)
		}
		stats = append(stats, stat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return stats, nil
}

// DailyCost returns the recorded spend for one date, zero when the date has
// no run yet.
func (r *PostgresRepository) DailyCost(ctx context.Context, day time.Time) (float64, error) {
	query, args, err := psql.
		Select("cost_total_usd").
		From("digest_log").
		Where(sq.Eq{"digest_date": day.Format(dateLayout)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var cost float64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&cost)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan daily cost: %w", err)
	}
	return cost, nil
}

// MonthlyCost sums the spend of every run in the given month.
func (r *PostgresRepository) MonthlyCost(ctx context.Context, year int, month time.Month) (float64, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query, args, err := psql.
		Select("COALESCE(SUM(cost_total_usd), 0)").
		From("digest_log").
		Where(sq.GtOrEq{"digest_date": start.Format(dateLayout)}).
		Where(sq.Lt{"digest_date": end.Format(dateLayout)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}

	var cost float64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&cost); err != nil {
		return 0, fmt.Errorf("scan monthly cost: %w", err)
	}
	return cost, nil
}
