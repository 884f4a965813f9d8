package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"learningfeed/internal/domain"
	"learningfeed/internal/ports"
)

const twitterDateLayout = "Mon Jan 2 15:04:05 -0700 2006"

// ApifySource fetches recent posts from configured social lists and handles
// through an Apify scraper actor. This is the only paid adapter: every
// successful actor run records its flat cost on the run tracker.
type ApifySource struct {
	token         string
	actor         string
	endpoint      string
	listURLs      []string
	handles       []string
	costPerRunUSD float64
	lookback      time.Duration
	client        *http.Client
	logger        *slog.Logger
}

var _ ports.ContentSource = (*ApifySource)(nil)

// ApifyOptions carries the scraper configuration.
type ApifyOptions struct {
	Token         string
	Actor         string
	Endpoint      string
	ListURLs      []string
	Handles       []string
	CostPerRunUSD float64
	Lookback      time.Duration
}

// NewApifySource wires the actor run-sync client. Actor runs can take a
// while, so the default timeout is generous.
func NewApifySource(opts ApifyOptions, client *http.Client, logger *slog.Logger) *ApifySource {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ApifySource{
		token:         opts.Token,
		actor:         opts.Actor,
		endpoint:      strings.TrimRight(opts.Endpoint, "/"),
		listURLs:      opts.ListURLs,
		handles:       opts.Handles,
		costPerRunUSD: opts.CostPerRunUSD,
		lookback:      opts.Lookback,
		client:        client,
		logger:        logger,
	}
}

// Name identifies the adapter in pipeline logs.
func (s *ApifySource) Name() string {
	return "social"
}

type scrapedTweet struct {
	Text       string `json:"text"`
	FullText   string `json:"fullText"`
	URL        string `json:"url"`
	TwitterURL string `json:"twitterUrl"`
	ID         string `json:"id"`
	CreatedAt  string `json:"createdAt"`
	Author     struct {
		UserName string `json:"userName"`
	} `json:"author"`
}

// Fetch runs the scraper actor synchronously and maps its dataset items.
// Retweets are dropped as noise; malformed entries are skipped one by one.
func (s *ApifySource) Fetch(ctx context.Context, tracker *domain.CostTracker) ([]domain.ContentItem, error) {
	if len(s.listURLs) == 0 && len(s.handles) == 0 {
		s.logger.Warn("no social lists or handles configured")
		return nil, nil
	}
	if s.token == "" {
		s.logger.Warn("Apify API token not configured")
		return nil, nil
	}

	now := time.Now().UTC()
	cutoff := now.Add(-s.lookback)

	input := map[string]any{
		"maxTweets": 10,
		"sinceDate": cutoff.Format("2006-01-02"),
		"untilDate": now.AddDate(0, 0, 1).Format("2006-01-02"),
	}
	if len(s.listURLs) > 0 {
		input["listUrls"] = s.listURLs
	}
	if len(s.handles) > 0 {
		input["twitterHandles"] = s.handles
	}

	s.logger.Info("starting scraper actor", "lists", len(s.listURLs), "handles", len(s.handles))
	tweets, err := s.runActor(ctx, input)
	if err != nil {
		return nil, err
	}
	if tracker != nil {
		tracker.AddScrapeCost(s.costPerRunUSD)
	}
	s.logger.Info("scraper returned raw posts", "count", len(tweets))

	items := make([]domain.ContentItem, 0, len(tweets))
	for _, tweet := range tweets {
		text := tweet.Text
		if text == "" {
			text = tweet.FullText
		}
		if text == "" || strings.HasPrefix(text, "RT @") {
			continue
		}

		postURL := tweet.URL
		if postURL == "" {
			postURL = tweet.TwitterURL
		}
		if postURL == "" && tweet.Author.UserName != "" && tweet.ID != "" {
			postURL = fmt.Sprintf("https://x.com/%s/status/%s", tweet.Author.UserName, tweet.ID)
		}
		if postURL == "" {
			continue
		}

		author := ""
		if tweet.Author.UserName != "" {
			author = "@" + tweet.Author.UserName
		}

		snippet := truncateSnippet(text)
		items = append(items, domain.ContentItem{
			Source:      domain.SourceSocial,
			Title:       postTitle(snippet),
			URL:         postURL,
			Author:      author,
			Snippet:     snippet,
			PublishedAt: parseTwitterDate(tweet.CreatedAt),
		})
	}

	s.logger.Info("total social items", "count", len(items))
	return items, nil
}

// runActor calls the actor's run-sync-get-dataset-items endpoint, which
// blocks until the run finishes and returns the dataset directly.
func (s *ApifySource) runActor(ctx context.Context, input map[string]any) ([]scrapedTweet, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/acts/%s/run-sync-get-dataset-items?token=%s",
		s.endpoint, url.PathEscape(s.actor), url.QueryEscape(s.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("run actor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("apify error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var tweets []scrapedTweet
	if err := json.NewDecoder(resp.Body).Decode(&tweets); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}

	return tweets, nil
}

// postTitle derives a display title from the post text.
func postTitle(snippet string) string {
	runes := []rune(snippet)
	if len(runes) <= 120 {
		return snippet
	}
	return string(runes[:120])
}

func parseTwitterDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	parsed, err := time.Parse(twitterDateLayout, value)
	if err != nil {
		return nil
	}
	t := parsed.UTC()
	return &t
}
