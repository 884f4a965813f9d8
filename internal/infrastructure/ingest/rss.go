package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"learningfeed/internal/domain"
	"learningfeed/internal/ports"
)

// RSSSource fetches newsletter items from configured RSS/Atom feeds.
type RSSSource struct {
	feedURLs []string
	lookback time.Duration
	client   *http.Client
	parser   *gofeed.Parser
	logger   *slog.Logger
}

var _ ports.ContentSource = (*RSSSource)(nil)

// NewRSSSource wires the feed list; a nil client defaults to a 15s timeout.
func NewRSSSource(feedURLs []string, lookback time.Duration, client *http.Client, logger *slog.Logger) *RSSSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RSSSource{
		feedURLs: feedURLs,
		lookback: lookback,
		client:   client,
		parser:   gofeed.NewParser(),
		logger:   logger,
	}
}

// Name identifies the adapter in pipeline logs.
func (s *RSSSource) Name() string {
	return "newsletters"
}

// Fetch pulls every configured feed, keeping entries published within the
// lookback window. A feed that fails to download or parse is logged and
// skipped; the rest still contribute items.
func (s *RSSSource) Fetch(ctx context.Context, _ *domain.CostTracker) ([]domain.ContentItem, error) {
	if len(s.feedURLs) == 0 {
		s.logger.Warn("no RSS feed URLs configured")
		return nil, nil
	}

	cutoff := time.Now().UTC().Add(-s.lookback)
	var items []domain.ContentItem

	for _, feedURL := range s.feedURLs {
		feed, err := s.fetchFeed(ctx, feedURL)
		if err != nil {
			s.logger.Warn("failed to fetch feed", "url", feedURL, "error", err)
			continue
		}

		for _, entry := range feed.Items {
			published := entryTime(entry)
			if published != nil && published.Before(cutoff) {
				continue
			}

			title := strings.TrimSpace(entry.Title)
			link := strings.TrimSpace(entry.Link)
			if title == "" || link == "" {
				continue
			}

			items = append(items, domain.ContentItem{
				Source:      domain.SourceNewsletter,
				Title:       title,
				URL:         link,
				Author:      entryAuthor(entry),
				Snippet:     truncateSnippet(htmlToText(entry.Description)),
				PublishedAt: published,
			})
		}

		s.logger.Info("fetched feed", "url", feedURL, "entries", len(feed.Items))
	}

	s.logger.Info("total newsletter items", "count", len(items))
	return items, nil
}

func (s *RSSSource) fetchFeed(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "LearningFeed/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return feed, nil
}

func entryTime(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		t := entry.PublishedParsed.UTC()
		return &t
	}
	if entry.UpdatedParsed != nil {
		t := entry.UpdatedParsed.UTC()
		return &t
	}
	return nil
}

func entryAuthor(entry *gofeed.Item) string {
	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		return entry.Authors[0].Name
	}
	return ""
}
