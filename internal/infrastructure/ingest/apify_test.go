package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learningfeed/internal/domain"
)

func TestApifyFetchMapsPostsAndRecordsCost(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
		  {"text": "A thread on Go schedulers", "url": "https://x.com/gopher/status/1", "createdAt": "Thu Aug 27 14:30:00 +0000 2026", "author": {"userName": "gopher"}},
		  {"text": "RT @someone: retweeted noise", "url": "https://x.com/other/status/2", "author": {"userName": "other"}},
		  {"fullText": "No direct url", "id": "3", "author": {"userName": "builder"}}
		]`))
	}))
	defer server.Close()

	source := NewApifySource(ApifyOptions{
		Token:         "token",
		Actor:         "apidojo~tweet-scraper",
		Endpoint:      server.URL,
		Handles:       []string{"gopher"},
		CostPerRunUSD: 0.50,
		Lookback:      24 * time.Hour,
	}, server.Client(), nil)

	tracker := &domain.CostTracker{}
	items, err := source.Fetch(context.Background(), tracker)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if tracker.ScrapeCostUSD != 0.50 {
		t.Fatalf("expected scrape cost 0.50 on tracker, got %f", tracker.ScrapeCostUSD)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items (retweet dropped), got %d", len(items))
	}

	first := items[0]
	if first.Source != domain.SourceSocial {
		t.Fatalf("expected social source, got %s", first.Source)
	}
	if first.Author != "@gopher" {
		t.Fatalf("unexpected author: %s", first.Author)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2026 {
		t.Fatalf("expected parsed publish time, got %v", first.PublishedAt)
	}

	if items[1].URL != "https://x.com/builder/status/3" {
		t.Fatalf("expected url built from author and id, got %s", items[1].URL)
	}
}

func TestApifyFetchWithoutConfigDegrades(t *testing.T) {
	t.Parallel()

	source := NewApifySource(ApifyOptions{Endpoint: "https://example.invalid"}, nil, nil)

	tracker := &domain.CostTracker{}
	items, err := source.Fetch(context.Background(), tracker)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected no items without configuration, got %d", len(items))
	}
	if tracker.ScrapeCostUSD != 0 {
		t.Fatalf("expected no cost recorded, got %f", tracker.ScrapeCostUSD)
	}
}
