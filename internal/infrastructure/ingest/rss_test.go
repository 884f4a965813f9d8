package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"learningfeed/internal/domain"
)

func rssFixture(fresh, stale time.Time) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>Fresh Post</title>
      <link>https://example.org/fresh</link>
      <author>writer@example.org (Pat Writer)</author>
      <description>&lt;p&gt;Some &lt;b&gt;useful&lt;/b&gt; content.&lt;/p&gt;</description>
      <pubDate>%s</pubDate>
    </item>
    <item>
      <title>Stale Post</title>
      <link>https://example.org/stale</link>
      <pubDate>%s</pubDate>
    </item>
    <item>
      <title></title>
      <link>https://example.org/untitled</link>
      <pubDate>%s</pubDate>
    </item>
  </channel>
</rss>`, fresh.Format(time.RFC1123Z), stale.Format(time.RFC1123Z), fresh.Format(time.RFC1123Z))
}

func TestRSSFetchFiltersAndMaps(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssFixture(now.Add(-2*time.Hour), now.Add(-48*time.Hour))))
	}))
	defer server.Close()

	source := NewRSSSource([]string{server.URL}, 24*time.Hour, server.Client(), nil)
	items, err := source.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected 1 fresh titled item, got %d", len(items))
	}

	got := items[0]
	if got.Source != domain.SourceNewsletter {
		t.Fatalf("expected newsletter source, got %s", got.Source)
	}
	if got.Title != "Fresh Post" {
		t.Fatalf("unexpected title: %s", got.Title)
	}
	if got.URL != "https://example.org/fresh" {
		t.Fatalf("unexpected url: %s", got.URL)
	}
	if strings.Contains(got.Snippet, "<") {
		t.Fatalf("expected HTML stripped from snippet, got %q", got.Snippet)
	}
	if got.Snippet != "Some useful content." {
		t.Fatalf("unexpected snippet: %q", got.Snippet)
	}
	if got.PublishedAt == nil {
		t.Fatal("expected published time to be set")
	}
}

func TestRSSFetchSkipsBrokenFeed(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(rssFixture(now.Add(-time.Hour), now.Add(-72*time.Hour))))
	}))
	defer healthy.Close()

	source := NewRSSSource([]string{broken.URL, healthy.URL}, 24*time.Hour, nil, nil)
	items, err := source.Fetch(context.Background(), nil)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}

	if len(items) != 1 {
		t.Fatalf("expected the healthy feed to still contribute, got %d items", len(items))
	}
}

func TestTruncateSnippet(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", snippetLimit+50)
	got := truncateSnippet(long)
	if len([]rune(got)) != snippetLimit+3 {
		t.Fatalf("expected %d runes, got %d", snippetLimit+3, len([]rune(got)))
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatal("expected ellipsis suffix")
	}

	short := "short text"
	if truncateSnippet(short) != short {
		t.Fatal("expected short text unchanged")
	}
}
