package storage

import (
	"strings"
	"testing"
	"time"

	"learningfeed/internal/domain"
)

func TestPrecisionRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		useful int
		total  int
		rate   float64
		known  bool
	}{
		{name: "three of four", useful: 3, total: 4, rate: 75.0, known: true},
		{name: "no feedback is undefined", useful: 0, total: 0, rate: 0, known: false},
		{name: "all useful", useful: 4, total: 4, rate: 100.0, known: true},
		{name: "none useful", useful: 0, total: 5, rate: 0, known: true},
		{name: "rounds to two decimals", useful: 2, total: 3, rate: 66.67, known: true},
		{name: "rounds down", useful: 1, total: 3, rate: 33.33, known: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rate, known := precisionRate(tc.useful, tc.total)
			if known != tc.known {
				t.Fatalf("expected known=%v, got %v", tc.known, known)
			}
			if rate != tc.rate {
				t.Fatalf("expected rate %v, got %v", tc.rate, rate)
			}
		})
	}
}

func TestStoredItemsPairsByURL(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)
	items := []domain.ScoredItem{
		{ContentItem: domain.ContentItem{Source: domain.SourceNewsletter, Title: "A", URL: "https://a"}, Score: 7},
		{ContentItem: domain.ContentItem{Source: domain.SourceVideo, Title: "B", URL: "https://b"}, Score: 6},
		{ContentItem: domain.ContentItem{Source: domain.SourceSocial, Title: "C", URL: "https://c"}, Score: 5},
	}
	// Ids keyed by URL; the database is free to return rows in any order.
	idByURL := map[string]string{
		"https://c": "id-3",
		"https://a": "id-1",
		"https://b": "id-2",
	}

	stored := storedItems(items, day, idByURL)
	if len(stored) != 3 {
		t.Fatalf("expected 3 stored items, got %d", len(stored))
	}
	for i, want := range []string{"id-1", "id-2", "id-3"} {
		if stored[i].ID != want {
			t.Fatalf("item %d: expected id %s for url %s, got %s", i, want, stored[i].URL, stored[i].ID)
		}
		if stored[i].URL != items[i].URL {
			t.Fatalf("item %d: expected input order preserved, got url %s", i, stored[i].URL)
		}
		if !stored[i].DigestDate.Equal(day) {
			t.Fatalf("item %d: expected digest date %s, got %s", i, day, stored[i].DigestDate)
		}
	}
}

func TestStoredItemsSkipsUnreturnedRows(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC)
	items := []domain.ScoredItem{
		{ContentItem: domain.ContentItem{URL: "https://a"}},
		{ContentItem: domain.ContentItem{URL: "https://missing"}},
	}

	stored := storedItems(items, day, map[string]string{"https://a": "id-1"})
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored item, got %d", len(stored))
	}
	if stored[0].URL != "https://a" || stored[0].ID != "id-1" {
		t.Fatalf("unexpected stored item: %+v", stored[0])
	}
}

func TestBuildRunLogUpsertPreservesPersistedPrecision(t *testing.T) {
	t.Parallel()

	entry := domain.DigestLogEntry{
		DigestDate: time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC),
		Status:     domain.StatusCompleted,
	}

	query, args, err := buildRunLogUpsert(entry)
	if err != nil {
		t.Fatalf("buildRunLogUpsert error: %v", err)
	}

	// A rewrite with no precision in hand must not null a rate the monitor
	// persisted earlier.
	if !strings.Contains(query, "COALESCE(EXCLUDED.precision_rate, digest_log.precision_rate)") {
		t.Fatalf("expected precision coalesce in upsert, got:\n%s", query)
	}
	if len(args) == 0 {
		t.Fatal("expected bound arguments")
	}
}

func TestBuildRunLogUpsertBindsKnownPrecision(t *testing.T) {
	t.Parallel()

	rate := 80.0
	entry := domain.DigestLogEntry{
		DigestDate:    time.Date(2026, time.August, 30, 0, 0, 0, 0, time.UTC),
		Status:        domain.StatusCompleted,
		PrecisionRate: &rate,
	}

	_, args, err := buildRunLogUpsert(entry)
	if err != nil {
		t.Fatalf("buildRunLogUpsert error: %v", err)
	}

	found := false
	for _, arg := range args {
		if v, ok := arg.(float64); ok && v == rate {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected precision %v among arguments %v", rate, args)
	}
}
