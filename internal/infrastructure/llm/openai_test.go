package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"learningfeed/internal/config"
	"learningfeed/internal/domain"
)

func testItems(n int) []domain.ContentItem {
	items := make([]domain.ContentItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.ContentItem{
			Source: domain.SourceNewsletter,
			Title:  "Item",
			URL:    "https://example.org/" + string(rune('a'+i)),
		})
	}
	return items
}

func newTestScorer(endpoint string) *OpenAIScorer {
	return NewOpenAIScorer(config.OpenAIConfig{
		Endpoint: endpoint,
		Model:    "gpt-4o",
		APIKey:   "test-key",
	}, nil)
}

func chatFixture(content string, promptTokens, completionTokens int) []byte {
	payload := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
		"usage": map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
		},
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func TestScoreClampsAndFillsMissing(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Three items in, two scores back: one out of range above, one below.
		content := `{"scores": [{"score": 14.2, "justification": "great"}, {"score": -3, "justification": "bad"}]}`
		_, _ = w.Write(chatFixture(content, 200, 80))
	}))
	defer server.Close()

	scorer := newTestScorer(server.URL)
	tracker := &domain.CostTracker{}

	scored := scorer.Score(context.Background(), testItems(3), domain.LearningContext{}, tracker)
	if len(scored) != 3 {
		t.Fatalf("expected 3 scored items, got %d", len(scored))
	}

	if scored[0].Score != 10.0 {
		t.Fatalf("expected score clamped to 10, got %f", scored[0].Score)
	}
	if scored[1].Score != 0.0 {
		t.Fatalf("expected score clamped to 0, got %f", scored[1].Score)
	}
	if scored[2].Score != 0.0 || scored[2].Justification != missingScoreReason {
		t.Fatalf("expected missing-score placeholder, got score=%f justification=%q", scored[2].Score, scored[2].Justification)
	}

	if tracker.LLMPromptTokens != 200 || tracker.LLMCompletionTokens != 80 {
		t.Fatalf("expected token usage recorded, got %d/%d", tracker.LLMPromptTokens, tracker.LLMCompletionTokens)
	}
}

func TestScoreDegradesFailedBatch(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	scorer := newTestScorer(server.URL)
	items := testItems(2)

	scored := scorer.Score(context.Background(), items, domain.LearningContext{}, &domain.CostTracker{})
	if len(scored) != 2 {
		t.Fatalf("expected all items preserved on failure, got %d", len(scored))
	}
	for _, item := range scored {
		if item.Score != 0.0 || item.Justification != failedScoreReason {
			t.Fatalf("expected zero-score placeholder, got score=%f justification=%q", item.Score, item.Justification)
		}
	}
}

func TestScoreBatchesKeepOrder(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// One score per item, value derived from batch call count.
		scores := make([]map[string]any, batchSize)
		for i := range scores {
			scores[i] = map[string]any{"score": float64(calls), "justification": "ok"}
		}
		content, _ := json.Marshal(map[string]any{"scores": scores})
		_, _ = w.Write(chatFixture(string(content), 10, 5))
	}))
	defer server.Close()

	scorer := newTestScorer(server.URL)
	items := testItems(batchSize + 2)

	scored := scorer.Score(context.Background(), items, domain.LearningContext{}, &domain.CostTracker{})
	if len(scored) != batchSize+2 {
		t.Fatalf("expected %d scored items, got %d", batchSize+2, len(scored))
	}
	if calls != 2 {
		t.Fatalf("expected 2 batch calls, got %d", calls)
	}
	if scored[0].Score != 1 || scored[batchSize].Score != 2 {
		t.Fatalf("expected batch-ordered scores, got first=%f second-batch=%f", scored[0].Score, scored[batchSize].Score)
	}
	for i, item := range scored {
		if item.URL != items[i].URL {
			t.Fatalf("expected order preserved at %d: %s != %s", i, item.URL, items[i].URL)
		}
	}
}

func TestScoreEmptyInput(t *testing.T) {
	t.Parallel()

	scorer := newTestScorer("https://example.invalid")
	if scored := scorer.Score(context.Background(), nil, domain.LearningContext{}, nil); len(scored) != 0 {
		t.Fatalf("expected no output for empty input, got %d", len(scored))
	}
}
