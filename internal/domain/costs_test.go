package domain

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCostTrackerLLMUsage(t *testing.T) {
	t.Parallel()

	tracker := &CostTracker{}
	tracker.AddLLMUsage(1000, 500)
	tracker.AddLLMUsage(2000, 1000)

	if tracker.LLMPromptTokens != 3000 {
		t.Fatalf("expected 3000 prompt tokens, got %d", tracker.LLMPromptTokens)
	}
	if tracker.LLMCompletionTokens != 1500 {
		t.Fatalf("expected 1500 completion tokens, got %d", tracker.LLMCompletionTokens)
	}
	if tracker.LLMTokens() != 4500 {
		t.Fatalf("expected 4500 total tokens, got %d", tracker.LLMTokens())
	}

	want := 3000*LLMInputRatePer1K/1000 + 1500*LLMOutputRatePer1K/1000
	if !almostEqual(tracker.LLMCostUSD, want) {
		t.Fatalf("expected llm cost %f, got %f", want, tracker.LLMCostUSD)
	}
}

func TestCostTrackerEmailCostRecomputed(t *testing.T) {
	t.Parallel()

	tracker := &CostTracker{}
	if tracker.EmailCostUSD() != 0 {
		t.Fatalf("expected zero email cost, got %f", tracker.EmailCostUSD())
	}

	tracker.RecordEmailSent()
	tracker.RecordEmailSent()

	if tracker.EmailsSent != 2 {
		t.Fatalf("expected 2 emails sent, got %d", tracker.EmailsSent)
	}
	if !almostEqual(tracker.EmailCostUSD(), 2*EmailRatePerSend) {
		t.Fatalf("expected email cost %f, got %f", 2*EmailRatePerSend, tracker.EmailCostUSD())
	}
}

func TestCostTrackerTotalReflectsLatestState(t *testing.T) {
	t.Parallel()

	tracker := &CostTracker{}
	tracker.AddScrapeCost(0.50)

	first := tracker.TotalCost()
	if !almostEqual(first, 0.50) {
		t.Fatalf("expected total 0.50, got %f", first)
	}

	tracker.AddLLMUsage(1000, 1000)
	tracker.RecordEmailSent()

	want := 0.50 + (1000*LLMInputRatePer1K+1000*LLMOutputRatePer1K)/1000 + EmailRatePerSend
	if !almostEqual(tracker.TotalCost(), want) {
		t.Fatalf("expected total %f, got %f", want, tracker.TotalCost())
	}
}

func TestSourceValid(t *testing.T) {
	t.Parallel()

	for _, source := range []Source{SourceSocial, SourceNewsletter, SourceVideo} {
		if !source.Valid() {
			t.Fatalf("expected %s to be valid", source)
		}
	}
	if Source("rss").Valid() {
		t.Fatal("expected unknown source to be invalid")
	}
}

func TestValidFeedbackResponse(t *testing.T) {
	t.Parallel()

	if !ValidFeedbackResponse("useful") || !ValidFeedbackResponse("not_useful") {
		t.Fatal("expected canonical responses to validate")
	}
	if ValidFeedbackResponse("maybe") || ValidFeedbackResponse("") {
		t.Fatal("expected unknown responses to be rejected")
	}
}
