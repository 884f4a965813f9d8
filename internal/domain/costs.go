package domain

// Per-1000-token and per-email provider rates, in USD.
const (
	LLMInputRatePer1K  = 0.0025
	LLMOutputRatePer1K = 0.01
	EmailRatePerSend   = 0.00028
)

// CostTracker accumulates provider spend across one pipeline run. It is
// created at run start, mutated by every cost-incurring stage, and read at
// the end to populate the digest log. One instance per run, sequential
// mutation only; never shared between runs.
type CostTracker struct {
	LLMPromptTokens     int
	LLMCompletionTokens int
	LLMCostUSD          float64
	ScrapeCostUSD       float64
	EmailsSent          int
}

// AddLLMUsage accumulates token counts and cost for one LLM call.
// Safe to call once per batch; cost adds up across batches.
func (t *CostTracker) AddLLMUsage(promptTokens, completionTokens int) {
	t.LLMPromptTokens += promptTokens
	t.LLMCompletionTokens += completionTokens
	t.LLMCostUSD += (float64(promptTokens)*LLMInputRatePer1K + float64(completionTokens)*LLMOutputRatePer1K) / 1000
}

// AddScrapeCost adds a flat cost incurred by the paid ingestion adapter.
func (t *CostTracker) AddScrapeCost(usd float64) {
	t.ScrapeCostUSD += usd
}

// RecordEmailSent counts one real delivered email. Calling it twice
// double-counts; each call represents one send.
func (t *CostTracker) RecordEmailSent() {
	t.EmailsSent++
}

// EmailCostUSD is recomputed from the sent counter so it is always exact.
func (t *CostTracker) EmailCostUSD() float64 {
	return float64(t.EmailsSent) * EmailRatePerSend
}

// TotalCost sums all cost components, recomputed on every read.
func (t *CostTracker) TotalCost() float64 {
	return t.LLMCostUSD + t.ScrapeCostUSD + t.EmailCostUSD()
}

// LLMTokens is the combined prompt and completion token count.
func (t *CostTracker) LLMTokens() int {
	return t.LLMPromptTokens + t.LLMCompletionTokens
}
