package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"learningfeed/internal/config"
	"learningfeed/internal/domain"
	"learningfeed/internal/ports"
)

const (
	batchSize          = 12
	missingScoreReason = "No score returned"
	failedScoreReason  = "Scoring failed"
)

// OpenAIScorer ranks content batches against the learning context via the
// chat-completions API. A failed batch degrades to zero-score placeholders
// instead of dropping or aborting; the output always matches the input in
// length and order.
type OpenAIScorer struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Scorer = (*OpenAIScorer)(nil)

// NewOpenAIScorer builds a scorer from configuration.
func NewOpenAIScorer(cfg config.OpenAIConfig, logger *slog.Logger) *OpenAIScorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAIScorer{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

// Score processes items in fixed-size batches, one API call per batch,
// recording token usage on the tracker.
func (s *OpenAIScorer) Score(ctx context.Context, items []domain.ContentItem, lc domain.LearningContext, tracker *domain.CostTracker) []domain.ScoredItem {
	if len(items) == 0 {
		return nil
	}

	scored := make([]domain.ScoredItem, 0, len(items))
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		batchScored, err := s.scoreBatch(ctx, batch, lc, tracker)
		if err != nil {
			s.logger.Error("batch scoring failed", "batch", start/batchSize+1, "error", err)
			for _, item := range batch {
				scored = append(scored, domain.ScoredItem{
					ContentItem:   item,
					Score:         0,
					Justification: failedScoreReason,
				})
			}
			continue
		}
		scored = append(scored, batchScored...)
	}

	s.logger.Info("scored items", "count", len(scored))
	return scored
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type batchScores struct {
	Scores []struct {
		Score         float64 `json:"score"`
		Justification string  `json:"justification"`
	} `json:"scores"`
}

func (s *OpenAIScorer) scoreBatch(ctx context.Context, batch []domain.ContentItem, lc domain.LearningContext, tracker *domain.CostTracker) ([]domain.ScoredItem, error) {
	if s.apiKey == "" || s.endpoint == "" || s.model == "" {
		return nil, fmt.Errorf("scorer misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt(lc)},
			{"role": "user", "content": userPrompt(batch)},
		},
		"response_format": map[string]string{"type": "json_object"},
		"temperature":     0.3,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("score batch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("llm error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("response has no choices")
	}

	if tracker != nil {
		tracker.AddLLMUsage(chat.Usage.PromptTokens, chat.Usage.CompletionTokens)
		s.logger.Debug("llm tokens", "prompt", chat.Usage.PromptTokens, "completion", chat.Usage.CompletionTokens)
	}

	var result batchScores
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("parse scores: %w", err)
	}

	scored := make([]domain.ScoredItem, 0, len(batch))
	for idx, item := range batch {
		score := 0.0
		justification := missingScoreReason
		if idx < len(result.Scores) {
			score = clampScore(result.Scores[idx].Score)
			justification = result.Scores[idx].Justification
		}
		scored = append(scored, domain.ScoredItem{
			ContentItem:   item,
			Score:         score,
			Justification: justification,
		})
	}

	return scored, nil
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

func systemPrompt(lc domain.LearningContext) string {
	skills := "Not specified"
	if len(lc.SkillLevels) > 0 {
		parts := make([]string, 0, len(lc.SkillLevels))
		for skill, level := range lc.SkillLevels {
			parts = append(parts, fmt.Sprintf("%s: %s", skill, level))
		}
		skills = strings.Join(parts, ", ")
	}

	goals := lc.Goals
	if goals == "" {
		goals = "Not specified"
	}
	project := lc.ProjectContext
	if project == "" {
		project = "None"
	}
	style := lc.Methodology.Style
	if style == "" {
		style = "practical"
	}
	depth := lc.Methodology.Depth
	if depth == "" {
		depth = "intermediate"
	}

	return fmt.Sprintf(`You are a learning content curator. Score each content item on a scale of 0-10 based on how relevant and valuable it is for the user's learning goals.

## User's Learning Context
- **Goals**: %s
- **Skill Levels**: %s
- **Learning Style**: %s
- **Depth Preference**: %s
- **Time Available**: %s
- **Current Project**: %s

## Scoring Criteria
- 8-10: Directly relevant to current goals/project, actionable, right skill level
- 5-7: Related to goals, useful but not immediately actionable
- 3-4: Tangentially related, might be useful later
- 0-2: Not relevant to current learning focus

## Response Format
Return a JSON object with a "scores" array. Each element must have:
- "score": number between 0 and 10 (one decimal place)
- "justification": brief explanation (1-2 sentences)

The array must have exactly one entry per input item, in the same order.`,
		goals, skills, style, depth, lc.TimeAvailability, project)
}

func userPrompt(items []domain.ContentItem) string {
	var b strings.Builder
	b.WriteString("Score the following content items:\n\n")
	for idx, item := range items {
		fmt.Fprintf(&b, "### Item %d\n", idx+1)
		fmt.Fprintf(&b, "- **Source**: %s\n", item.Source)
		fmt.Fprintf(&b, "- **Title**: %s\n", item.Title)
		fmt.Fprintf(&b, "- **Author**: %s\n", item.Author)
		fmt.Fprintf(&b, "- **Snippet**: %s\n\n", item.Snippet)
	}
	return b.String()
}
