package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"time"

	"learningfeed/internal/domain"
	"learningfeed/internal/ports"
)

const (
	minScoreForEmail = 5.0
	topN             = 3
)

// Builder renders the daily digest email from stored, scored rows. It is a
// pure function of its input rows; it never talks to the store itself.
type Builder struct {
	feedbackBaseURL string
	tmpl            *template.Template
	logger          *slog.Logger
}

var _ ports.DigestBuilder = (*Builder)(nil)

// NewBuilder parses the digest template once. feedbackBaseURL is the public
// root of the feedback API, without a trailing slash.
func NewBuilder(feedbackBaseURL string, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		feedbackBaseURL: feedbackBaseURL,
		tmpl:            template.Must(template.New("digest").Parse(digestTemplate)),
		logger:          logger,
	}
}

type itemView struct {
	Title         string
	URL           string
	Author        string
	Source        string
	Snippet       string
	Score         float64
	Justification string
	UsefulURL     string
	NotUsefulURL  string
}

type digestView struct {
	Date       string
	TotalItems int
	TopItems   []itemView
	MoreItems  []itemView
}

// Build filters rows to the score floor, ranks them descending, splits into
// a highlighted top tier and the rest, and renders the HTML body. Returned
// ids cover every item included in the body.
func (b *Builder) Build(items []domain.StoredItem, day time.Time) (string, []string, error) {
	eligible := make([]domain.StoredItem, 0, len(items))
	for _, item := range items {
		if item.Score >= minScoreForEmail {
			eligible = append(eligible, item)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return eligible[i].Score > eligible[j].Score
	})

	split := topN
	if split > len(eligible) {
		split = len(eligible)
	}
	top, more := eligible[:split], eligible[split:]

	view := digestView{
		Date:       day.Format("January 02, 2006"),
		TotalItems: len(items),
		TopItems:   b.toViews(top),
		MoreItems:  b.toViews(more),
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, view); err != nil {
		return "", nil, fmt.Errorf("render digest: %w", err)
	}

	ids := make([]string, 0, len(eligible))
	for _, item := range eligible {
		ids = append(ids, item.ID)
	}

	b.logger.Info("built digest", "top", len(top), "more", len(more))
	return buf.String(), ids, nil
}

func (b *Builder) toViews(items []domain.StoredItem) []itemView {
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, itemView{
			Title:         item.Title,
			URL:           item.URL,
			Author:        item.Author,
			Source:        sourceLabel(item.Source),
			Snippet:       item.Snippet,
			Score:         item.Score,
			Justification: item.Justification,
			UsefulURL:     fmt.Sprintf("%s/feedback/%s?response=%s", b.feedbackBaseURL, item.ID, domain.FeedbackUseful),
			NotUsefulURL:  fmt.Sprintf("%s/feedback/%s?response=%s", b.feedbackBaseURL, item.ID, domain.FeedbackNotUseful),
		})
	}
	return views
}

func sourceLabel(source domain.Source) string {
	switch source {
	case domain.SourceNewsletter:
		return "Newsletter"
	case domain.SourceVideo:
		return "Video"
	case domain.SourceSocial:
		return "Social"
	}
	return string(source)
}

const digestTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Learning Digest</title></head>
<body style="margin:0;padding:24px;background:#f5f5f5;font-family:-apple-system,sans-serif;color:#1a1a2e;">
  <div style="max-width:640px;margin:0 auto;background:white;border-radius:12px;padding:32px;">
    <h1 style="margin:0 0 4px;">Your Learning Digest</h1>
    <p style="margin:0 0 24px;color:#666;">{{.Date}}</p>
{{if .TopItems}}
    <h2 style="margin:0 0 12px;">Top picks</h2>
{{range .TopItems}}
    <div style="margin:0 0 20px;padding:16px;background:#f8f8fc;border-radius:8px;">
      <a href="{{.URL}}" style="font-weight:600;color:#1a1a2e;">{{.Title}}</a>
      <p style="margin:4px 0;color:#888;font-size:13px;">{{.Source}}{{if .Author}} &middot; {{.Author}}{{end}} &middot; score {{printf "%.1f" .Score}}</p>
      {{if .Snippet}}<p style="margin:8px 0;color:#444;">{{.Snippet}}</p>{{end}}
      {{if .Justification}}<p style="margin:8px 0;color:#666;font-size:13px;font-style:italic;">{{.Justification}}</p>{{end}}
      <p style="margin:8px 0 0;font-size:13px;">
        <a href="{{.UsefulURL}}">Useful</a> &nbsp;|&nbsp; <a href="{{.NotUsefulURL}}">Not useful</a>
      </p>
    </div>
{{end}}
{{if .MoreItems}}
    <h2 style="margin:24px 0 12px;">More</h2>
{{range .MoreItems}}
    <div style="margin:0 0 12px;">
      <a href="{{.URL}}" style="color:#1a1a2e;">{{.Title}}</a>
      <span style="color:#888;font-size:13px;">({{.Source}}, {{printf "%.1f" .Score}})</span>
      <span style="font-size:13px;">&nbsp;<a href="{{.UsefulURL}}">Useful</a> / <a href="{{.NotUsefulURL}}">Not useful</a></span>
    </div>
{{end}}
{{end}}
{{else}}
    <p style="color:#666;">No items matched your learning goals today. Check back tomorrow.</p>
{{end}}
  </div>
</body>
</html>
`
