package email

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

// ResendSender delivers digest and alert emails through the Resend HTTP
// API. Delivery failures are reported as false and never abort a run; each
// successful digest send counts one email on the run tracker.
type ResendSender struct {
	endpoint  string
	apiKey    string
	from      string
	recipient string
	client    *http.Client
	logger    *slog.Logger
}

var _ ports.DigestSender = (*ResendSender)(nil)

// NewResendSender builds a sender from configuration.
func NewResendSender(cfg config.EmailConfig, logger *slog.Logger) *ResendSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResendSender{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:    cfg.APIKey,
		from:      cfg.From,
		recipient: cfg.Recipient,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

// SendDigest emails the rendered digest for the given date.
func (s *ResendSender) SendDigest(ctx context.Context, html string, day time.Time, tracker *domain.CostTracker) bool {
	subject := fmt.Sprintf("Your Learning Digest - %s", day.Format("Jan 02, 2006"))
	if err := s.send(ctx, subject, html); err != nil {
		s.logger.Error("failed to send digest email", "error", err)
		return false
	}
	if tracker != nil {
		tracker.RecordEmailSent()
	}
	s.logger.Info("digest email sent", "subject", subject)
	return true
}

// SendAlert emails an operational warning, e.g. the low-precision alert.
func (s *ResendSender) SendAlert(ctx context.Context, subject, body string) bool {
	html := "<p>" + strings.ReplaceAll(body, "\n", "<br>") + "</p>"
	if err := s.send(ctx, subject, html); err != nil {
		s.logger.Error("failed to send alert email", "error", err)
		return false
	}
	s.logger.Info("alert email sent", "subject", subject)
	return true
}

func (s *ResendSender) send(ctx context.Context, subject, html string) error {
	if s.apiKey == "" || s.recipient == "" {
		return fmt.Errorf("email sender misconfigured")
	}

	body, err := json.Marshal(map[string]any{
		"from":    s.from,
		"to":      []string{s.recipient},
		"subject": subject,
		"html":    html,
	})
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("resend error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	return nil
}
