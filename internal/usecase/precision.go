package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"learningfeed/internal/ports"
)

const (
	lowPrecisionThreshold = 60.0 // percent
	alertWindowDays       = 3
)

// PrecisionMonitor recomputes feedback precision for recent digests and
// raises a single alert when precision stays below the threshold for the
// whole window.
type PrecisionMonitor struct {
	repository ports.Repository
	sender     ports.DigestSender
	logger     *slog.Logger
}

// NewPrecisionMonitor wires the monitor against the store and the emailer.
func NewPrecisionMonitor(repository ports.Repository, sender ports.DigestSender, logger *slog.Logger) *PrecisionMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrecisionMonitor{repository: repository, sender: sender, logger: logger}
}

// CheckAndAlert recomputes precision for each of the last alertWindowDays
// days (so late-arriving feedback is picked up), then re-reads the persisted
// rates. It sends exactly one alert when all days in the window carry a
// known rate below the threshold; a single missing or healthy day suppresses
// the alert.
func (m *PrecisionMonitor) CheckAndAlert(ctx context.Context, today time.Time) error {
	for daysAgo := 1; daysAgo <= alertWindowDays; daysAgo++ {
		day := today.AddDate(0, 0, -daysAgo)
		rate, known, err := m.repository.PrecisionForDate(ctx, day)
		if err != nil {
			return fmt.Errorf("precision for %s: %w", day.Format("2006-01-02"), err)
		}
		if !known {
			continue
		}
		if err := m.repository.SetPrecision(ctx, day, rate); err != nil {
			return fmt.Errorf("persist precision for %s: %w", day.Format("2006-01-02"), err)
		}
		m.logger.Info("precision", "date", day.Format("2006-01-02"), "rate", rate)
	}

	stats, err := m.repository.PrecisionStats(ctx, alertWindowDays)
	if err != nil {
		return fmt.Errorf("load precision stats: %w", err)
	}
	if len(stats) < alertWindowDays {
		m.logger.Info("not enough data for precision alert check", "have", len(stats), "need", alertWindowDays)
		return nil
	}

	for _, stat := range stats {
		if stat.PrecisionRate >= lowPrecisionThreshold {
			m.logger.Info("precision within acceptable range")
			return nil
		}
	}

	lines := make([]string, 0, len(stats))
	for _, stat := range stats {
		lines = append(lines, fmt.Sprintf("%s: %.2f%%", stat.DigestDate.Format("2006-01-02"), stat.PrecisionRate))
	}
	body := fmt.Sprintf(
		"Precision has been below %.0f%% for %d consecutive days.\n\n%s\n\nConsider updating your learning context to better match your interests.",
		lowPrecisionThreshold, alertWindowDays, strings.Join(lines, "\n"))

	if m.sender.SendAlert(ctx, "Learning Feed: Low Precision Alert", body) {
		m.logger.Warn("low precision alert sent", "days", lines)
	} else {
		m.logger.Error("failed to send low precision alert")
	}
	return nil
}
