package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"learningfeed/internal/domain"
	"learningfeed/internal/ports"
)

// PipelineRunner triggers a synchronous pipeline run for one date.
type PipelineRunner interface {
	Run(ctx context.Context, day time.Time) (domain.RunStatus, error)
}

// Server exposes the feedback, stats, context, and manual-trigger endpoints.
// Every digest email links back here.
type Server struct {
	repository ports.Repository
	runner     PipelineRunner
	logger     *slog.Logger
	engine     *gin.Engine
}

// NewServer wires the routes.
func NewServer(repository ports.Repository, runner PipelineRunner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		repository: repository,
		runner:     runner,
		logger:     logger,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/health", s.health)
	engine.GET("/feedback/:item_id", s.recordFeedback)
	engine.GET("/stats", s.stats)
	engine.GET("/context", s.getContext)
	engine.PUT("/context", s.updateContext)
	engine.POST("/trigger", s.trigger)

	s.engine = engine
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	s.logger.Info("http api listening", "addr", addr)
	return s.engine.Run(addr)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// recordFeedback handles a feedback-link click from a digest email. The
// response value is validated against the closed set before the store is
// touched.
func (s *Server) recordFeedback(c *gin.Context) {
	itemID := c.Param("item_id")
	response := c.Query("response")

	if !domain.ValidFeedbackResponse(response) {
		c.Data(http.StatusBadRequest, "text/html; charset=utf-8",
			[]byte("<p>Invalid feedback response. Use the links from your digest email.</p>"))
		return
	}

	if err := s.repository.InsertFeedback(c.Request.Context(), itemID, response); err != nil {
		s.logger.Error("failed to record feedback", "item_id", itemID, "error", err)
		c.Data(http.StatusInternalServerError, "text/html; charset=utf-8",
			[]byte("<p>Error recording feedback. Please try again.</p>"))
		return
	}

	label := "useful"
	if response == domain.FeedbackNotUseful {
		label = "not useful"
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fmt.Sprintf(ackPage, label)))
}

type precisionStatView struct {
	DigestDate    string  `json:"digest_date"`
	PrecisionRate float64 `json:"precision_rate"`
	ItemsEmailed  int     `json:"items_emailed"`
}

// stats returns the last N persisted precision rows, N in 1..30.
func (s *Server) stats(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 30 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be between 1 and 30"})
			return
		}
		days = parsed
	}

	stats, err := s.repository.PrecisionStats(c.Request.Context(), days)
	if err != nil {
		s.logger.Error("failed to load precision stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load stats"})
		return
	}

	views := make([]precisionStatView, 0, len(stats))
	for _, stat := range stats {
		views = append(views, precisionStatView{
			DigestDate:    stat.DigestDate.Format("2006-01-02"),
			PrecisionRate: stat.PrecisionRate,
			ItemsEmailed:  stat.ItemsEmailed,
		})
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "stats": views})
}

func (s *Server) getContext(c *gin.Context) {
	lc, err := s.repository.LearningContext(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to load learning context", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load context"})
		return
	}
	c.JSON(http.StatusOK, lc)
}

// updateContext overwrites the profile; the store snapshots the previous
// value into the history log first.
func (s *Server) updateContext(c *gin.Context) {
	var lc domain.LearningContext
	if err := c.ShouldBindJSON(&lc); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.repository.UpdateLearningContext(c.Request.Context(), lc); err != nil {
		s.logger.Error("failed to update learning context", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update context"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

// trigger synchronously runs the full pipeline for today and reports the
// terminal status.
func (s *Server) trigger(c *gin.Context) {
	status, err := s.runner.Run(c.Request.Context(), time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": string(status), "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(status)})
}

const ackPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Feedback Recorded</title></head>
<body style="display:flex;justify-content:center;align-items:center;min-height:100vh;font-family:-apple-system,sans-serif;background:#f5f5f5;">
  <div style="text-align:center;background:white;padding:48px;border-radius:12px;box-shadow:0 2px 8px rgba(0,0,0,0.1);">
    <h1 style="color:#1a1a2e;margin:0 0 8px;">Thanks!</h1>
    <p style="color:#666;">You marked this as <strong>%s</strong>.</p>
    <p style="color:#888;font-size:14px;">This helps improve your future recommendations.</p>
  </div>
</body>
</html>`
