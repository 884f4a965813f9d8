package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"learningfeed/internal/domain"
	"learningfeed/internal/ports"
)

// YouTubeSource fetches recent uploads from configured channels via the
// Data API v3.
type YouTubeSource struct {
	apiKey     string
	endpoint   string
	channelIDs []string
	lookback   time.Duration
	client     *http.Client
	logger     *slog.Logger
}

var _ ports.ContentSource = (*YouTubeSource)(nil)

// NewYouTubeSource wires the channel list against the Data API endpoint.
func NewYouTubeSource(apiKey, endpoint string, channelIDs []string, lookback time.Duration, client *http.Client, logger *slog.Logger) *YouTubeSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YouTubeSource{
		apiKey:     apiKey,
		endpoint:   strings.TrimRight(endpoint, "/"),
		channelIDs: channelIDs,
		lookback:   lookback,
		client:     client,
		logger:     logger,
	}
}

// Name identifies the adapter in pipeline logs.
func (s *YouTubeSource) Name() string {
	return "youtube"
}

type playlistItemsResponse struct {
	Items []struct {
		Snippet struct {
			PublishedAt  string `json:"publishedAt"`
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			ResourceID   struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
}

// Fetch lists the uploads playlist of each channel and keeps videos
// published within the lookback window. A failing channel is logged and
// skipped.
func (s *YouTubeSource) Fetch(ctx context.Context, _ *domain.CostTracker) ([]domain.ContentItem, error) {
	if len(s.channelIDs) == 0 {
		s.logger.Warn("no YouTube channel IDs configured")
		return nil, nil
	}
	if s.apiKey == "" {
		s.logger.Warn("YouTube API key not configured")
		return nil, nil
	}

	cutoff := time.Now().UTC().Add(-s.lookback)
	var items []domain.ContentItem

	for _, channelID := range s.channelIDs {
		videos, err := s.fetchChannel(ctx, channelID, cutoff)
		if err != nil {
			s.logger.Warn("failed to fetch channel", "channel", channelID, "error", err)
			continue
		}
		items = append(items, videos...)
	}

	s.logger.Info("total video items", "count", len(items))
	return items, nil
}

func (s *YouTubeSource) fetchChannel(ctx context.Context, channelID string, cutoff time.Time) ([]domain.ContentItem, error) {
	playlistID := uploadsPlaylistID(channelID)

	query := url.Values{}
	query.Set("part", "snippet")
	query.Set("playlistId", playlistID)
	query.Set("maxResults", "10")
	query.Set("key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/playlistItems?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request playlist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("youtube returned %s", resp.Status)
	}

	var payload playlistItemsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}

	var items []domain.ContentItem
	for _, video := range payload.Items {
		snippet := video.Snippet

		var published *time.Time
		if snippet.PublishedAt != "" {
			if parsed, err := time.Parse(time.RFC3339, snippet.PublishedAt); err == nil {
				t := parsed.UTC()
				published = &t
				if t.Before(cutoff) {
					continue
				}
			}
		}

		if snippet.ResourceID.VideoID == "" {
			continue
		}

		items = append(items, domain.ContentItem{
			Source:      domain.SourceVideo,
			Title:       strings.TrimSpace(snippet.Title),
			URL:         "https://www.youtube.com/watch?v=" + snippet.ResourceID.VideoID,
			Author:      snippet.ChannelTitle,
			Snippet:     truncateSnippet(snippet.Description),
			PublishedAt: published,
		})
	}

	return items, nil
}

// uploadsPlaylistID maps a channel id to its uploads playlist (UC -> UU).
func uploadsPlaylistID(channelID string) string {
	if strings.HasPrefix(channelID, "UC") {
		return "UU" + channelID[2:]
	}
	return channelID
}
