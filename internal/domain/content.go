package domain

import "time"

// Source enumerates the providers the pipeline ingests from. The set is
// closed: adapters and the scorer switch exhaustively over these values.
type Source string

const (
	SourceSocial     Source = "social"
	SourceNewsletter Source = "newsletter"
	SourceVideo      Source = "video"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceSocial, SourceNewsletter, SourceVideo:
		return true
	}
	return false
}

// ContentItem is a raw item produced by an ingestion adapter. It is never
// persisted before scoring; URL is the dedup key within a run.
type ContentItem struct {
	Source      Source
	Title       string
	URL         string
	Author      string
	Snippet     string
	PublishedAt *time.Time
}

// ScoredItem is a content item with its relevance score attached.
// Persisted keyed by (url, digest date).
type ScoredItem struct {
	ContentItem
	Score         float64
	Justification string
}

// StoredItem is a scored item read back from storage, carrying the
// store-assigned id used in feedback links.
type StoredItem struct {
	ID string
	ScoredItem
	DigestDate      time.Time
	IncludedInEmail bool
}
