package feed

import (
	"fmt"
	"time"
)

// RawItem is one aggregator item mapped onto the task shape that travels
// through a sink. Optional fields are left empty (or nil) when the source
// omitted them.
type RawItem struct {
	SourceItemID string     `json:"source_item_id"`
	FeedID       string     `json:"feed_id"`
	Title        string     `json:"title"`
	Content      string     `json:"content,omitempty"`
	Summary      string     `json:"summary,omitempty"`
	Author       string     `json:"author,omitempty"`
	Link         string     `json:"link,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
}

// Record is a storage-ready article derived from a RawItem.
type Record struct {
	SourceItemID string
	FeedID       string
	Title        string
	Content      string // sanitized HTML
	Summary      string // plain text
	Author       string
	Link         string
	PublishedAt  *time.Time
}

// Metadata describes a feed document fetched from its own URL.
type Metadata struct {
	Title           string
	Link            string
	Description     string
	ImageURL        string
	Language        string
	FeedPublishedAt *time.Time
}

type ValidationError struct {
	SourceItemID string
	Field        string
	Reason       string
}

func (e *ValidationError) Error() string {
	if e.SourceItemID == "" {
		return fmt.Sprintf("invalid item: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid item %s: %s %s", e.SourceItemID, e.Field, e.Reason)
}
