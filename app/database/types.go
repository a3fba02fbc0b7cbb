package database

import (
	"fmt"
	"time"
)

type FeedStatus string

const (
	FeedStatusPending   FeedStatus = "pending"
	FeedStatusApproved  FeedStatus = "approved"
	FeedStatusRejected  FeedStatus = "rejected"
	FeedStatusSuspended FeedStatus = "suspended"
)

func (s FeedStatus) Valid() bool {
	switch s {
	case FeedStatusPending, FeedStatusApproved, FeedStatusRejected, FeedStatusSuspended:
		return true
	}
	return false
}

type Feed struct {
	ID                string // Derived from the aggregator subscription id
	OwnerID           string
	SourceID          string // Aggregator subscription id, e.g. "feed/https://example.com/rss"
	URL               string
	Title             string
	Description       string
	Category          string
	Status            FeedStatus
	ConsentedAt       *time.Time
	SiteURL           string // Homepage from the feed document's <link>
	ImageURL          string
	Language          string
	MetadataFetchedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type FeedMetadata struct {
	Description string
	SiteURL     string
	ImageURL    string
	Language    string
}

type Article struct {
	ID           string
	FeedID       string
	SourceItemID string
	Title        string
	Content      string // Sanitized HTML
	Summary      string // Plain text
	Link         string
	Author       string
	PublishedAt  *time.Time
	SyncedAt     time.Time
	MediaPending bool
	CreatedAt    time.Time

	// Filled from the linked page when the aggregator sent no body
	ExtractedContent string
	ExtractedSummary string
}

type ArticleForExtraction struct {
	ID   string
	Link string
}

// StoreError is returned for any failure other than the conflict path the
// upserts resolve on their own.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
