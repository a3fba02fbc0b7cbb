package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

var _ FeedRepository = (*FeedRepo)(nil)

type FeedRepo struct {
	db *DB
}

func NewFeedRepository(db *DB) *FeedRepo {
	return &FeedRepo{db: db}
}

const feedColumns = `id, owner_id, source_id, url, title, description, category, status, consented_at,
	site_url, image_url, language, metadata_fetched_at, created_at, updated_at`

// UpsertFeed inserts a feed or refreshes its display fields. Owner, status,
// consent and creation time keep the values from the first write. A blank
// description never replaces a stored one.
func (r *FeedRepo) UpsertFeed(ctx context.Context, feed Feed) (Feed, error) {
	if strings.TrimSpace(feed.ID) == "" {
		return Feed{}, &StoreError{Op: "upsert feed", Err: errors.New("feed id is required")}
	}

	status := feed.Status
	if status == "" {
		status = FeedStatusPending
	}
	if !status.Valid() {
		return Feed{}, &StoreError{Op: "upsert feed", Err: fmt.Errorf("invalid status %q", status)}
	}

	now := r.db.Now()
	consentedAt := feed.ConsentedAt
	if consentedAt == nil {
		consentedAt = &now
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Feed{}, &StoreError{Op: "upsert feed", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feeds (id, owner_id, source_id, url, title, description, category, status, consented_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = CASE WHEN excluded.description <> '' THEN excluded.description ELSE feeds.description END,
			category = excluded.category,
			updated_at = excluded.updated_at
	`, feed.ID, feed.OwnerID, feed.SourceID, feed.URL, feed.Title, strings.TrimSpace(feed.Description),
		feed.Category, string(status), consentedAt.UTC(), now, now)
	if err != nil {
		return Feed{}, &StoreError{Op: "upsert feed", Err: err}
	}

	stored, err := scanFeed(tx.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, feed.ID))
	if err != nil {
		return Feed{}, &StoreError{Op: "upsert feed", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return Feed{}, &StoreError{Op: "upsert feed", Err: err}
	}

	return *stored, nil
}

// UpdateFeedMetadata stores what was learned from the feed document itself.
func (r *FeedRepo) UpdateFeedMetadata(ctx context.Context, id string, metadata FeedMetadata) error {
	now := r.db.Now()

	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET description = CASE WHEN ? <> '' THEN ? ELSE description END,
		    site_url = ?, image_url = ?, language = ?,
		    metadata_fetched_at = ?, updated_at = ?
		WHERE id = ?
	`, metadata.Description, metadata.Description, metadata.SiteURL, metadata.ImageURL, metadata.Language, now, now, id)
	if err != nil {
		return &StoreError{Op: "update feed metadata", Err: err}
	}

	return nil
}

// GetFeed returns nil without error when the feed does not exist.
func (r *FeedRepo) GetFeed(ctx context.Context, id string) (*Feed, error) {
	feed, err := scanFeed(r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "get feed", Err: err}
	}

	return feed, nil
}

func (r *FeedRepo) GetFeedCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, &StoreError{Op: "get feed count", Err: err}
	}
	return count, nil
}

func scanFeed(row *sql.Row) (*Feed, error) {
	var feed Feed
	var status string

	err := row.Scan(
		&feed.ID, &feed.OwnerID, &feed.SourceID, &feed.URL, &feed.Title, &feed.Description,
		&feed.Category, &status, &feed.ConsentedAt,
		&feed.SiteURL, &feed.ImageURL, &feed.Language, &feed.MetadataFetchedAt,
		&feed.CreatedAt, &feed.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	feed.Status = FeedStatus(status)
	return &feed, nil
}
