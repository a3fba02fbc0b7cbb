package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var _ ArticleRepository = (*ArticleRepo)(nil)

type ArticleRepo struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

const articleColumns = `id, feed_id, source_item_id, title, content, summary, link, author,
	published_at, synced_at, media_pending, created_at, extracted_content, extracted_summary`

// UpsertArticle is keyed by the source item id. The first write assigns the
// local id, feed and pending-media flag; later writes only refresh the display
// fields and the sync time. Extracted content is never touched here.
func (r *ArticleRepo) UpsertArticle(ctx context.Context, article Article) (Article, error) {
	if strings.TrimSpace(article.SourceItemID) == "" {
		return Article{}, &StoreError{Op: "upsert article", Err: errors.New("source item id is required")}
	}
	if strings.TrimSpace(article.FeedID) == "" {
		return Article{}, &StoreError{Op: "upsert article", Err: errors.New("feed id is required")}
	}

	id := article.ID
	if id == "" {
		id = uuid.NewString()
	}

	var author sql.NullString
	if article.Author != "" {
		author = sql.NullString{String: article.Author, Valid: true}
	}

	var publishedAt *time.Time
	if article.PublishedAt != nil {
		t := article.PublishedAt.UTC()
		publishedAt = &t
	}

	now := r.db.Now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Article{}, &StoreError{Op: "upsert article", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO articles (id, feed_id, source_item_id, title, content, summary, link, author,
			published_at, synced_at, media_pending, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(source_item_id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			summary = excluded.summary,
			link = excluded.link,
			author = excluded.author,
			published_at = excluded.published_at,
			synced_at = excluded.synced_at
	`, id, article.FeedID, article.SourceItemID, article.Title, article.Content, article.Summary,
		article.Link, author, publishedAt, now, now)
	if err != nil {
		return Article{}, &StoreError{Op: "upsert article", Err: err}
	}

	stored, err := scanArticle(tx.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE source_item_id = ?`, article.SourceItemID))
	if err != nil {
		return Article{}, &StoreError{Op: "upsert article", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return Article{}, &StoreError{Op: "upsert article", Err: err}
	}

	return *stored, nil
}

// GetArticleBySourceID returns nil without error when no article has that id.
func (r *ArticleRepo) GetArticleBySourceID(ctx context.Context, sourceItemID string) (*Article, error) {
	article, err := scanArticle(r.db.QueryRowContext(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE source_item_id = ?`, sourceItemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Op: "get article", Err: err}
	}

	return article, nil
}

func (r *ArticleRepo) GetArticleCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles").Scan(&count)
	if err != nil {
		return 0, &StoreError{Op: "get article count", Err: err}
	}
	return count, nil
}

func (r *ArticleRepo) GetPendingMediaCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM articles WHERE media_pending = 1").Scan(&count)
	if err != nil {
		return 0, &StoreError{Op: "get pending media count", Err: err}
	}
	return count, nil
}

// ListArticlesMissingContent returns articles of a feed that arrived without a
// body, have no extracted body yet and do have a link to fetch one from.
func (r *ArticleRepo) ListArticlesMissingContent(ctx context.Context, feedID string, limit int) ([]ArticleForExtraction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, link
		FROM articles
		WHERE feed_id = ? AND content = '' AND extracted_content = '' AND link <> ''
		ORDER BY synced_at DESC
		LIMIT ?
	`, feedID, limit)
	if err != nil {
		return nil, &StoreError{Op: "list articles missing content", Err: err}
	}
	defer rows.Close()

	var articles []ArticleForExtraction
	for rows.Next() {
		var article ArticleForExtraction
		if err := rows.Scan(&article.ID, &article.Link); err != nil {
			return nil, &StoreError{Op: "list articles missing content", Err: fmt.Errorf("failed to scan row: %w", err)}
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "list articles missing content", Err: err}
	}

	return articles, nil
}

// UpdateArticleContent stores a body extracted from the article's page. It
// lives beside the aggregator body so later syncs do not discard it.
func (r *ArticleRepo) UpdateArticleContent(ctx context.Context, id, content, summary string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE articles
		SET extracted_content = ?, extracted_summary = ?
		WHERE id = ?
	`, content, summary, id)
	if err != nil {
		return &StoreError{Op: "update article content", Err: err}
	}

	return nil
}

func scanArticle(row *sql.Row) (*Article, error) {
	var article Article
	var author sql.NullString

	err := row.Scan(
		&article.ID, &article.FeedID, &article.SourceItemID, &article.Title, &article.Content,
		&article.Summary, &article.Link, &author,
		&article.PublishedAt, &article.SyncedAt, &article.MediaPending, &article.CreatedAt,
		&article.ExtractedContent, &article.ExtractedSummary,
	)
	if err != nil {
		return nil, err
	}

	article.Author = author.String
	return &article, nil
}
