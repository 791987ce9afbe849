package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

// InsertArticle writes the relational side of a successful extraction. It
// is called by the Store Coordinator only after the embedding has already
// been written to the vector store, since VectorID references that write.
func (db *DB) InsertArticle(ctx context.Context, a *domain.ExtractedArticle) (string, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	const q = `
INSERT INTO extracted_articles
	(id, link_id, site_id, domain_id, url, title, author, published_at, language,
	 source_name, word_count, quality_score, keywords, content_hash, vector_id, extracted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())`

	var vectorID pgtype.UUID
	if a.VectorID != nil {
		vectorID = toUUID(*a.VectorID)
	}

	_, err := db.Pool.Exec(ctx, q,
		toUUID(a.ID), toUUID(a.LinkID), toUUID(a.SiteID), toText(a.DomainID), toText(a.URL),
		toText(a.Title), toText(a.Author), toTimestamptzPtr(a.PublishedAt), toText(a.Language),
		toText(a.SourceName), toInt4(a.WordCount), toFloat8(a.QualityScore), a.Keywords,
		toText(a.ContentHash), vectorID,
	)
	if err != nil {
		return "", fmt.Errorf("insert article: %w", err)
	}
	return a.ID, nil
}

// ArticleByContentHash looks up an existing article by its body-only
// content hash, used to gate duplicate content before a second write.
func (db *DB) ArticleByContentHash(ctx context.Context, domainID, contentHash string) (*domain.ExtractedArticle, error) {
	const q = `
SELECT id, link_id, site_id, domain_id, url, title, author, published_at, language,
       source_name, word_count, quality_score, keywords, content_hash, vector_id, extracted_at
FROM extracted_articles
WHERE domain_id = $1 AND content_hash = $2
LIMIT 1`

	row := db.Pool.QueryRow(ctx, q, toText(domainID), toText(contentHash))
	article, err := scanArticle(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup article by content hash: %w", err)
	}
	return article, nil
}

// ClearVectorID nulls an article's vector-object reference once the Sync
// job's reconciliation sweep determines the vector object is gone.
func (db *DB) ClearVectorID(ctx context.Context, articleID string) error {
	const q = `UPDATE extracted_articles SET vector_id = NULL WHERE id = $1`
	_, err := db.Pool.Exec(ctx, q, toUUID(articleID))
	if err != nil {
		return fmt.Errorf("clear vector id: %w", err)
	}
	return nil
}

func scanArticle(row rowScanner) (*domain.ExtractedArticle, error) {
	var (
		id, linkID, siteID                         pgtype.UUID
		domainID, url, title, author, language      string
		sourceName, contentHash                     string
		publishedAt, extractedAt                    pgtype.Timestamptz
		wordCount                                   pgtype.Int4
		qualityScore                                pgtype.Float8
		keywords                                    []string
		vectorID                                    pgtype.UUID
	)

	if err := row.Scan(&id, &linkID, &siteID, &domainID, &url, &title, &author, &publishedAt,
		&language, &sourceName, &wordCount, &qualityScore, &keywords, &contentHash, &vectorID, &extractedAt); err != nil {
		return nil, err
	}

	article := &domain.ExtractedArticle{
		ID:           fromUUID(id),
		LinkID:       fromUUID(linkID),
		SiteID:       fromUUID(siteID),
		DomainID:     domainID,
		URL:          url,
		Title:        title,
		Author:       author,
		PublishedAt:  fromTimestamptzPtr(publishedAt),
		Language:     language,
		SourceName:   sourceName,
		WordCount:    fromInt4(wordCount),
		QualityScore: fromFloat8(qualityScore),
		Keywords:     keywords,
		ContentHash:  contentHash,
		ExtractedAt:  fromTimestamptz(extractedAt),
	}
	if vectorID.Valid {
		v := fromUUID(vectorID)
		article.VectorID = &v
	}
	return article, nil
}

// InsertCrawlAttempt records one audit row for a fetch attempt, successful
// or not, used for diagnostics and the per-site error_count reconciliation.
func (db *DB) InsertCrawlAttempt(ctx context.Context, a domain.CrawlAttempt) error {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	const q = `
INSERT INTO crawl_attempts (id, link_id, started_at, finished_at, success, error, http_status)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := db.Pool.Exec(ctx, q, toUUID(id), toUUID(a.LinkID), toTimestamptz(a.StartedAt),
		toTimestamptz(a.FinishedAt), a.Success, toText(a.Error), toInt4(a.HTTPStatus))
	if err != nil {
		return fmt.Errorf("insert crawl attempt: %w", err)
	}
	return nil
}

// PruneAttemptsOlderThan deletes crawl_attempts rows older than cutoff, part
// of the cleanup job's housekeeping.
func (db *DB) PruneAttemptsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM crawl_attempts WHERE started_at < $1`
	tag, err := db.Pool.Exec(ctx, q, toTimestamptz(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune crawl attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
