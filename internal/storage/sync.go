package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

// ArticlesWithVectorID returns every ExtractedArticle that still carries a
// vector-object reference, for the Sync job's existence sweep.
func (db *DB) ArticlesWithVectorID(ctx context.Context) ([]*domain.ExtractedArticle, error) {
	const q = `
SELECT id, link_id, site_id, domain_id, url, title, author, published_at, language,
       source_name, word_count, quality_score, keywords, content_hash, vector_id, extracted_at
FROM extracted_articles
WHERE vector_id IS NOT NULL`

	rows, err := db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list articles with vector id: %w", err)
	}
	defer rows.Close()

	var out []*domain.ExtractedArticle
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article with vector id: %w", err)
		}
		out = append(out, article)
	}
	return out, rows.Err()
}

// OrphanVectorIDs returns article_vectors rows no extracted_articles row
// still points at, for the Sync job's orphan cleanup sweep.
func (db *DB) OrphanVectorIDs(ctx context.Context) ([]string, error) {
	const q = `
SELECT av.id
FROM article_vectors av
WHERE NOT EXISTS (
	SELECT 1 FROM extracted_articles ea WHERE ea.vector_id = av.id
)`

	rows, err := db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list orphan vector ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan orphan vector id: %w", err)
		}
		out = append(out, fromUUID(id))
	}
	return out, rows.Err()
}

// ResetToStoreWriteFailure transitions a CRAWLED link back to FAILED with
// reason "store-write" and clears its article reference, used when the Sync
// job discovers the article's vector object no longer exists.
func (db *DB) ResetToStoreWriteFailure(ctx context.Context, linkID string, maxFailures int) error {
	const q = `
UPDATE discovered_links
SET state = CASE WHEN error_count + 1 >= $2 THEN 'blocked' ELSE 'failed' END,
    error_count = error_count + 1,
    last_error = 'store-write',
    article_id = NULL
WHERE id = $1 AND state = 'crawled'`

	_, err := db.Pool.Exec(ctx, q, toUUID(linkID), toInt4(maxFailures))
	if err != nil {
		return fmt.Errorf("reset link to store-write failure: %w", err)
	}
	return nil
}
