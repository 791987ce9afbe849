package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

// InsertCrawlStats writes the Crawl Orchestrator's per-run rollup, read
// back by the stats operation.
func (db *DB) InsertCrawlStats(ctx context.Context, s domain.CrawlStats) error {
	const q = `
INSERT INTO crawl_stats (job_id, site_id, domain_id, links_discovered, links_crawled, articles_extracted, errors, started_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := db.Pool.Exec(ctx, q, toText(s.JobID), toUUID(s.SiteID), toText(s.DomainID),
		toInt4(s.LinksDiscovered), toInt4(s.LinksCrawled), toInt4(s.ArticlesExtracted), toInt4(s.Errors),
		toTimestamptz(s.StartedAt), toTimestamptz(s.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert crawl stats: %w", err)
	}
	return nil
}

// StatsForDomain returns the most recent crawl_stats rows for a Domain,
// newest first, up to limit.
func (db *DB) StatsForDomain(ctx context.Context, domainID string, limit int) ([]domain.CrawlStats, error) {
	const q = `
SELECT job_id, site_id, domain_id, links_discovered, links_crawled, articles_extracted, errors, started_at, finished_at
FROM crawl_stats
WHERE domain_id = $1
ORDER BY finished_at DESC
LIMIT $2`

	rows, err := db.Pool.Query(ctx, q, toText(domainID), limit)
	if err != nil {
		return nil, fmt.Errorf("stats for domain: %w", err)
	}
	defer rows.Close()

	var out []domain.CrawlStats
	for rows.Next() {
		var (
			jobID, domID                     string
			siteID                            pgtype.UUID
			discovered, crawled, extracted, e pgtype.Int4
			started, finished                 pgtype.Timestamptz
		)
		if err := rows.Scan(&jobID, &siteID, &domID, &discovered, &crawled, &extracted, &e, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan crawl stats: %w", err)
		}
		out = append(out, domain.CrawlStats{
			JobID:             jobID,
			SiteID:            fromUUID(siteID),
			DomainID:          domID,
			LinksDiscovered:   fromInt4(discovered),
			LinksCrawled:      fromInt4(crawled),
			ArticlesExtracted: fromInt4(extracted),
			Errors:            fromInt4(e),
			StartedAt:         fromTimestamptz(started),
			FinishedAt:        fromTimestamptz(finished),
		})
	}
	return out, rows.Err()
}

// InsertReconciliationHint records that a link/vector-object pair needs the
// Sync job's attention because the Store Coordinator could not confirm both
// writes landed consistently.
func (db *DB) InsertReconciliationHint(ctx context.Context, h domain.ReconciliationHint) error {
	id := h.ID
	if id == "" {
		id = uuid.NewString()
	}
	const q = `
INSERT INTO reconciliation_hints (id, link_id, vector_id, created_at)
VALUES ($1, $2, $3, now())`

	_, err := db.Pool.Exec(ctx, q, toUUID(id), toUUID(h.LinkID), toText(h.VectorID))
	if err != nil {
		return fmt.Errorf("insert reconciliation hint: %w", err)
	}
	return nil
}

// PendingReconciliationHints returns up to limit unresolved hints for the
// Sync job to check, oldest first.
func (db *DB) PendingReconciliationHints(ctx context.Context, limit int) ([]domain.ReconciliationHint, error) {
	const q = `
SELECT id, link_id, vector_id, created_at
FROM reconciliation_hints
ORDER BY created_at
LIMIT $1`

	rows, err := db.Pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("pending reconciliation hints: %w", err)
	}
	defer rows.Close()

	var out []domain.ReconciliationHint
	for rows.Next() {
		var (
			id, linkID pgtype.UUID
			vectorID   string
			createdAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &linkID, &vectorID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan reconciliation hint: %w", err)
		}
		out = append(out, domain.ReconciliationHint{
			ID:        fromUUID(id),
			LinkID:    fromUUID(linkID),
			VectorID:  vectorID,
			CreatedAt: fromTimestamptz(createdAt),
		})
	}
	return out, rows.Err()
}

// DeleteReconciliationHint removes a hint once the Sync job resolves it.
func (db *DB) DeleteReconciliationHint(ctx context.Context, id string) error {
	const q = `DELETE FROM reconciliation_hints WHERE id = $1`
	_, err := db.Pool.Exec(ctx, q, toUUID(id))
	if err != nil {
		return fmt.Errorf("delete reconciliation hint: %w", err)
	}
	return nil
}
