package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	crawlerrors "github.com/fcollova/tanea-crawler/internal/core/errors"
)

// InsertLink records a newly discovered URL in the NEW state, or returns
// the existing row's id if the URL was already seen for this Site.
func (db *DB) InsertLink(ctx context.Context, siteID, url, discoveredVia string, depth int) (string, error) {
	id := uuid.NewString()
	const q = `
INSERT INTO discovered_links (id, site_id, url, state, discovered_at, discovered_via, depth, error_count)
VALUES ($1, $2, $3, 'new', now(), $4, $5, 0)
ON CONFLICT (site_id, url) DO NOTHING
RETURNING id`

	var returned pgtype.UUID
	err := db.Pool.QueryRow(ctx, q, toUUID(id), toUUID(siteID), toText(url), toText(discoveredVia), toInt4(depth)).Scan(&returned)
	if err == nil {
		return fromUUID(returned), nil
	}
	if err == pgx.ErrNoRows {
		return db.findLinkID(ctx, siteID, url)
	}
	return "", fmt.Errorf("insert link: %w", err)
}

func (db *DB) findLinkID(ctx context.Context, siteID, url string) (string, error) {
	const q = `SELECT id FROM discovered_links WHERE site_id = $1 AND url = $2`
	var id pgtype.UUID
	if err := db.Pool.QueryRow(ctx, q, toUUID(siteID), toText(url)).Scan(&id); err != nil {
		return "", fmt.Errorf("find link: %w", err)
	}
	return fromUUID(id), nil
}

const linkColumns = `id, site_id, url, state, discovered_at, discovered_via, depth, last_crawled_at, error_count, last_error, article_id`

// ClaimForCrawl transitions one NEW link for siteID to CRAWLING, guarded by
// a WHERE state = 'new' and FOR UPDATE SKIP LOCKED so two orchestrator
// workers never claim the same link. Returns crawlerrors.ErrNotFound if no
// NEW link is available.
func (db *DB) ClaimForCrawl(ctx context.Context, siteID string) (*domain.DiscoveredLink, error) {
	q := `
UPDATE discovered_links
SET state = 'crawling'
WHERE id = (
	SELECT id FROM discovered_links
	WHERE site_id = $1 AND state = 'new'
	ORDER BY discovered_at
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING ` + linkColumns

	link, err := scanLink(db.Pool.QueryRow(ctx, q, toUUID(siteID)))
	if err == pgx.ErrNoRows {
		return nil, crawlerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim for crawl: %w", err)
	}
	return link, nil
}

// MarkCrawled transitions a link CRAWLING -> CRAWLED and attaches the
// ExtractedArticle id. The WHERE state = 'crawling' guard makes this a
// no-op if the link was concurrently recovered by RecoverOrphans.
func (db *DB) MarkCrawled(ctx context.Context, linkID, articleID string) error {
	const q = `
UPDATE discovered_links
SET state = 'crawled', last_crawled_at = now(), article_id = $2, error_count = 0, last_error = ''
WHERE id = $1 AND state = 'crawling'`

	tag, err := db.Pool.Exec(ctx, q, toUUID(linkID), toUUID(articleID))
	if err != nil {
		return fmt.Errorf("mark crawled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawlerrors.ErrNotFound
	}
	return nil
}

// MarkFailed transitions a link CRAWLING -> FAILED (or BLOCKED once
// maxFailures is reached), recording reason and bumping error_count.
func (db *DB) MarkFailed(ctx context.Context, linkID, reason string, maxFailures int) error {
	const q = `
UPDATE discovered_links
SET state = CASE WHEN error_count + 1 >= $3 THEN 'blocked' ELSE 'failed' END,
    error_count = error_count + 1,
    last_error = $2
WHERE id = $1 AND state = 'crawling'`

	tag, err := db.Pool.Exec(ctx, q, toUUID(linkID), toText(reason), toInt4(maxFailures))
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return crawlerrors.ErrNotFound
	}
	return nil
}

// RecoverOrphans resets every link stuck in CRAWLING back to NEW. Run once
// at orchestrator startup to undo the effect of a crash between
// ClaimForCrawl and a terminal-state transition.
func (db *DB) RecoverOrphans(ctx context.Context) (int64, error) {
	const q = `UPDATE discovered_links SET state = 'new' WHERE state = 'crawling'`
	tag, err := db.Pool.Exec(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("recover orphans: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MarkObsolete marks a Site's CRAWLED/FAILED links not in keepIDs as
// OBSOLETE; used by the cleanup job to retire links a site no longer links to.
func (db *DB) MarkObsolete(ctx context.Context, siteID string, keepIDs []string) (int64, error) {
	uuids := make([]pgtype.UUID, len(keepIDs))
	for i, id := range keepIDs {
		uuids[i] = toUUID(id)
	}
	const q = `
UPDATE discovered_links
SET state = 'obsolete'
WHERE site_id = $1 AND state IN ('crawled', 'failed') AND NOT (id = ANY($2))`

	tag, err := db.Pool.Exec(ctx, q, toUUID(siteID), uuids)
	if err != nil {
		return 0, fmt.Errorf("mark obsolete: %w", err)
	}
	return tag.RowsAffected(), nil
}

// LinksDueForRefresh returns CRAWLED links for siteID last crawled before
// the refresh cutoff, transitioning them back to NEW so they are recrawled.
func (db *DB) LinksDueForRefresh(ctx context.Context, siteID string, cutoffSeconds int64) ([]*domain.DiscoveredLink, error) {
	const q = `
UPDATE discovered_links
SET state = 'new'
WHERE id IN (
	SELECT id FROM discovered_links
	WHERE site_id = $1 AND state = 'crawled' AND last_crawled_at < now() - ($2 || ' seconds')::interval
)
RETURNING ` + linkColumns

	rows, err := db.Pool.Query(ctx, q, toUUID(siteID), cutoffSeconds)
	if err != nil {
		return nil, fmt.Errorf("links due for refresh: %w", err)
	}
	defer rows.Close()

	var out []*domain.DiscoveredLink
	for rows.Next() {
		link, err := scanLinkRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, link)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*domain.DiscoveredLink, error) {
	var (
		id, siteID, url, state, discoveredVia, lastError string
		discoveredAt                                      pgtype.Timestamptz
		depth, errorCount                                 pgtype.Int4
		lastCrawledAt                                      pgtype.Timestamptz
		articleID                                         pgtype.UUID
	)

	var idU, siteIDU pgtype.UUID
	if err := row.Scan(&idU, &siteIDU, &url, &state, &discoveredAt, &discoveredVia, &depth, &lastCrawledAt, &errorCount, &lastError, &articleID); err != nil {
		return nil, err
	}
	id = fromUUID(idU)
	siteID = fromUUID(siteIDU)

	link := &domain.DiscoveredLink{
		ID:            id,
		SiteID:        siteID,
		URL:           url,
		State:         domain.LinkState(state),
		DiscoveredAt:  fromTimestamptz(discoveredAt),
		DiscoveredVia: discoveredVia,
		Depth:         fromInt4(depth),
		LastCrawledAt: fromTimestamptzPtr(lastCrawledAt),
		ErrorCount:    fromInt4(errorCount),
		LastError:     lastError,
	}
	if articleID.Valid {
		v := fromUUID(articleID)
		link.ArticleID = &v
	}
	return link, nil
}

func scanLinkRows(rows pgx.Rows) (*domain.DiscoveredLink, error) {
	return scanLink(rows)
}
