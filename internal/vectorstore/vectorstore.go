// Package vectorstore implements the Vector Store: pgvector-backed article
// embeddings with cosine-similarity nearest-neighbour search, filterable by
// domain and minimum quality score.
package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
)

// Store wraps the article_vectors table.
type Store struct {
	pool *pgxpool.Pool
}

// New builds a Store over an existing connection pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert writes one ArticleVector, returning its generated id.
func (s *Store) Insert(ctx context.Context, v domain.ArticleVector, title, body, url, sourceSite string, publishedAt *time.Time) (string, error) {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	const q = `
INSERT INTO article_vectors
	(id, article_id, domain_id, title, body, url, source_site, published_at, extracted_at, quality_score, keywords, embedding, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), $9, $10, $11, now())`

	var published pgtype.Timestamptz
	if publishedAt != nil {
		published = pgtype.Timestamptz{Time: *publishedAt, Valid: true}
	}

	_, err := s.pool.Exec(ctx, q,
		mustUUID(v.ID), v.ArticleID, v.DomainID, title, body, url, sourceSite, published,
		v.Quality, []string{}, pgvector.NewVector(v.Embedding),
	)
	if err != nil {
		return "", fmt.Errorf("insert article vector: %w", err)
	}
	return v.ID, nil
}

// Delete removes a vector object, used when the Store Coordinator rolls
// back a partially completed write.
func (s *Store) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM article_vectors WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, mustUUID(id))
	if err != nil {
		return fmt.Errorf("delete article vector: %w", err)
	}
	return nil
}

// Exists reports whether a vector object id is still present, used by the
// reconciliation sweep to decide whether a dangling VectorID is orphaned.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT 1 FROM article_vectors WHERE id = $1`
	var one int
	err := s.pool.QueryRow(ctx, q, mustUUID(id)).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check article vector exists: %w", err)
	}
	return true, nil
}

// Match is one nearest-neighbour search result, carrying enough metadata
// to render without a relational join back to extracted_articles.
type Match struct {
	VectorID     string
	ArticleID    string
	Title        string
	Body         string
	URL          string
	SourceSite   string
	DomainID     string
	PublishedAt  *time.Time
	QualityScore float64
	Distance     float64
}

// SearchParams bounds a nearest-neighbour query.
type SearchParams struct {
	Embedding    []float32
	DomainID     string // optional; empty means no domain filter
	MinQuality   float64
	K            int
}

// Search returns the k nearest ArticleVectors to params.Embedding by cosine
// distance (pgvector's <=> operator), optionally filtered by domain and a
// minimum quality score.
func (s *Store) Search(ctx context.Context, params SearchParams) ([]Match, error) {
	q := `
SELECT id, article_id, title, body, url, source_site, domain_id, published_at, quality_score,
       embedding <=> $1 AS distance
FROM article_vectors
WHERE quality_score >= $2`
	args := []any{pgvector.NewVector(params.Embedding), params.MinQuality}

	if params.DomainID != "" {
		q += " AND domain_id = $3"
		args = append(args, params.DomainID)
	}
	q += " ORDER BY distance ASC LIMIT " + limitPlaceholder(len(args)+1)
	args = append(args, params.K)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search article vectors: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var (
			id                                 pgtype.UUID
			articleID, title, body, url        string
			sourceSite, domainID               string
			publishedAt                        pgtype.Timestamptz
			quality, distance                  float64
		)
		if err := rows.Scan(&id, &articleID, &title, &body, &url, &sourceSite, &domainID, &publishedAt, &quality, &distance); err != nil {
			return nil, fmt.Errorf("scan article vector match: %w", err)
		}
		m := Match{
			VectorID:     uuid.UUID(id.Bytes).String(),
			ArticleID:    articleID,
			Title:        title,
			Body:         body,
			URL:          url,
			SourceSite:   sourceSite,
			DomainID:     domainID,
			QualityScore: quality,
			Distance:     distance,
		}
		if publishedAt.Valid {
			t := publishedAt.Time
			m.PublishedAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func limitPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func mustUUID(id string) pgtype.UUID {
	u, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: u, Valid: true}
}
