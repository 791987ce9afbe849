// Package coordinator implements the Store Coordinator: it sequences the
// dual write of one extracted article into the Vector Store and the
// relational Link Store, retrying on transient failure and recording a
// ReconciliationHint when it cannot confirm both writes landed consistently.
package coordinator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	crawlerrors "github.com/fcollova/tanea-crawler/internal/core/errors"
	"github.com/fcollova/tanea-crawler/internal/extract"
	"github.com/fcollova/tanea-crawler/internal/platform/observability"
)

const maxWriteRetries = 3

// LinkStore is the subset of the relational store the coordinator needs.
type LinkStore interface {
	ArticleByContentHash(ctx context.Context, domainID, contentHash string) (*domain.ExtractedArticle, error)
	InsertArticle(ctx context.Context, a *domain.ExtractedArticle) (string, error)
	MarkCrawled(ctx context.Context, linkID, articleID string) error
	InsertReconciliationHint(ctx context.Context, h domain.ReconciliationHint) error
}

// VectorStore is the subset of the vector store the coordinator needs.
type VectorStore interface {
	Insert(ctx context.Context, v domain.ArticleVector, title, body, url, sourceSite string, publishedAt *time.Time) (string, error)
	Delete(ctx context.Context, id string) error
}

// EmbeddingClient generates the dense embedding of title ⊕ body.
type EmbeddingClient interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Coordinator sequences vector-then-relational writes for one article.
type Coordinator struct {
	links      LinkStore
	vectors    VectorStore
	embeddings EmbeddingClient
	logger     zerolog.Logger
}

// New builds a Coordinator.
func New(links LinkStore, vectors VectorStore, embeddings EmbeddingClient, logger zerolog.Logger) *Coordinator {
	return &Coordinator{links: links, vectors: vectors, embeddings: embeddings, logger: logger}
}

// Commit stores article: embeds title⊕body, inserts the vector object,
// inserts the relational ExtractedArticle row referencing it, and
// transitions the link to CRAWLED. Duplicate content (by body-only hash,
// scoped per Domain) short-circuits with crawlerrors.ErrDuplicateContent
// before either store is touched.
func (c *Coordinator) Commit(ctx context.Context, link *domain.DiscoveredLink, site domain.Site, a *extract.Article, sourceName string) error {
	hash := contentHash(a.Content)

	existing, err := c.links.ArticleByContentHash(ctx, site.DomainID, hash)
	if err != nil {
		return fmt.Errorf("check duplicate content: %w", err)
	}
	if existing != nil {
		observability.CoordinatorWrites.WithLabelValues("duplicate").Inc()
		return crawlerrors.ErrDuplicateContent
	}

	embedding, err := c.embeddings.GetEmbedding(ctx, a.Title+"\n\n"+a.Content)
	if err != nil {
		return fmt.Errorf("generate embedding: %w", err)
	}

	vectorID, err := c.writeVectorWithRetry(ctx, a, site, sourceName, embedding)
	if err != nil {
		return fmt.Errorf("%w: %w", crawlerrors.ErrStoreFatal, err)
	}

	article := &domain.ExtractedArticle{
		LinkID:       link.ID,
		SiteID:       site.ID,
		DomainID:     site.DomainID,
		URL:          a.URL,
		Title:        a.Title,
		Author:       a.Author,
		PublishedAt:  a.PublishedAt,
		Language:     a.Language,
		SourceName:   sourceName,
		WordCount:    a.WordCount,
		QualityScore: a.QualityScore,
		Keywords:     a.Keywords,
		ContentHash:  hash,
		VectorID:     &vectorID,
	}

	articleID, err := c.writeArticleWithRetry(ctx, article)
	if err != nil {
		// The vector write already succeeded but has no relational backref.
		// Try to undo it first; only fall back to a reconciliation hint if
		// the vector object proves impossible to remove.
		if delErr := c.deleteVectorWithRetry(ctx, vectorID); delErr != nil {
			c.logger.Error().Err(delErr).Str("link_id", link.ID).Str("vector_id", vectorID).
				Msg("failed to delete orphaned vector, recording reconciliation hint")
			if hintErr := c.links.InsertReconciliationHint(ctx, domain.ReconciliationHint{LinkID: link.ID, VectorID: vectorID}); hintErr != nil {
				c.logger.Error().Err(hintErr).Str("link_id", link.ID).Msg("failed to record reconciliation hint")
			}
			observability.ReconciliationHints.Inc()
		} else {
			c.logger.Warn().Str("link_id", link.ID).Str("vector_id", vectorID).
				Msg("deleted orphaned vector after relational write failure")
		}
		observability.CoordinatorWrites.WithLabelValues("inconsistent").Inc()
		return fmt.Errorf("%w: %w", crawlerrors.ErrStoreFatal, err)
	}

	if err := c.links.MarkCrawled(ctx, link.ID, articleID); err != nil {
		return fmt.Errorf("mark link crawled: %w", err)
	}

	observability.CoordinatorWrites.WithLabelValues("committed").Inc()
	return nil
}

func (c *Coordinator) writeVectorWithRetry(ctx context.Context, a *extract.Article, site domain.Site, sourceName string, embedding []float32) (string, error) {
	v := domain.ArticleVector{
		DomainID:  site.DomainID,
		Embedding: embedding,
		Quality:   a.QualityScore,
	}

	var lastErr error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		id, err := c.vectors.Insert(ctx, v, a.Title, a.Content, a.URL, sourceName, a.PublishedAt)
		if err == nil {
			return id, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("vector store write failed, retrying")
	}
	return "", fmt.Errorf("%w after %d attempts: %w", crawlerrors.ErrStoreWrite, maxWriteRetries, lastErr)
}

// deleteVectorWithRetry best-effort deletes a vector object orphaned by a
// failed relational write, retrying transient failures the same way the
// writes above do.
func (c *Coordinator) deleteVectorWithRetry(ctx context.Context, vectorID string) error {
	var lastErr error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		err := c.vectors.Delete(ctx, vectorID)
		if err == nil {
			return nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Str("vector_id", vectorID).
			Msg("vector store delete failed, retrying")
	}
	return fmt.Errorf("%w after %d attempts: %w", crawlerrors.ErrStoreWrite, maxWriteRetries, lastErr)
}

func (c *Coordinator) writeArticleWithRetry(ctx context.Context, a *domain.ExtractedArticle) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxWriteRetries; attempt++ {
		id, err := c.links.InsertArticle(ctx, a)
		if err == nil {
			return id, nil
		}
		lastErr = err
		c.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("relational store write failed, retrying")
	}
	return "", fmt.Errorf("%w after %d attempts: %w", crawlerrors.ErrStoreWrite, maxWriteRetries, lastErr)
}

// contentHash hashes the article body only: a headline edit alone should
// not mint a new article.
func contentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}
