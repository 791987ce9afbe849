// Package retriever implements the Semantic Retriever: embeds a natural
// language query and returns the top-k most similar articles, optionally
// filtered by Domain and a minimum quality score.
package retriever

import (
	"context"
	"fmt"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	"github.com/fcollova/tanea-crawler/internal/platform/observability"
	"github.com/fcollova/tanea-crawler/internal/vectorstore"
)

const defaultK = 10

// Embedder generates the dense embedding of a query string, the same
// interface the Store Coordinator uses for article bodies.
type Embedder interface {
	GetEmbedding(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the subset of the vector store the retriever needs.
type Searcher interface {
	Search(ctx context.Context, params vectorstore.SearchParams) ([]vectorstore.Match, error)
}

// DomainLookup resolves a Domain's configured result cap, the same
// Registry accessor the daemon uses to look up Domains by id.
type DomainLookup interface {
	Domain(id string) (domain.Domain, error)
}

// Retriever answers similarity search queries over stored articles.
type Retriever struct {
	embedder Embedder
	search   Searcher
	domains  DomainLookup // optional; nil disables the per-domain result cap
}

// New builds a Retriever. domains may be nil, in which case Query.K (or
// defaultK) is used as-is with no per-domain cap applied.
func New(embedder Embedder, search Searcher, domains DomainLookup) *Retriever {
	return &Retriever{embedder: embedder, search: search, domains: domains}
}

// Query parameters for a semantic search.
type Query struct {
	Text       string
	DomainID   string // optional
	MinQuality float64
	K          int
}

// Search embeds query.Text and returns the k nearest articles by cosine
// similarity, nearest first.
func (r *Retriever) Search(ctx context.Context, query Query) ([]vectorstore.Match, error) {
	k := query.K
	if k <= 0 {
		k = defaultK
	}
	if query.DomainID != "" && r.domains != nil {
		if d, err := r.domains.Domain(query.DomainID); err == nil && d.MaxResults > 0 && k > d.MaxResults {
			k = d.MaxResults
		}
	}
	observability.RetrieverSearches.WithLabelValues(query.DomainID).Inc()

	embedding, err := r.embedder.GetEmbedding(ctx, query.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.search.Search(ctx, vectorstore.SearchParams{
		Embedding:  embedding,
		DomainID:   query.DomainID,
		MinQuality: query.MinQuality,
		K:          k,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return matches, nil
}
