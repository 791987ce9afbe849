package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	crawlerrors "github.com/fcollova/tanea-crawler/internal/core/errors"
	"github.com/fcollova/tanea-crawler/internal/extract"
)

type fakeLinkStore struct {
	byHash        map[string]*domain.ExtractedArticle
	insertedArt   *domain.ExtractedArticle
	insertErr     error
	markCrawledID string
	hints         []domain.ReconciliationHint
}

func (f *fakeLinkStore) ArticleByContentHash(_ context.Context, domainID, hash string) (*domain.ExtractedArticle, error) {
	return f.byHash[domainID+hash], nil
}
func (f *fakeLinkStore) InsertArticle(_ context.Context, a *domain.ExtractedArticle) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	f.insertedArt = a
	return "article-1", nil
}
func (f *fakeLinkStore) MarkCrawled(_ context.Context, linkID, articleID string) error {
	f.markCrawledID = articleID
	return nil
}
func (f *fakeLinkStore) InsertReconciliationHint(_ context.Context, h domain.ReconciliationHint) error {
	f.hints = append(f.hints, h)
	return nil
}

type fakeVectorStore struct {
	insertErr error
	deleteErr error
	deleted   []string
}

func (f *fakeVectorStore) Insert(_ context.Context, _ domain.ArticleVector, _, _, _, _ string, _ *time.Time) (string, error) {
	if f.insertErr != nil {
		return "", f.insertErr
	}
	return "vec-1", nil
}
func (f *fakeVectorStore) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

type fakeEmbedder struct{ err error }

func (f fakeEmbedder) GetEmbedding(_ context.Context, _ string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func testArticle() *extract.Article {
	return &extract.Article{URL: "https://example.com/a", Title: "Inter wins derby", Content: "a long body of text about the match"}
}

func TestCommit_HappyPath(t *testing.T) {
	links := &fakeLinkStore{byHash: map[string]*domain.ExtractedArticle{}}
	vectors := &fakeVectorStore{}
	c := New(links, vectors, fakeEmbedder{}, zerolog.Nop())

	link := &domain.DiscoveredLink{ID: "link-1"}
	site := domain.Site{ID: "site-1", DomainID: "football"}

	err := c.Commit(t.Context(), link, site, testArticle(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "article-1", links.markCrawledID)
	assert.NotNil(t, links.insertedArt)
	assert.Equal(t, "vec-1", *links.insertedArt.VectorID)
}

func TestCommit_DuplicateContentShortCircuits(t *testing.T) {
	a := testArticle()
	hash := contentHash(a.Content)
	links := &fakeLinkStore{byHash: map[string]*domain.ExtractedArticle{
		"football" + hash: {ID: "existing"},
	}}
	vectors := &fakeVectorStore{}
	c := New(links, vectors, fakeEmbedder{}, zerolog.Nop())

	err := c.Commit(t.Context(), &domain.DiscoveredLink{ID: "link-1"}, domain.Site{ID: "site-1", DomainID: "football"}, a, "example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawlerrors.ErrDuplicateContent)
}

func TestCommit_RelationalWriteFailureDeletesOrphanedVector(t *testing.T) {
	links := &fakeLinkStore{byHash: map[string]*domain.ExtractedArticle{}, insertErr: errors.New("db down")}
	vectors := &fakeVectorStore{}
	c := New(links, vectors, fakeEmbedder{}, zerolog.Nop())

	err := c.Commit(t.Context(), &domain.DiscoveredLink{ID: "link-1"}, domain.Site{ID: "site-1", DomainID: "football"}, testArticle(), "example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawlerrors.ErrStoreFatal)
	assert.Equal(t, []string{"vec-1"}, vectors.deleted)
	assert.Empty(t, links.hints)
}

func TestCommit_RelationalWriteFailureRecordsHintWhenDeleteAlsoFails(t *testing.T) {
	links := &fakeLinkStore{byHash: map[string]*domain.ExtractedArticle{}, insertErr: errors.New("db down")}
	vectors := &fakeVectorStore{deleteErr: errors.New("vector store unreachable")}
	c := New(links, vectors, fakeEmbedder{}, zerolog.Nop())

	err := c.Commit(t.Context(), &domain.DiscoveredLink{ID: "link-1"}, domain.Site{ID: "site-1", DomainID: "football"}, testArticle(), "example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawlerrors.ErrStoreFatal)
	assert.Len(t, vectors.deleted, maxWriteRetries)
	require.Len(t, links.hints, 1)
	assert.Equal(t, "vec-1", links.hints[0].VectorID)
}
