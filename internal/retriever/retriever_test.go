package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcollova/tanea-crawler/internal/core/domain"
	"github.com/fcollova/tanea-crawler/internal/vectorstore"
)

type fakeEmbedder struct{ vec []float32 }

func (f fakeEmbedder) GetEmbedding(_ context.Context, _ string) ([]float32, error) { return f.vec, nil }

type fakeSearcher struct {
	lastParams vectorstore.SearchParams
	matches    []vectorstore.Match
}

func (f *fakeSearcher) Search(_ context.Context, params vectorstore.SearchParams) ([]vectorstore.Match, error) {
	f.lastParams = params
	return f.matches, nil
}

type fakeDomainLookup map[string]domain.Domain

func (f fakeDomainLookup) Domain(id string) (domain.Domain, error) {
	d, ok := f[id]
	if !ok {
		return domain.Domain{}, assert.AnError
	}
	return d, nil
}

func TestRetriever_SearchDefaultsK(t *testing.T) {
	searcher := &fakeSearcher{matches: []vectorstore.Match{{Title: "A"}}}
	r := New(fakeEmbedder{vec: []float32{1, 2, 3}}, searcher, nil)

	matches, err := r.Search(t.Context(), Query{Text: "Inter derby", DomainID: "football", MinQuality: 0.5})
	require.NoError(t, err)
	assert.Len(t, matches, 1)
	assert.Equal(t, defaultK, searcher.lastParams.K)
	assert.Equal(t, "football", searcher.lastParams.DomainID)
	assert.Equal(t, []float32{1, 2, 3}, searcher.lastParams.Embedding)
}

func TestRetriever_SearchRespectsExplicitK(t *testing.T) {
	searcher := &fakeSearcher{}
	r := New(fakeEmbedder{vec: []float32{1}}, searcher, nil)

	_, err := r.Search(t.Context(), Query{Text: "x", K: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, searcher.lastParams.K)
}

func TestRetriever_SearchClampsToDomainMaxResults(t *testing.T) {
	searcher := &fakeSearcher{}
	domains := fakeDomainLookup{"football": domain.Domain{ID: "football", MaxResults: 5}}
	r := New(fakeEmbedder{vec: []float32{1}}, searcher, domains)

	_, err := r.Search(t.Context(), Query{Text: "x", DomainID: "football", K: 50})
	require.NoError(t, err)
	assert.Equal(t, 5, searcher.lastParams.K)
}
