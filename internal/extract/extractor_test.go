package extract

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crawlerrors "github.com/fcollova/tanea-crawler/internal/core/errors"
	"github.com/fcollova/tanea-crawler/internal/pacer"
)

const longBody = `Inter Milan secured a dramatic derby win last night, with two late goals sealing a 2-0 victory over their rivals.
The match, played in front of a sold-out crowd, saw the home side dominate possession throughout.
Coach Simone Inzaghi praised his squad's resilience after the final whistle, calling it a defining night for the season.
Fans flooded the streets to celebrate what many are calling the club's best derby performance in a decade.
Analysts say the win could shift momentum in the title race with just weeks remaining in the campaign.`

func testPage(title, author, published, desc string) string {
	return `<html><head><title>` + title + `</title>
<meta property="og:description" content="` + desc + `">
<script type="application/ld+json">{"headline":"` + title + `","author":{"name":"` + author + `"},"datePublished":"` + published + `"}</script>
</head><body><article><h1>` + title + `</h1><p>` + longBody + `</p></article></body></html>`
}

func newTestExtractor(t *testing.T, handler http.HandlerFunc) (*Extractor, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusOK)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p := pacer.New(pacer.Config{DefaultRPS: 1000, DefaultMaxConcurrent: 5, UserAgent: "test-agent"}, zerolog.Nop())
	return New("test-agent", p, zerolog.Nop()), srv
}

func TestExtractor_HappyPath(t *testing.T) {
	e, srv := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage("Inter wins derby in style", "Jane Reporter", "2026-07-01T10:00:00Z", "A thrilling derby recap")))
	})

	article, err := e.Extract(t.Context(), srv.URL+"/news/inter-derby", []string{"Inter", "Juventus"})
	require.NoError(t, err)
	assert.Equal(t, "Inter wins derby in style", article.Title)
	assert.Contains(t, article.Content, "Inzaghi")
	assert.Equal(t, []string{"Inter"}, article.Keywords)
	assert.NotNil(t, article.PublishedAt)
	assert.Greater(t, article.QualityScore, 0.5)
}

func TestExtractor_OffTopicRejected(t *testing.T) {
	e, srv := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(testPage("Inter wins derby in style", "Jane Reporter", "2026-07-01T10:00:00Z", "A thrilling derby recap")))
	})

	_, err := e.Extract(t.Context(), srv.URL+"/news/inter-derby", []string{"basketball"})
	require.Error(t, err)
	assert.ErrorIs(t, err, crawlerrors.ErrOffTopic)
}

func TestExtractor_LowQualityRejectedOnShortBody(t *testing.T) {
	e, srv := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Short article title</title></head><body><p>Too short.</p></body></html>`))
	})

	_, err := e.Extract(t.Context(), srv.URL+"/news/x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, crawlerrors.ErrLowQuality)
}

func TestExtractor_TransportErrorOnHTTPFailure(t *testing.T) {
	e, srv := newTestExtractor(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := e.Extract(t.Context(), srv.URL+"/news/x", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, crawlerrors.ErrTransport)
}

func TestMatchKeywords_CapsAtTen(t *testing.T) {
	keywords := make([]string, 0, 15)
	text := ""
	for i := 0; i < 15; i++ {
		kw := string(rune('a' + i))
		keywords = append(keywords, kw)
		text += kw + " "
	}
	matched := matchKeywords(text, keywords)
	assert.Len(t, matched, maxMatchedKeywords)
}

func TestScoreQuality_PenalizesShortContent(t *testing.T) {
	empty := &Article{}
	assert.Equal(t, 0.3, scoreQuality(empty, nil, nil))
}
