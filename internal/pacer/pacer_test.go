package pacer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPacer(t *testing.T, robotsBody string) (*Pacer, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.Write([]byte(robotsBody))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	p := New(Config{DefaultRPS: 50, DefaultMaxConcurrent: 2, UserAgent: "test-agent"}, zerolog.Nop())
	return p, srv
}

func TestPacer_RobotsDisallowBlocksAdmission(t *testing.T) {
	p, srv := newTestPacer(t, "User-agent: *\nDisallow: /blocked/\n")

	_, err := p.Acquire(context.Background(), srv.URL+"/blocked/page")
	assert.Error(t, err)

	grant, err := p.Acquire(context.Background(), srv.URL+"/ok/page")
	require.NoError(t, err)
	grant.Release(true, http.StatusOK, 0)
}

func TestPacer_BackOffGrowsAfterFailure(t *testing.T) {
	p, srv := newTestPacer(t, "")

	grant, err := p.Acquire(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	grant.Release(false, http.StatusInternalServerError, 0)

	host := srv.Listener.Addr().String()
	st := p.Stats(host)
	assert.Equal(t, 1, st.Attempts)
	assert.Equal(t, 0, st.Successes)
	assert.Equal(t, "40ms", st.MinDelay) // 50 rps gives 20ms, doubled by the failure
}

func TestPacer_ConcurrencyCapSerializesExcessRequests(t *testing.T) {
	p, srv := newTestPacer(t, "")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	g1, err := p.Acquire(ctx, srv.URL+"/a")
	require.NoError(t, err)
	g2, err := p.Acquire(ctx, srv.URL+"/b")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		g3, err := p.Acquire(ctx, srv.URL+"/c")
		if err == nil {
			g3.Release(true, http.StatusOK, 0)
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("third acquire should have blocked on the concurrency cap")
	case <-time.After(50 * time.Millisecond):
	}

	g1.Release(true, http.StatusOK, 0)
	g2.Release(true, http.StatusOK, 0)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("third acquire never unblocked")
	}
}

func TestPacer_SetHostOverrideLowersConcurrencyCapBelowDefault(t *testing.T) {
	p, srv := newTestPacer(t, "")
	host, err := HostOf(srv.URL)
	require.NoError(t, err)
	p.SetHostOverride(host, 50, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	g1, err := p.Acquire(ctx, srv.URL+"/a")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		g2, err := p.Acquire(ctx, srv.URL+"/b")
		if err == nil {
			g2.Release(true, http.StatusOK, 0)
		}
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should have blocked: override caps concurrency at 1")
	case <-time.After(50 * time.Millisecond):
	}

	g1.Release(true, http.StatusOK, 0)

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire never unblocked")
	}
}

func TestPacer_SetHostOverrideDoesNotResizeAnAlreadyCreatedHostState(t *testing.T) {
	p, srv := newTestPacer(t, "")
	host, err := HostOf(srv.URL)
	require.NoError(t, err)

	grant, err := p.Acquire(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	grant.Release(true, http.StatusOK, 0)

	p.SetHostOverride(host, 1, 1)

	st := p.hosts[host]
	require.NotNil(t, st)
	assert.Equal(t, 2, cap(st.sem), "override after first Acquire must not resize the existing semaphore")
}
