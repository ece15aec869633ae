package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cwygoda/feedgrab/internal/domain"
)

// redirectChain serves /hop/N redirecting to /hop/N-1 until /hop/0 returns
// the payload.
func redirectChain(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /hop/{n}", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		n, err := strconv.Atoi(r.PathValue("n"))
		if err != nil {
			http.Error(w, "bad hop", http.StatusBadRequest)
			return
		}
		if n == 0 {
			w.Write([]byte("payload"))
			return
		}
		// Relative location, resolved against the current URL.
		http.Redirect(w, r, fmt.Sprintf("/hop/%d", n-1), http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRedirectingFetcher_Fetch_RedirectBudget(t *testing.T) {
	tests := []struct {
		name      string
		redirects int
		wantErr   error
		wantHits  int32
	}{
		{name: "direct", redirects: 0, wantHits: 1},
		{name: "one redirect", redirects: 1, wantHits: 2},
		{name: "exactly three redirects", redirects: 3, wantHits: 4},
		{name: "four redirects exceed budget", redirects: 4, wantErr: domain.ErrRetryLimitExceeded, wantHits: 4},
		{name: "long chain stops at budget", redirects: 10, wantErr: domain.ErrRetryLimitExceeded, wantHits: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			srv := redirectChain(t, &hits)
			f := NewRedirectingFetcher(srv.Client(), DefaultMaxRedirects, zaptest.NewLogger(t))

			data, err := f.Fetch(context.Background(), fmt.Sprintf("%s/hop/%d", srv.URL, tt.redirects))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, data)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "payload", string(data))
			}
			assert.Equal(t, tt.wantHits, hits.Load(), "budget is shared across the chain")
		})
	}
}

func TestRedirectingFetcher_Fetch_ZeroBudget(t *testing.T) {
	var hits atomic.Int32
	srv := redirectChain(t, &hits)
	f := NewRedirectingFetcher(srv.Client(), 0, zaptest.NewLogger(t))

	_, err := f.Fetch(context.Background(), srv.URL+"/hop/1")
	require.ErrorIs(t, err, domain.ErrRetryLimitExceeded)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRedirectingFetcher_Fetch_Errors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("GET /noloc", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("GET /broken", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/missing", http.StatusMovedPermanently)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewRedirectingFetcher(srv.Client(), DefaultMaxRedirects, zaptest.NewLogger(t))

	for _, path := range []string{"/missing", "/noloc", "/broken"} {
		t.Run(path, func(t *testing.T) {
			_, err := f.Fetch(context.Background(), srv.URL+path)
			require.ErrorIs(t, err, domain.ErrTransport)
			assert.NotErrorIs(t, err, domain.ErrRetryLimitExceeded)

			var te *domain.TransportError
			require.ErrorAs(t, err, &te)
			assert.NotZero(t, te.StatusCode)
		})
	}
}

func TestRedirectingFetcher_Fetch_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewRedirectingFetcher(nil, DefaultMaxRedirects, zaptest.NewLogger(t))
	_, err := f.Fetch(context.Background(), url+"/a.mp4")
	require.ErrorIs(t, err, domain.ErrTransport)
}

func TestNewRedirectingFetcher_DoesNotMutateClient(t *testing.T) {
	hc := &http.Client{}
	NewRedirectingFetcher(hc, 3, zaptest.NewLogger(t))
	assert.Nil(t, hc.CheckRedirect)
}

func TestRedirectingFetcher_Fetch_SlowBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := range 6 {
			fmt.Fprintf(w, "chunk%d;", i)
			flusher.Flush()
			time.Sleep(100 * time.Millisecond)
		}
	}))
	t.Cleanup(srv.Close)

	// The body takes about 600ms in total, well past the header timeout.
	f := NewRedirectingFetcher(NewDownloadClient(300*time.Millisecond), DefaultMaxRedirects, zaptest.NewLogger(t))
	data, err := f.Fetch(context.Background(), srv.URL+"/long.mp4")
	require.NoError(t, err)
	assert.Equal(t, "chunk0;chunk1;chunk2;chunk3;chunk4;chunk5;", string(data))
}

func TestRedirectingFetcher_Fetch_HeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	f := NewRedirectingFetcher(NewDownloadClient(100*time.Millisecond), DefaultMaxRedirects, zaptest.NewLogger(t))
	_, err := f.Fetch(context.Background(), srv.URL+"/stalled.mp4")
	require.ErrorIs(t, err, domain.ErrTransport)
}

func TestNewDownloadClient_NoOverallTimeout(t *testing.T) {
	hc := NewDownloadClient(0)
	assert.Zero(t, hc.Timeout)
	tr, ok := hc.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, DefaultResponseHeaderTimeout, tr.ResponseHeaderTimeout)
}
