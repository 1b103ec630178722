package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHeadlineServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(hits, 1)
		_, _ = w.Write([]byte(`<h2><a href="/1">Headline number one</a></h2>
			<h2><a href="/2">Headline number two</a></h2>
			<h2><a href="/3">Headline number three</a></h2>`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCachedFetcher_ServesFromCache(t *testing.T) {
	var hits int32
	server := newHeadlineServer(t, &hits)

	f := NewCachedFetcher(nil)
	first, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Len(t, first.Headlines, 3)

	second, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCachedFetcher_ExpiresAfterTTL(t *testing.T) {
	var hits int32
	server := newHeadlineServer(t, &hits)

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewCachedFetcher(&CachedFetcherConfig{CacheTTL: time.Minute})
	f.now = func() time.Time { return now }

	_, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	result, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.False(t, result.FromCache)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCachedFetcher_Invalidate(t *testing.T) {
	var hits int32
	server := newHeadlineServer(t, &hits)

	f := NewCachedFetcher(nil)
	_, _ = f.Fetch(context.Background(), server.URL)
	f.InvalidateCache(server.URL)
	_, _ = f.Fetch(context.Background(), server.URL)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestCachedFetcher_ErrorsAreNotCached(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	f := NewCachedFetcher(nil)
	_, err := f.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
	_, err = f.Fetch(context.Background(), server.URL)
	assert.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}
