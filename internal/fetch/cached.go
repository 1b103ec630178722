// Package fetch - cached.go memoizes headline pages so niches run back to back share one fetch.
package fetch

import (
	"context"
	"sync"
	"time"
)

// DefaultCacheTTL is how long fetched headlines stay fresh.
const DefaultCacheTTL = 15 * time.Minute

// CachedFetcher wraps headline fetching with an in-process TTL cache.
type CachedFetcher struct {
	options  *Options
	renderer Renderer
	cacheTTL time.Duration
	now      func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	headlines []Headline
	fetchedAt time.Time
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL time.Duration
	Options  *Options
	// Renderer is optional; when nil pages are never rendered in a browser.
	Renderer Renderer
}

// NewCachedFetcher creates a new cached fetcher.
func NewCachedFetcher(config *CachedFetcherConfig) *CachedFetcher {
	if config == nil {
		config = &CachedFetcherConfig{}
	}
	if config.Options == nil {
		config.Options = DefaultOptions()
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	return &CachedFetcher{
		options:  config.Options,
		renderer: config.Renderer,
		cacheTTL: config.CacheTTL,
		now:      time.Now,
		entries:  make(map[string]cacheEntry),
	}
}

// CachedResult carries headlines plus cache metadata.
type CachedResult struct {
	Headlines []Headline
	FromCache bool
	FetchedAt time.Time
}

// Fetch returns the page's headlines, from cache when still fresh.
// Failed fetches are not cached.
func (f *CachedFetcher) Fetch(ctx context.Context, pageURL string) (*CachedResult, error) {
	now := f.now()

	f.mu.Lock()
	entry, ok := f.entries[pageURL]
	f.mu.Unlock()
	if ok && now.Sub(entry.fetchedAt) < f.cacheTTL {
		return &CachedResult{Headlines: entry.headlines, FromCache: true, FetchedAt: entry.fetchedAt}, nil
	}

	profile := ProfileFor(pageURL)
	var renderer Renderer
	if profile.AllowBrowser {
		renderer = f.renderer
	}
	headlines, err := Headlines(ctx, pageURL, profile.Selectors, f.options, renderer)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.entries[pageURL] = cacheEntry{headlines: headlines, fetchedAt: now}
	f.mu.Unlock()

	return &CachedResult{Headlines: headlines, FetchedAt: now}, nil
}

// InvalidateCache drops a cached page, forcing a re-fetch on next request.
func (f *CachedFetcher) InvalidateCache(pageURL string) {
	f.mu.Lock()
	delete(f.entries, pageURL)
	f.mu.Unlock()
}
