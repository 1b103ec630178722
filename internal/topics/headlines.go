package topics

import (
	"context"
	"fmt"

	"github.com/jonathan/shorts-autopilot/internal/fetch"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

// HeadlinesSource scrapes article titles from a list of news pages.
type HeadlinesSource struct {
	pages   []string
	fetcher *fetch.CachedFetcher
}

// NewHeadlinesSource returns a source over the given page URLs using a shared cached fetcher.
func NewHeadlinesSource(fetcher *fetch.CachedFetcher, pages ...string) *HeadlinesSource {
	if fetcher == nil {
		fetcher = fetch.NewCachedFetcher(nil)
	}
	return &HeadlinesSource{pages: pages, fetcher: fetcher}
}

// Name identifies the source in logs and stored topics.
func (s *HeadlinesSource) Name() string { return "headlines" }

// Fetch returns every headline across the pages, scored by position on its page.
func (s *HeadlinesSource) Fetch(ctx context.Context, _ []string, _ int) ([]types.TrendingTopic, error) {
	var topics []types.TrendingTopic
	var lastErr error
	failures := 0

	for _, page := range s.pages {
		result, err := s.fetcher.Fetch(ctx, page)
		if err != nil {
			failures++
			lastErr = err
			continue
		}
		site := string(fetch.DetectSite(page))
		for _, h := range result.Headlines {
			topics = append(topics, types.TrendingTopic{
				Topic:     h.Title,
				Score:     rankScore(h.Rank, len(result.Headlines)),
				Source:    "headlines:" + site,
				URL:       h.URL,
				FetchedAt: result.FetchedAt,
			})
		}
	}

	if len(s.pages) > 0 && failures == len(s.pages) {
		return nil, fmt.Errorf("all %d headline pages failed: %w", failures, lastErr)
	}
	return topics, nil
}
