package topics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/types"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// maxSearchQueries caps how many keyword queries one fetch issues.
const maxSearchQueries = 3

// SearchSource finds recent pages for a niche's keywords through Google Custom Search.
type SearchSource struct {
	svc *customsearch.Service
	cx  string
	// DateRestrict limits results by age, e.g. "d1" for the past day.
	DateRestrict string
}

// NewSearchSource creates a source backed by the Custom Search JSON API.
// Extra client options are appended after the API key (tests pass option.WithEndpoint).
func NewSearchSource(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*SearchSource, error) {
	if apiKey == "" || cx == "" {
		return nil, fmt.Errorf("search API key and engine ID are required")
	}
	svc, err := customsearch.NewService(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &SearchSource{svc: svc, cx: cx, DateRestrict: "d1"}, nil
}

// Name identifies the source in logs and stored topics.
func (s *SearchSource) Name() string { return "google-search" }

// Fetch runs one query per keyword (capped) and scores results by rank.
func (s *SearchSource) Fetch(ctx context.Context, keywords []string, limit int) ([]types.TrendingTopic, error) {
	queries := searchQueries(keywords)
	if len(queries) == 0 {
		return nil, nil
	}
	num := int64(limit)
	if num <= 0 || num > 10 {
		num = 10
	}

	var topics []types.TrendingTopic
	var lastErr error
	for _, q := range queries {
		call := s.svc.Cse.List().Cx(s.cx).Q(q).Num(num).Context(ctx)
		if s.DateRestrict != "" {
			call = call.DateRestrict(s.DateRestrict)
		}
		resp, err := call.Do()
		if err != nil {
			lastErr = err
			continue
		}
		for i, item := range resp.Items {
			title := strings.TrimSpace(item.Title)
			if title == "" {
				continue
			}
			topics = append(topics, types.TrendingTopic{
				Topic:           title,
				Score:           rankScore(i+1, len(resp.Items)),
				Source:          "google-search",
				RelatedKeywords: []string{q},
				URL:             item.Link,
				FetchedAt:       time.Now(),
			})
		}
	}
	if len(topics) == 0 && lastErr != nil {
		return nil, fmt.Errorf("custom search failed: %w", lastErr)
	}
	return topics, nil
}

func searchQueries(keywords []string) []string {
	var out []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		out = append(out, kw)
		if len(out) == maxSearchQueries {
			break
		}
	}
	return out
}
