// Package topics gathers trending topics for a niche from several sources and merges them.
package topics

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/jonathan/shorts-autopilot/internal/types"
)

// Source is one trending-topic provider. Errors are returned to the aggregator, which logs them.
type Source interface {
	Name() string
	Fetch(ctx context.Context, keywords []string, limit int) ([]types.TrendingTopic, error)
}

// Aggregator merges several sources into one ranked, keyword-filtered list.
type Aggregator struct {
	sources []Source
	logger  *log.Logger
	now     func() time.Time
}

// NewAggregator returns an aggregator over the given sources, queried in order.
func NewAggregator(logger *log.Logger, sources ...Source) *Aggregator {
	if logger == nil {
		logger = log.Default()
	}
	return &Aggregator{sources: sources, logger: logger, now: time.Now}
}

// Fetch returns up to limit topics relevant to keywords. It never fails: a source that
// errors is logged and skipped, and an empty result is valid.
func (a *Aggregator) Fetch(ctx context.Context, keywords []string, limit int) []types.TrendingTopic {
	var merged []types.TrendingTopic
	for _, src := range a.sources {
		if ctx.Err() != nil {
			break
		}
		found, err := src.Fetch(ctx, keywords, limit)
		if err != nil {
			a.logger.Printf("[topics] %s failed: %v", src.Name(), err)
			continue
		}
		normalizeScores(found)
		for i := range found {
			if found[i].Source == "" {
				found[i].Source = src.Name()
			}
			if found[i].FetchedAt.IsZero() {
				found[i].FetchedAt = a.now()
			}
		}
		merged = append(merged, found...)
	}
	return Rank(merged, keywords, limit)
}

// Rank keeps topics matching any keyword, drops duplicate titles, sorts by score and truncates.
// With no keywords every topic matches. A limit of zero or less means no limit.
func Rank(topics []types.TrendingTopic, keywords []string, limit int) []types.TrendingTopic {
	byTitle := make(map[string]int)
	var out []types.TrendingTopic

	for _, t := range topics {
		matched, ok := matchKeywords(t, keywords)
		if !ok {
			continue
		}
		t.RelatedKeywords = mergeKeywords(t.RelatedKeywords, matched)

		key := normalizeTitle(t.Topic)
		if key == "" {
			continue
		}
		if idx, seen := byTitle[key]; seen {
			if t.Score > out[idx].Score {
				out[idx] = t
			}
			continue
		}
		byTitle[key] = len(out)
		out = append(out, t)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func matchKeywords(t types.TrendingTopic, keywords []string) ([]string, bool) {
	if len(keywords) == 0 {
		return nil, true
	}
	haystack := " " + tokenize(t.Topic+" "+strings.Join(t.RelatedKeywords, " ")) + " "
	var matched []string
	for _, kw := range keywords {
		needle := tokenize(kw)
		if needle != "" && strings.Contains(haystack, " "+needle+" ") {
			matched = append(matched, needle)
		}
	}
	return matched, len(matched) > 0
}

// tokenize lower-cases text and collapses every run of non-alphanumerics into one space,
// so keywords match whole words only.
func tokenize(text string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

func mergeKeywords(existing, extra []string) []string {
	seen := make(map[string]bool, len(existing)+len(extra))
	out := make([]string, 0, len(existing)+len(extra))
	for _, k := range append(append([]string{}, existing...), extra...) {
		lk := strings.ToLower(k)
		if lk == "" || seen[lk] {
			continue
		}
		seen[lk] = true
		out = append(out, k)
	}
	return out
}

func normalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// normalizeScores rescales one source's scores to 0..100 so sources are comparable.
func normalizeScores(topics []types.TrendingTopic) {
	maxScore := 0.0
	for _, t := range topics {
		if t.Score > maxScore {
			maxScore = t.Score
		}
	}
	if maxScore <= 0 {
		return
	}
	for i := range topics {
		topics[i].Score = topics[i].Score / maxScore * 100
	}
}

// rankScore gives the item at 1-based position rank out of n a descending score.
func rankScore(rank, n int) float64 {
	if n <= 0 || rank <= 0 {
		return 0
	}
	return float64(n-rank+1) / float64(n) * 100
}
