package topics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/fetch"
	"github.com/jonathan/shorts-autopilot/internal/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	redditPublicBase = "https://www.reddit.com"
	redditOAuthBase  = "https://oauth.reddit.com"
	redditTokenURL   = "https://www.reddit.com/api/v1/access_token"
)

// RedditConfig configures the Reddit hot-listing source.
type RedditConfig struct {
	Subreddits []string
	// ClientID and ClientSecret enable app-only OAuth; without them the public JSON listing is used.
	ClientID     string
	ClientSecret string
	UserAgent    string
	MinScore     int
	// BaseURL and TokenURL override the endpoints in tests.
	BaseURL  string
	TokenURL string
}

// RedditSource reads hot posts from a fixed set of subreddits.
type RedditSource struct {
	cfg     RedditConfig
	client  *http.Client
	baseURL string
}

// NewRedditSource builds the source, wiring an OAuth client-credentials transport when configured.
func NewRedditSource(ctx context.Context, cfg RedditConfig) *RedditSource {
	if cfg.UserAgent == "" {
		cfg.UserAgent = fetch.DefaultUserAgent
	}
	baseURL := cfg.BaseURL
	client := &http.Client{Timeout: fetch.DefaultTimeout}

	if cfg.ClientID != "" && cfg.ClientSecret != "" {
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = redditTokenURL
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		client = cc.Client(context.WithValue(ctx, oauth2.HTTPClient, client))
		if baseURL == "" {
			baseURL = redditOAuthBase
		}
	}
	if baseURL == "" {
		baseURL = redditPublicBase
	}

	return &RedditSource{cfg: cfg, client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// Name identifies the source in logs and stored topics.
func (s *RedditSource) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Stickied    bool    `json:"stickied"`
	Over18      bool    `json:"over_18"`
	CreatedUTC  float64 `json:"created_utc"`
}

// Fetch returns hot posts across all configured subreddits. A subreddit that fails is skipped
// unless every subreddit fails.
func (s *RedditSource) Fetch(ctx context.Context, _ []string, limit int) ([]types.TrendingTopic, error) {
	if len(s.cfg.Subreddits) == 0 {
		return nil, nil
	}
	perSub := limit
	if perSub <= 0 || perSub > 100 {
		perSub = 25
	}

	var topics []types.TrendingTopic
	var lastErr error
	failures := 0
	for _, sub := range s.cfg.Subreddits {
		posts, err := s.hot(ctx, sub, perSub)
		if err != nil {
			failures++
			lastErr = err
			continue
		}
		for _, p := range posts {
			if p.Stickied || p.Over18 || p.Score < s.cfg.MinScore {
				continue
			}
			topics = append(topics, types.TrendingTopic{
				Topic:           strings.TrimSpace(p.Title),
				Score:           float64(p.Score + 2*p.NumComments),
				Source:          "reddit",
				RelatedKeywords: []string{p.Subreddit},
				URL:             redditPublicBase + p.Permalink,
				FetchedAt:       time.Now(),
			})
		}
	}
	if failures == len(s.cfg.Subreddits) {
		return nil, lastErr
	}
	return topics, nil
}

func (s *RedditSource) hot(ctx context.Context, subreddit string, limit int) ([]redditPost, error) {
	path := "/r/" + url.PathEscape(subreddit) + "/hot"
	if s.baseURL == redditPublicBase || s.cfg.ClientID == "" {
		path += ".json"
	}
	reqURL := fmt.Sprintf("%s%s?limit=%d&raw_json=1", s.baseURL, path, limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reddit r/%s: %w", subreddit, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit r/%s: HTTP status %d", subreddit, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("reddit r/%s: failed to decode listing: %w", subreddit, err)
	}

	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, c := range listing.Data.Children {
		posts = append(posts, c.Data)
	}
	return posts, nil
}
