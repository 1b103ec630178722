package topics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonathan/shorts-autopilot/internal/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

const listingJSON = `{"data": {"children": [
	{"data": {"id": "1", "title": "Pinned rules", "score": 10, "stickied": true, "subreddit": "golang", "permalink": "/r/golang/1"}},
	{"data": {"id": "2", "title": "Go 1.26 is out", "score": 900, "num_comments": 50, "subreddit": "golang", "permalink": "/r/golang/2"}},
	{"data": {"id": "3", "title": "Low effort post", "score": 2, "subreddit": "golang", "permalink": "/r/golang/3"}}
]}}`

func TestRedditSource_PublicListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/golang/hot.json", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte(listingJSON))
	}))
	defer server.Close()

	src := NewRedditSource(context.Background(), RedditConfig{Subreddits: []string{"golang"}, MinScore: 10, BaseURL: server.URL})
	topics, err := src.Fetch(context.Background(), nil, 5)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "Go 1.26 is out", topics[0].Topic)
	assert.Equal(t, 1000.0, topics[0].Score)
	assert.Equal(t, "https://www.reddit.com/r/golang/2", topics[0].URL)
	assert.Equal(t, []string{"golang"}, topics[0].RelatedKeywords)
}

func TestRedditSource_OAuth(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "id", user)
		assert.Equal(t, "secret", pass)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token": "app-token", "token_type": "bearer", "expires_in": 3600}`))
	})
	mux.HandleFunc("/r/golang/hot", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer app-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(listingJSON))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	src := NewRedditSource(context.Background(), RedditConfig{
		Subreddits:   []string{"golang"},
		ClientID:     "id",
		ClientSecret: "secret",
		BaseURL:      server.URL,
		TokenURL:     server.URL + "/token",
	})
	topics, err := src.Fetch(context.Background(), nil, 25)
	require.NoError(t, err)
	assert.Len(t, topics, 2)
}

func TestRedditSource_AllSubredditsFail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	src := NewRedditSource(context.Background(), RedditConfig{Subreddits: []string{"a", "b"}, BaseURL: server.URL})
	_, err := src.Fetch(context.Background(), nil, 5)
	assert.ErrorContains(t, err, "429")
}

func TestSearchSource_Fetch(t *testing.T) {
	var queries []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		queries = append(queries, q.Get("q"))
		assert.Equal(t, "engine", q.Get("cx"))
		assert.Equal(t, "d1", q.Get("dateRestrict"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]string{
				{"title": "Top " + q.Get("q") + " story", "link": "https://a.example/1"},
				{"title": "Second " + q.Get("q") + " story", "link": "https://a.example/2"},
			},
		})
	}))
	defer server.Close()

	src, err := NewSearchSource(context.Background(), "key", "engine", option.WithEndpoint(server.URL+"/"))
	require.NoError(t, err)

	topics, err := src.Fetch(context.Background(), []string{"ai", " ", "robots", "space", "ocean"}, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"ai", "robots", "space"}, queries)
	require.Len(t, topics, 6)
	assert.Equal(t, 100.0, topics[0].Score)
	assert.Equal(t, 50.0, topics[1].Score)
	assert.Equal(t, []string{"ai"}, topics[0].RelatedKeywords)
}

func TestNewSearchSource_RequiresCredentials(t *testing.T) {
	_, err := NewSearchSource(context.Background(), "", "cx")
	assert.Error(t, err)
}

func TestHeadlinesSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/down") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`<h2><a href="/1">Scientists discover new deep sea fish</a></h2>
			<h2><a href="/2">Why octopuses are so smart</a></h2>
			<h2><a href="/3">The ocean is getting louder</a></h2>`))
	}))
	defer server.Close()

	src := NewHeadlinesSource(fetch.NewCachedFetcher(nil), server.URL+"/news", server.URL+"/down")
	topics, err := src.Fetch(context.Background(), nil, 0)
	require.NoError(t, err)
	require.Len(t, topics, 3)
	assert.Equal(t, "headlines:unknown", topics[0].Source)
	assert.Equal(t, server.URL+"/1", topics[0].URL)
	assert.Greater(t, topics[0].Score, topics[2].Score)

	onlyDown := NewHeadlinesSource(nil, server.URL+"/down")
	_, err = onlyDown.Fetch(context.Background(), nil, 0)
	assert.Error(t, err)
}
