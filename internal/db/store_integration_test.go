//go:build integration
// +build integration

package db

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/shorts-autopilot/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := Connect(ctx, dbURL)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to DB: %v", err)
	}
	_, err = db.Migrate(ctx)
	require.NoError(t, err)
	return db
}

func createTestNiche(t *testing.T, db *DB) *types.ContentNiche {
	niche := &types.ContentNiche{
		ID:       "test-" + uuid.NewString()[:8],
		Name:     "Tech Tutorials",
		Keywords: []string{"golang"},
		Schedule: types.PostingSchedule{TimesPerDay: 1, PreferredTimes: []string{"09:00"}},
		Credentials: types.PlatformCredentials{
			TikTok: &types.TikTokCredentials{AccessToken: "tok"},
		},
	}
	require.NoError(t, db.UpsertNiche(context.Background(), niche))
	t.Cleanup(func() { _ = db.DeleteNiche(context.Background(), niche.ID) })
	return niche
}

func TestNicheRoundTrip_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	niche := createTestNiche(t, db)

	got, err := db.GetNiche(ctx, niche.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, niche.Name, got.Name)
	assert.Equal(t, []types.Platform{types.PlatformTikTok}, got.Credentials.Enabled())
	assert.Equal(t, []string{"09:00"}, got.Schedule.PreferredTimes)

	missing, err := db.GetNiche(ctx, "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestJobLifecycle_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	niche := createTestNiche(t, db)

	job := types.NewJob(types.JobTypeGenerate, niche.ID)
	require.NoError(t, db.CreateJob(ctx, job))
	require.NotEmpty(t, job.ID)

	started := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, job.Start(started))
	require.NoError(t, db.UpdateJob(ctx, job))

	require.NoError(t, job.Fail("video generation failed", started.Add(time.Second)))
	require.NoError(t, db.UpdateJob(ctx, job))

	got, err := db.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, types.JobStatusFailed, got.Status)
	assert.Equal(t, "video generation failed", got.Error)
	require.NotNil(t, got.StartedAt)
	assert.WithinDuration(t, started, *got.StartedAt, time.Millisecond)
	assert.NotNil(t, got.CompletedAt)

	jobs, err := db.ListJobs(ctx, types.JobFilters{NicheID: niche.ID, Status: types.JobStatusFailed})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)

	none, err := db.GetJob(ctx, "not-a-uuid")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestVideoPostsAndMetrics_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	niche := createTestNiche(t, db)

	video := &types.VideoRecord{
		ID:          uuid.NewString(),
		NicheID:     niche.ID,
		Prompt:      "a cat explaining goroutines",
		VideoURL:    "http://assets/x.mp4",
		StoragePath: "videos/x.mp4",
		Duration:    8,
		Status:      types.VideoStatusReady,
	}
	require.NoError(t, db.CreateVideo(ctx, video))

	var wg sync.WaitGroup
	for _, p := range types.AllPlatforms {
		wg.Add(1)
		go func(p types.Platform) {
			defer wg.Done()
			assert.NoError(t, db.AppendPlatformPost(ctx, video.ID, types.PlatformPost{
				Platform: p, Status: types.PostStatusPosted, PostID: string(p) + "-1",
			}))
		}(p)
	}
	wg.Wait()

	require.NoError(t, db.UpdateVideoStatus(ctx, video.ID, types.VideoStatusPosted))
	err := db.UpdateVideoStatus(ctx, video.ID, types.VideoStatusReady)
	var te *types.VideoTransitionError
	assert.ErrorAs(t, err, &te)

	require.NoError(t, db.UpdatePostMetrics(ctx, video.ID, types.PlatformTikTok, "tiktok-1",
		types.PlatformMetrics{Views: 100, Likes: 10, Comments: 5, Shares: 5}, time.Now()))

	got, err := db.GetVideo(ctx, video.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VideoStatusPosted, got.Status)
	assert.Len(t, got.Platforms, 3)
	post, ok := got.Post(types.PlatformTikTok)
	require.True(t, ok)
	assert.Equal(t, types.PostStatusPosted, post.Status)
	require.NotNil(t, post.EngagementRate)
	assert.InDelta(t, 20.0, *post.EngagementRate, 1e-9)

	prompts, err := db.RecentPrompts(ctx, niche.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"a cat explaining goroutines"}, prompts)

	posted, err := db.ListPostedVideosSince(ctx, niche.ID, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, posted, 1)
}

func TestTrendingTopicsAndAnalytics_Integration(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()
	niche := createTestNiche(t, db)

	now := time.Now().UTC()
	require.NoError(t, db.SaveTrendingTopics(ctx, niche.ID, "", []types.TrendingTopic{
		{Topic: "Go 1.26 released", Score: 900, Source: "reddit", FetchedAt: now},
	}))
	topics, err := db.ListTrendingTopics(ctx, niche.ID, 10)
	require.NoError(t, err)
	require.Len(t, topics, 1)
	assert.Equal(t, "reddit", topics[0].Source)

	video := &types.VideoRecord{ID: uuid.NewString(), NicheID: niche.ID, Prompt: "p", VideoURL: "u", StoragePath: "s", Status: types.VideoStatusReady}
	require.NoError(t, db.CreateVideo(ctx, video))

	rec := types.AnalyticsRecord{VideoID: video.ID, NicheID: niche.ID, Platform: types.PlatformYouTube, PostID: "yt", Views: 10, CollectedAt: now}
	require.NoError(t, db.SaveAnalytics(ctx, &rec))
	assert.NotEmpty(t, rec.ID)

	records, err := db.ListAnalytics(ctx, video.ID, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
