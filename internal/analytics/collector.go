// Package analytics refreshes engagement metrics for recently posted videos.
package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/metrics"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

// DefaultWindow is how far back videos are considered for collection.
const DefaultWindow = 7 * 24 * time.Hour

// Source reads engagement metrics from one platform.
type Source interface {
	Platform() types.Platform
	Analytics(ctx context.Context, creds types.PlatformCredentials, postID string) (*types.PlatformMetrics, error)
}

// Store is the record store used by the collector.
type Store interface {
	ListNiches(ctx context.Context) ([]types.ContentNiche, error)
	ListPostedVideosSince(ctx context.Context, nicheID string, since time.Time) ([]types.VideoRecord, error)
	UpdatePostMetrics(ctx context.Context, videoID string, platform types.Platform, postID string, m types.PlatformMetrics, at time.Time) error
	SaveAnalytics(ctx context.Context, record *types.AnalyticsRecord) error
	CreateJob(ctx context.Context, job *types.WorkflowJob) error
	UpdateJob(ctx context.Context, job *types.WorkflowJob) error
}

// Options tunes the collector.
type Options struct {
	Window  time.Duration
	Metrics *metrics.Recorder
	Logger  *log.Logger
	Now     func() time.Time
}

// Summary counts what a collection touched. Failures are counted, never raised.
type Summary struct {
	Niches        int           `json:"niches"`
	NicheFailures int           `json:"niche_failures"`
	Videos        int           `json:"videos"`
	Posts         int           `json:"posts"`
	Updated       int           `json:"updated"`
	Failed        int           `json:"failed"`
	Skipped       int           `json:"skipped"`
	Duration      time.Duration `json:"duration"`
}

func (s *Summary) add(o Summary) {
	s.Niches += o.Niches
	s.NicheFailures += o.NicheFailures
	s.Videos += o.Videos
	s.Posts += o.Posts
	s.Updated += o.Updated
	s.Failed += o.Failed
	s.Skipped += o.Skipped
}

// Collector walks niches, videos and posts, one at a time.
type Collector struct {
	store   Store
	sources map[types.Platform]Source
	opts    Options
	logger  *log.Logger
	now     func() time.Time
}

// NewCollector builds a collector over the given platform sources.
func NewCollector(store Store, sources []Source, opts Options) *Collector {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	c := &Collector{
		store:   store,
		sources: make(map[types.Platform]Source, len(sources)),
		opts:    opts,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if c.logger == nil {
		c.logger = log.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	for _, s := range sources {
		if s != nil {
			c.sources[s.Platform()] = s
		}
	}
	return c
}

// CollectAll refreshes metrics for every niche. Only failing to list niches is an error.
func (c *Collector) CollectAll(ctx context.Context) (*Summary, error) {
	started := c.now()
	niches, err := c.store.ListNiches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list niches: %w", err)
	}

	total := &Summary{}
	for i := range niches {
		if ctx.Err() != nil {
			c.logger.Printf("[analytics] Collection interrupted: %v", ctx.Err())
			break
		}
		total.add(c.CollectNiche(ctx, &niches[i]))
	}
	total.Duration = c.now().Sub(started)
	c.opts.Metrics.ObserveCollection(total.Duration)
	c.logger.Printf("[analytics] Collection finished: %d niches, %d videos, %d updated, %d failed",
		total.Niches, total.Videos, total.Updated, total.Failed)
	return total, nil
}

// CollectNiche refreshes one niche under its own analytics job.
func (c *Collector) CollectNiche(ctx context.Context, niche *types.ContentNiche) Summary {
	sum := Summary{Niches: 1}

	job := types.NewJob(types.JobTypeAnalytics, niche.ID)
	tracked := true
	if err := c.store.CreateJob(ctx, job); err != nil {
		c.logger.Printf("[analytics] Warning: failed to create job for niche %s: %v", niche.ID, err)
		tracked = false
	}
	if tracked {
		if err := job.Start(c.now()); err != nil {
			c.logger.Printf("[analytics] Warning: %v", err)
		}
		c.saveJob(ctx, job)
	}

	videos, err := c.store.ListPostedVideosSince(ctx, niche.ID, c.now().Add(-c.opts.Window))
	if err != nil {
		c.logger.Printf("[analytics] Failed to list videos for niche %s: %v", niche.ID, err)
		sum.NicheFailures++
		if tracked {
			if ferr := job.Fail(fmt.Sprintf("failed to list videos: %v", err), c.now()); ferr != nil {
				c.logger.Printf("[analytics] Warning: %v", ferr)
			}
			c.saveJob(context.WithoutCancel(ctx), job)
		}
		return sum
	}

	for i := range videos {
		if ctx.Err() != nil {
			break
		}
		sum.Videos++
		c.collectVideo(ctx, niche, &videos[i], &sum)
	}

	if tracked {
		if err := job.Complete(c.now()); err != nil {
			c.logger.Printf("[analytics] Warning: %v", err)
		}
		c.saveJob(context.WithoutCancel(ctx), job)
	}
	return sum
}

// collectVideo processes a video's posts sequentially so there is one writer per record.
func (c *Collector) collectVideo(ctx context.Context, niche *types.ContentNiche, video *types.VideoRecord, sum *Summary) {
	for _, post := range video.Platforms {
		if post.Status != types.PostStatusPosted || post.PostID == "" {
			continue
		}
		sum.Posts++

		src, ok := c.sources[post.Platform]
		if !ok || !niche.Credentials.Has(post.Platform) {
			sum.Skipped++
			continue
		}

		if err := c.collectPost(ctx, niche, video, post, src); err != nil {
			sum.Failed++
			c.opts.Metrics.ObserveAnalytics(string(post.Platform), false)
			c.logger.Printf("[analytics] %s post %s of video %s: %v", post.Platform, post.PostID, video.ID, err)
			continue
		}
		sum.Updated++
		c.opts.Metrics.ObserveAnalytics(string(post.Platform), true)
	}
}

func (c *Collector) collectPost(ctx context.Context, niche *types.ContentNiche, video *types.VideoRecord, post types.PlatformPost, src Source) error {
	m, err := src.Analytics(ctx, niche.Credentials, post.PostID)
	if err != nil {
		return fmt.Errorf("fetch metrics: %w", err)
	}
	if m == nil {
		return fmt.Errorf("fetch metrics: empty response")
	}

	at := c.now()
	if err := c.store.UpdatePostMetrics(ctx, video.ID, post.Platform, post.PostID, *m, at); err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	record := types.NewAnalyticsRecord(video, post, *m, at)
	if err := c.store.SaveAnalytics(ctx, &record); err != nil {
		return fmt.Errorf("save analytics row: %w", err)
	}
	return nil
}

func (c *Collector) saveJob(ctx context.Context, job *types.WorkflowJob) {
	if err := c.store.UpdateJob(ctx, job); err != nil {
		c.logger.Printf("[analytics] Warning: failed to update job %s: %v", job.ID, err)
	}
}
