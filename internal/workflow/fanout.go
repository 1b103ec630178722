package workflow

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/shorts-autopilot/internal/types"
)

// PanicError wraps a panic recovered from a poster.
type PanicError struct {
	Platform types.Platform
	Value    any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s poster panicked: %v", e.Platform, e.Value)
}

// fanOut posts to every enabled platform that has a poster, concurrently, and waits for all
// branches. Branch failures never cancel siblings and never fail the run.
func (o *Orchestrator) fanOut(ctx context.Context, niche *types.ContentNiche, video *types.VideoRecord, asset []byte, brief *types.CreativeBrief) []PlatformResult {
	var targets []Poster
	for _, p := range niche.Credentials.Enabled() {
		poster, ok := o.posters[p]
		if !ok {
			o.logger.Printf("[workflow] Skipping %s for video %s: no poster registered", p, video.ID)
			continue
		}
		targets = append(targets, poster)
	}
	if len(targets) == 0 {
		return nil
	}

	req := types.PostRequest{
		VideoID:  video.ID,
		Asset:    asset,
		AssetURL: video.VideoURL,
		Title:    postTitle(brief),
		Caption:  brief.Description,
		Hashtags: brief.SuggestedHashtags,
	}

	results := make([]PlatformResult, len(targets))
	var g errgroup.Group
	for i, poster := range targets {
		g.Go(func() error {
			results[i] = o.postOne(ctx, poster, req, niche.Credentials)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) postOne(ctx context.Context, poster Poster, req types.PostRequest, creds types.PlatformCredentials) PlatformResult {
	platform := poster.Platform()
	result := PlatformResult{Platform: platform}

	posted, err := safePost(ctx, poster, req, creds)
	if err == nil && (posted == nil || posted.PostID == "") {
		err = fmt.Errorf("%s returned no post id", platform)
	}

	if err != nil {
		result.Err = err
		result.Post = types.PlatformPost{Platform: platform, Status: types.PostStatusFailed, Error: err.Error()}
		o.logger.Printf("[workflow] Posting video %s to %s failed: %v", req.VideoID, platform, err)
	} else {
		now := o.now()
		result.Post = types.PlatformPost{
			Platform: platform,
			PostID:   posted.PostID,
			PostURL:  posted.PostURL,
			PostedAt: &now,
			Status:   types.PostStatusPosted,
		}
		o.logger.Printf("[workflow] Posted video %s to %s as %s", req.VideoID, platform, posted.PostID)
	}
	o.opts.Metrics.ObservePost(string(platform), err == nil)

	if appendErr := o.deps.Store.AppendPlatformPost(ctx, req.VideoID, result.Post); appendErr != nil {
		result.AppendErr = appendErr
		o.logger.Printf("[workflow] Warning: failed to record %s outcome for video %s: %v", platform, req.VideoID, appendErr)
	}
	return result
}

func safePost(ctx context.Context, poster Poster, req types.PostRequest, creds types.PlatformCredentials) (result *types.PostResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, &PanicError{Platform: poster.Platform(), Value: r}
		}
	}()
	return poster.Post(ctx, req, creds)
}

// postTitle prefers the first line of the description and falls back to the prompt.
func postTitle(brief *types.CreativeBrief) string {
	for _, text := range []string{brief.Description, brief.Prompt} {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if i := strings.IndexAny(text, "\r\n"); i >= 0 {
			text = text[:i]
		}
		return text
	}
	return ""
}
