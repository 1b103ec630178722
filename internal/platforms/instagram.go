package platforms

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/poll"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

// Instagram defaults.
const (
	DefaultGraphBaseURL           = "https://graph.facebook.com/v21.0"
	DefaultInstagramPollInterval  = 10 * time.Second
	DefaultInstagramPollAttempts  = 30
	instagramContainerFinished    = "FINISHED"
	instagramContainerError       = "ERROR"
	instagramContainerExpired     = "EXPIRED"
	instagramInsightsMetricFields = "views,likes,comments,shares"
)

// InstagramConfig configures the Instagram poster.
type InstagramConfig struct {
	BaseURL      string
	PollInterval time.Duration
	MaxAttempts  int
	HTTPClient   *http.Client
}

// Instagram publishes Reels through the Instagram Graph API. The platform pulls the
// video from PostRequest.AssetURL, so the asset must be publicly reachable.
type Instagram struct {
	cfg    InstagramConfig
	client jsonClient
}

var _ Poster = (*Instagram)(nil)

// NewInstagram returns an Instagram poster.
func NewInstagram(cfg InstagramConfig) *Instagram {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGraphBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultInstagramPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultInstagramPollAttempts
	}
	return &Instagram{cfg: cfg, client: newJSONClient(types.PlatformInstagram, cfg.HTTPClient)}
}

// Platform implements Poster.
func (i *Instagram) Platform() types.Platform {
	return types.PlatformInstagram
}

type graphID struct {
	ID string `json:"id"`
}

type containerStatus struct {
	ID         string `json:"id"`
	StatusCode string `json:"status_code"`
	Status     string `json:"status"`
}

// Post creates a REELS container, waits for it to finish processing and publishes it.
func (i *Instagram) Post(ctx context.Context, req types.PostRequest, creds types.PlatformCredentials) (*types.PostResult, error) {
	ig := creds.Instagram
	if ig == nil {
		return nil, missingCredentials(types.PlatformInstagram, "publish")
	}
	if req.AssetURL == "" {
		return nil, &Error{Platform: types.PlatformInstagram, Op: "publish", Message: "public asset URL is required"}
	}

	var container graphID
	err := i.client.do(ctx, "create container", http.MethodPost,
		fmt.Sprintf("%s/%s/media", i.cfg.BaseURL, url.PathEscape(ig.AccountID)), nil,
		formBody{
			"media_type":    {"REELS"},
			"video_url":     {req.AssetURL},
			"caption":       {Caption(req.Caption, req.Hashtags, InstagramCaptionMaxRunes)},
			"share_to_feed": {"true"},
			"access_token":  {ig.AccessToken},
		}, &container)
	if err != nil {
		return nil, err
	}
	if container.ID == "" {
		return nil, &Error{Platform: types.PlatformInstagram, Op: "create container", Message: "response had no container id"}
	}
	log.Printf("[instagram] Created container %s for video %s", container.ID, req.VideoID)

	_, err = poll.Until(ctx,
		poll.Options{
			Operation:   "instagram container " + container.ID,
			Interval:    i.cfg.PollInterval,
			MaxAttempts: i.cfg.MaxAttempts,
		},
		func(ctx context.Context) (*containerStatus, error) {
			var st containerStatus
			q := url.Values{"fields": {"status_code,status"}, "access_token": {ig.AccessToken}}
			err := i.client.do(ctx, "container status", http.MethodGet,
				fmt.Sprintf("%s/%s?%s", i.cfg.BaseURL, url.PathEscape(container.ID), q.Encode()), nil, nil, &st)
			return &st, err
		},
		func(st *containerStatus) (poll.State, string) {
			switch st.StatusCode {
			case instagramContainerFinished:
				return poll.Succeeded, ""
			case instagramContainerError, instagramContainerExpired:
				reason := st.Status
				if reason == "" {
					reason = st.StatusCode
				}
				return poll.Failed, reason
			default:
				return poll.Pending, ""
			}
		},
	)
	if err != nil {
		return nil, &Error{Platform: types.PlatformInstagram, Op: "process container", Cause: err}
	}

	var media graphID
	err = i.client.do(ctx, "publish", http.MethodPost,
		fmt.Sprintf("%s/%s/media_publish", i.cfg.BaseURL, url.PathEscape(ig.AccountID)), nil,
		formBody{"creation_id": {container.ID}, "access_token": {ig.AccessToken}}, &media)
	if err != nil {
		return nil, err
	}
	if media.ID == "" {
		return nil, &Error{Platform: types.PlatformInstagram, Op: "publish", Message: "response had no media id"}
	}

	return &types.PostResult{PostID: media.ID, PostURL: i.permalink(ctx, ig.AccessToken, media.ID)}, nil
}

// permalink is best-effort: a published reel without a URL is still published.
func (i *Instagram) permalink(ctx context.Context, token, mediaID string) string {
	var out struct {
		Permalink string `json:"permalink"`
	}
	q := url.Values{"fields": {"permalink"}, "access_token": {token}}
	err := i.client.do(ctx, "permalink", http.MethodGet,
		fmt.Sprintf("%s/%s?%s", i.cfg.BaseURL, url.PathEscape(mediaID), q.Encode()), nil, nil, &out)
	if err != nil {
		log.Printf("[instagram] Permalink lookup for %s failed: %v", mediaID, err)
		return ""
	}
	return out.Permalink
}

type insightValue struct {
	Value int64 `json:"value"`
}

type insightsResponse struct {
	Data []struct {
		Name       string         `json:"name"`
		Values     []insightValue `json:"values"`
		TotalValue *insightValue  `json:"total_value"`
	} `json:"data"`
}

// Analytics reads reel insights.
func (i *Instagram) Analytics(ctx context.Context, creds types.PlatformCredentials, postID string) (*types.PlatformMetrics, error) {
	ig := creds.Instagram
	if ig == nil {
		return nil, missingCredentials(types.PlatformInstagram, "analytics")
	}

	var resp insightsResponse
	q := url.Values{"metric": {instagramInsightsMetricFields}, "access_token": {ig.AccessToken}}
	err := i.client.do(ctx, "analytics", http.MethodGet,
		fmt.Sprintf("%s/%s/insights?%s", i.cfg.BaseURL, url.PathEscape(postID), q.Encode()), nil, nil, &resp)
	if err != nil {
		return nil, err
	}

	var m types.PlatformMetrics
	for _, d := range resp.Data {
		var v int64
		switch {
		case d.TotalValue != nil:
			v = d.TotalValue.Value
		case len(d.Values) > 0:
			v = d.Values[0].Value
		}
		switch d.Name {
		case "views", "plays":
			m.Views = v
		case "likes":
			m.Likes = v
		case "comments":
			m.Comments = v
		case "shares":
			m.Shares = v
		}
	}
	return &m, nil
}
