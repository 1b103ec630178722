package platforms

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/poll"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

// TikTok defaults and privacy levels.
const (
	DefaultTikTokBaseURL       = "https://open.tiktokapis.com"
	DefaultTikTokPollInterval  = 5 * time.Second
	DefaultTikTokPollAttempts  = 60
	TikTokPrivacyPublic        = "PUBLIC_TO_EVERYONE"
	TikTokPrivacyFriends       = "MUTUAL_FOLLOW_FRIENDS"
	TikTokPrivacyFollowers     = "FOLLOWER_OF_CREATOR"
	TikTokPrivacySelfOnly      = "SELF_ONLY"
	tiktokStatusComplete       = "PUBLISH_COMPLETE"
	tiktokStatusFailed         = "FAILED"
	tiktokErrorOK              = "ok"
	tiktokVideoQueryFields     = "id,view_count,like_count,comment_count,share_count"
	tiktokDefaultPrivacyTarget = TikTokPrivacyPublic
)

// TikTokPolicy controls post visibility. Apps that have not passed TikTok's audit
// may only post privately, so an unaudited policy always resolves to SELF_ONLY.
type TikTokPolicy struct {
	PrivacyLevel string
	Audited      bool
}

// EffectivePrivacy returns the privacy level that will be requested.
func (p TikTokPolicy) EffectivePrivacy() string {
	if !p.Audited {
		return TikTokPrivacySelfOnly
	}
	if p.PrivacyLevel == "" {
		return tiktokDefaultPrivacyTarget
	}
	return p.PrivacyLevel
}

// TikTokConfig configures the TikTok poster.
type TikTokConfig struct {
	BaseURL      string
	Policy       TikTokPolicy
	PollInterval time.Duration
	MaxAttempts  int
	HTTPClient   *http.Client
}

// TikTok publishes through the Content Posting API using PULL_FROM_URL, so the asset
// URL's domain must be verified with TikTok.
type TikTok struct {
	cfg    TikTokConfig
	client jsonClient
}

var _ Poster = (*TikTok)(nil)

// NewTikTok returns a TikTok poster.
func NewTikTok(cfg TikTokConfig) *TikTok {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultTikTokBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultTikTokPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultTikTokPollAttempts
	}
	return &TikTok{cfg: cfg, client: newJSONClient(types.PlatformTikTok, cfg.HTTPClient)}
}

// Platform implements Poster.
func (t *TikTok) Platform() types.Platform {
	return types.PlatformTikTok
}

// tiktokError is the error envelope present on every TikTok response, including successes.
type tiktokError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

func (e tiktokError) check(op string) error {
	if e.Code == "" || e.Code == tiktokErrorOK {
		return nil
	}
	msg := e.Code
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return &Error{Platform: types.PlatformTikTok, Op: op, Message: msg}
}

type creatorInfo struct {
	Data struct {
		CreatorUsername      string   `json:"creator_username"`
		PrivacyLevelOptions  []string `json:"privacy_level_options"`
		MaxVideoPostDuration int      `json:"max_video_post_duration_sec"`
	} `json:"data"`
	Error tiktokError `json:"error"`
}

type publishInit struct {
	Data struct {
		PublishID string `json:"publish_id"`
	} `json:"data"`
	Error tiktokError `json:"error"`
}

type publishStatus struct {
	Data struct {
		Status     string `json:"status"`
		FailReason string `json:"fail_reason"`
		// The misspelling is TikTok's.
		PublicPostIDs []int64 `json:"publicaly_available_post_id"`
	} `json:"data"`
	Error tiktokError `json:"error"`
}

func (t *TikTok) headers(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// Post checks the creator's allowed privacy options, starts a pull-from-URL upload and
// waits for TikTok to report the publish complete.
func (t *TikTok) Post(ctx context.Context, req types.PostRequest, creds types.PlatformCredentials) (*types.PostResult, error) {
	tk := creds.TikTok
	if tk == nil {
		return nil, missingCredentials(types.PlatformTikTok, "publish")
	}
	if req.AssetURL == "" {
		return nil, &Error{Platform: types.PlatformTikTok, Op: "publish", Message: "public asset URL is required"}
	}
	headers := t.headers(tk.AccessToken)

	var info creatorInfo
	if err := t.client.do(ctx, "creator info", http.MethodPost,
		t.cfg.BaseURL+"/v2/post/publish/creator_info/query/", headers, map[string]any{}, &info); err != nil {
		return nil, err
	}
	if err := info.Error.check("creator info"); err != nil {
		return nil, err
	}

	privacy := t.cfg.Policy.EffectivePrivacy()
	if !slices.Contains(info.Data.PrivacyLevelOptions, privacy) {
		return nil, &Error{
			Platform: types.PlatformTikTok,
			Op:       "creator info",
			Message:  fmt.Sprintf("privacy level %s not allowed for creator (allowed: %s)", privacy, strings.Join(info.Data.PrivacyLevelOptions, ", ")),
		}
	}

	var started publishInit
	body := map[string]any{
		"post_info": map[string]any{
			"title":           Caption(req.Caption, req.Hashtags, TikTokTitleMaxRunes),
			"privacy_level":   privacy,
			"disable_duet":    false,
			"disable_comment": false,
			"disable_stitch":  false,
		},
		"source_info": map[string]any{
			"source":    "PULL_FROM_URL",
			"video_url": req.AssetURL,
		},
	}
	if err := t.client.do(ctx, "init publish", http.MethodPost,
		t.cfg.BaseURL+"/v2/post/publish/video/init/", headers, body, &started); err != nil {
		return nil, err
	}
	if err := started.Error.check("init publish"); err != nil {
		return nil, err
	}
	publishID := started.Data.PublishID
	if publishID == "" {
		return nil, &Error{Platform: types.PlatformTikTok, Op: "init publish", Message: "response had no publish_id"}
	}
	log.Printf("[tiktok] Started publish %s for video %s (privacy %s)", publishID, req.VideoID, privacy)

	final, err := poll.Until(ctx,
		poll.Options{
			Operation:   "tiktok publish " + publishID,
			Interval:    t.cfg.PollInterval,
			MaxAttempts: t.cfg.MaxAttempts,
		},
		func(ctx context.Context) (*publishStatus, error) {
			var st publishStatus
			if err := t.client.do(ctx, "publish status", http.MethodPost,
				t.cfg.BaseURL+"/v2/post/publish/status/fetch/", headers,
				map[string]string{"publish_id": publishID}, &st); err != nil {
				return nil, err
			}
			return &st, st.Error.check("publish status")
		},
		func(st *publishStatus) (poll.State, string) {
			switch st.Data.Status {
			case tiktokStatusComplete:
				return poll.Succeeded, ""
			case tiktokStatusFailed:
				return poll.Failed, st.Data.FailReason
			default:
				return poll.Pending, ""
			}
		},
	)
	if err != nil {
		return nil, &Error{Platform: types.PlatformTikTok, Op: "process publish", Cause: err}
	}

	// Private posts never get a public id; the publish id is the only handle.
	if len(final.Data.PublicPostIDs) == 0 {
		return &types.PostResult{PostID: publishID}, nil
	}
	postID := strconv.FormatInt(final.Data.PublicPostIDs[0], 10)
	result := &types.PostResult{PostID: postID}
	if info.Data.CreatorUsername != "" {
		result.PostURL = fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", info.Data.CreatorUsername, postID)
	}
	return result, nil
}

type videoQuery struct {
	Data struct {
		Videos []struct {
			ID           string `json:"id"`
			ViewCount    int64  `json:"view_count"`
			LikeCount    int64  `json:"like_count"`
			CommentCount int64  `json:"comment_count"`
			ShareCount   int64  `json:"share_count"`
		} `json:"videos"`
	} `json:"data"`
	Error tiktokError `json:"error"`
}

// Analytics queries counters for a public post id.
func (t *TikTok) Analytics(ctx context.Context, creds types.PlatformCredentials, postID string) (*types.PlatformMetrics, error) {
	tk := creds.TikTok
	if tk == nil {
		return nil, missingCredentials(types.PlatformTikTok, "analytics")
	}

	var resp videoQuery
	body := map[string]any{"filters": map[string]any{"video_ids": []string{postID}}}
	if err := t.client.do(ctx, "analytics", http.MethodPost,
		t.cfg.BaseURL+"/v2/video/query/?fields="+tiktokVideoQueryFields, t.headers(tk.AccessToken), body, &resp); err != nil {
		return nil, err
	}
	if err := resp.Error.check("analytics"); err != nil {
		return nil, err
	}
	for _, v := range resp.Data.Videos {
		if v.ID == postID {
			return &types.PlatformMetrics{
				Views:    v.ViewCount,
				Likes:    v.LikeCount,
				Comments: v.CommentCount,
				Shares:   v.ShareCount,
			}, nil
		}
	}
	return nil, &Error{Platform: types.PlatformTikTok, Op: "analytics", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("video %s not found", postID)}
}
