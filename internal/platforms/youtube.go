package platforms

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/jonathan/shorts-autopilot/internal/types"
)

// YouTube defaults.
const (
	DefaultYouTubePrivacy  = "public"
	DefaultYouTubeCategory = "22"
)

// YouTubeConfig configures the YouTube poster.
type YouTubeConfig struct {
	// TokenURL overrides Google's OAuth token endpoint.
	TokenURL string
	// ServiceOptions are appended when building the API service, e.g. option.WithEndpoint.
	ServiceOptions []option.ClientOption
	// HTTPClient is the base transport used for token refresh and API calls.
	HTTPClient *http.Client
}

// YouTube uploads Shorts through the YouTube Data API v3.
type YouTube struct {
	cfg YouTubeConfig
}

var _ Poster = (*YouTube)(nil)

// NewYouTube returns a YouTube poster.
func NewYouTube(cfg YouTubeConfig) *YouTube {
	return &YouTube{cfg: cfg}
}

// Platform implements Poster.
func (y *YouTube) Platform() types.Platform {
	return types.PlatformYouTube
}

func (y *YouTube) service(ctx context.Context, creds *types.YouTubeCredentials) (*youtube.Service, error) {
	endpoint := google.Endpoint
	if y.cfg.TokenURL != "" {
		endpoint.TokenURL = y.cfg.TokenURL
	}
	conf := &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeReadonlyScope},
	}
	if y.cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, y.cfg.HTTPClient)
	}
	// An expired token forces a refresh on first use.
	token := &oauth2.Token{RefreshToken: creds.RefreshToken, Expiry: time.Now().Add(-time.Hour)}
	client := conf.Client(ctx, token)

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, y.cfg.ServiceOptions...)
	return youtube.NewService(ctx, opts...)
}

// Post uploads the asset bytes as a Short.
func (y *YouTube) Post(ctx context.Context, req types.PostRequest, creds types.PlatformCredentials) (*types.PostResult, error) {
	if creds.YouTube == nil {
		return nil, missingCredentials(types.PlatformYouTube, "upload")
	}
	if len(req.Asset) == 0 {
		return nil, &Error{Platform: types.PlatformYouTube, Op: "upload", Message: "asset bytes are required"}
	}

	svc, err := y.service(ctx, creds.YouTube)
	if err != nil {
		return nil, &Error{Platform: types.PlatformYouTube, Op: "auth", Message: "failed to build client", Cause: err}
	}

	privacy := creds.YouTube.PrivacyStatus
	if privacy == "" {
		privacy = DefaultYouTubePrivacy
	}
	category := creds.YouTube.CategoryID
	if category == "" {
		category = DefaultYouTubeCategory
	}

	titleSource := req.Title
	if titleSource == "" {
		titleSource = req.Caption
	}
	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       YouTubeTitle(titleSource),
			Description: Caption(req.Caption, append([]string{shortsTag}, req.Hashtags...), YouTubeDescriptionMaxRunes),
			Tags:        YouTubeTags(req.Hashtags),
			CategoryId:  category,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           privacy,
			SelfDeclaredMadeForKids: false,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}

	log.Printf("[youtube] Uploading video %s (%d bytes)", req.VideoID, len(req.Asset))
	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).
		Media(bytes.NewReader(req.Asset)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, youTubeError("upload", err)
	}

	return &types.PostResult{
		PostID:  uploaded.Id,
		PostURL: fmt.Sprintf("https://youtube.com/shorts/%s", uploaded.Id),
	}, nil
}

// Analytics reads the public statistics of an uploaded video. YouTube exposes no share count.
func (y *YouTube) Analytics(ctx context.Context, creds types.PlatformCredentials, postID string) (*types.PlatformMetrics, error) {
	if creds.YouTube == nil {
		return nil, missingCredentials(types.PlatformYouTube, "analytics")
	}

	svc, err := y.service(ctx, creds.YouTube)
	if err != nil {
		return nil, &Error{Platform: types.PlatformYouTube, Op: "auth", Message: "failed to build client", Cause: err}
	}

	resp, err := svc.Videos.List([]string{"statistics"}).Id(postID).Context(ctx).Do()
	if err != nil {
		return nil, youTubeError("analytics", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
		return nil, &Error{Platform: types.PlatformYouTube, Op: "analytics", StatusCode: http.StatusNotFound, Message: fmt.Sprintf("video %s not found", postID)}
	}

	stats := resp.Items[0].Statistics
	return &types.PlatformMetrics{
		Views:    int64(stats.ViewCount),
		Likes:    int64(stats.LikeCount),
		Comments: int64(stats.CommentCount),
	}, nil
}

func youTubeError(op string, err error) *Error {
	e := &Error{Platform: types.PlatformYouTube, Op: op, Cause: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		e.StatusCode = gerr.Code
		e.Message = gerr.Message
		e.Cause = nil
	}
	return e
}
