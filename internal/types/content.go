package types

import "time"

// TrendingTopic is a candidate topic fetched from an external source.
type TrendingTopic struct {
	Topic           string    `json:"topic"`
	Score           float64   `json:"score"`
	Source          string    `json:"source"`
	RelatedKeywords []string  `json:"related_keywords,omitempty"`
	URL             string    `json:"url,omitempty"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// ContentStyle is the tone bucket inferred from a niche name.
type ContentStyle string

const (
	StyleEducational   ContentStyle = "educational"
	StyleMotivational  ContentStyle = "motivational"
	StyleNews          ContentStyle = "news"
	StyleEntertainment ContentStyle = "entertainment"
)

// Engagement is the model's coarse engagement estimate for a brief.
type Engagement string

const (
	EngagementLow    Engagement = "low"
	EngagementMedium Engagement = "medium"
	EngagementHigh   Engagement = "high"
)

// BriefRequest is the input to the prompt generator.
type BriefRequest struct {
	NicheName       string          `json:"niche_name"`
	Keywords        []string        `json:"keywords"`
	Topics          []TrendingTopic `json:"topics,omitempty"`
	PreviousPrompts []string        `json:"previous_prompts,omitempty"`
	Style           ContentStyle    `json:"style"`
}

// CreativeBrief is the structured output of the prompt generator.
type CreativeBrief struct {
	Prompt              string     `json:"prompt"`
	Description         string     `json:"description"`
	SuggestedHashtags   []string   `json:"suggested_hashtags"`
	EstimatedEngagement Engagement `json:"estimated_engagement"`
}

// VideoRequest is the input to the video generator.
type VideoRequest struct {
	Prompt   string  `json:"prompt"`
	NicheID  string  `json:"niche_id"`
	Duration float64 `json:"duration,omitempty"`
}

// GeneratedVideo is a finished synthesis result.
type GeneratedVideo struct {
	VideoURL string  `json:"video_url"`
	Duration float64 `json:"duration"`
}

// StoredAsset is a durable reference to an uploaded video file.
type StoredAsset struct {
	PublicURL   string `json:"public_url"`
	StoragePath string `json:"storage_path"`
	Size        int64  `json:"size"`
}

// PostRequest is what a platform poster receives.
type PostRequest struct {
	VideoID  string   `json:"video_id"`
	Asset    []byte   `json:"-"`
	AssetURL string   `json:"asset_url"`
	Title    string   `json:"title"`
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags,omitempty"`
}

// PostResult is the platform's acknowledgement of a published video.
type PostResult struct {
	PostID  string `json:"post_id"`
	PostURL string `json:"post_url,omitempty"`
}
