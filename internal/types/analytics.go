package types

import "time"

// PlatformMetrics are engagement counters reported by a platform.
type PlatformMetrics struct {
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	Shares   int64 `json:"shares"`
}

// EngagementRate returns (likes+comments+shares)/views as a percentage, or 0 with no views.
func (m PlatformMetrics) EngagementRate() float64 {
	if m.Views <= 0 {
		return 0
	}
	return float64(m.Likes+m.Comments+m.Shares) / float64(m.Views) * 100
}

// AnalyticsRecord is one persisted metrics sample for a post.
type AnalyticsRecord struct {
	ID             string    `json:"id,omitempty"`
	VideoID        string    `json:"video_id"`
	NicheID        string    `json:"niche_id"`
	Platform       Platform  `json:"platform"`
	PostID         string    `json:"post_id"`
	Views          int64     `json:"views"`
	Likes          int64     `json:"likes"`
	Comments       int64     `json:"comments"`
	Shares         int64     `json:"shares"`
	EngagementRate float64   `json:"engagement_rate"`
	CollectedAt    time.Time `json:"collected_at"`
}

// NewAnalyticsRecord builds a record from collected metrics.
func NewAnalyticsRecord(video *VideoRecord, post PlatformPost, m PlatformMetrics, at time.Time) AnalyticsRecord {
	return AnalyticsRecord{
		VideoID:        video.ID,
		NicheID:        video.NicheID,
		Platform:       post.Platform,
		PostID:         post.PostID,
		Views:          m.Views,
		Likes:          m.Likes,
		Comments:       m.Comments,
		Shares:         m.Shares,
		EngagementRate: m.EngagementRate(),
		CollectedAt:    at,
	}
}
