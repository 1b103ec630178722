package types

import (
	"fmt"
	"time"
)

// VideoStatus is the lifecycle state of a VideoRecord.
type VideoStatus string

const (
	VideoStatusGenerating VideoStatus = "generating"
	VideoStatusReady      VideoStatus = "ready"
	VideoStatusPosted     VideoStatus = "posted"
	VideoStatusFailed     VideoStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s VideoStatus) IsTerminal() bool {
	return s == VideoStatusPosted || s == VideoStatusFailed
}

// Valid reports whether s is a known video status.
func (s VideoStatus) Valid() bool {
	_, ok := videoStatusRank[s]
	return ok || s == VideoStatusFailed
}

var videoStatusRank = map[VideoStatus]int{
	VideoStatusGenerating: 0,
	VideoStatusReady:      1,
	VideoStatusPosted:     2,
}

// CanTransitionVideo reports whether a video may move from one status to another.
// Statuses only move forward; failed is reachable from any non-terminal state.
func CanTransitionVideo(from, to VideoStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if to == VideoStatusFailed {
		return true
	}
	fromRank, ok1 := videoStatusRank[from]
	toRank, ok2 := videoStatusRank[to]
	return ok1 && ok2 && toRank == fromRank+1
}

// PostStatus is the state of one platform posting attempt.
type PostStatus string

const (
	PostStatusPending PostStatus = "pending"
	PostStatusPosted  PostStatus = "posted"
	PostStatusFailed  PostStatus = "failed"
)

// PlatformPost records one posting attempt of a video to a platform.
type PlatformPost struct {
	Platform         Platform   `json:"platform"`
	PostID           string     `json:"post_id,omitempty"`
	PostURL          string     `json:"post_url,omitempty"`
	PostedAt         *time.Time `json:"posted_at,omitempty"`
	Status           PostStatus `json:"status"`
	Error            string     `json:"error,omitempty"`
	Views            *int64     `json:"views,omitempty"`
	Likes            *int64     `json:"likes,omitempty"`
	Comments         *int64     `json:"comments,omitempty"`
	Shares           *int64     `json:"shares,omitempty"`
	EngagementRate   *float64   `json:"engagement_rate,omitempty"`
	MetricsUpdatedAt *time.Time `json:"metrics_updated_at,omitempty"`
}

// ApplyMetrics copies collected metrics onto the post without touching its status.
func (p *PlatformPost) ApplyMetrics(m PlatformMetrics, at time.Time) {
	views, likes, comments, shares := m.Views, m.Likes, m.Comments, m.Shares
	rate := m.EngagementRate()
	p.Views = &views
	p.Likes = &likes
	p.Comments = &comments
	p.Shares = &shares
	p.EngagementRate = &rate
	p.MetricsUpdatedAt = &at
}

// VideoRecord is one generated asset and its posting history.
type VideoRecord struct {
	ID          string         `json:"id"`
	NicheID     string         `json:"niche_id"`
	JobID       string         `json:"job_id,omitempty"`
	Prompt      string         `json:"prompt"`
	Description string         `json:"description,omitempty"`
	Hashtags    []string       `json:"hashtags,omitempty"`
	VideoURL    string         `json:"video_url"`
	SourceURL   string         `json:"source_url,omitempty"`
	StoragePath string         `json:"storage_path"`
	Duration    float64        `json:"duration"`
	Status      VideoStatus    `json:"status"`
	Platforms   []PlatformPost `json:"platforms"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Post returns the most recent attempt for a platform, if any.
func (v *VideoRecord) Post(p Platform) (PlatformPost, bool) {
	for i := len(v.Platforms) - 1; i >= 0; i-- {
		if v.Platforms[i].Platform == p {
			return v.Platforms[i], true
		}
	}
	return PlatformPost{}, false
}

// VideoTransitionError is returned when a video status change would move backwards.
type VideoTransitionError struct {
	VideoID string
	From    VideoStatus
	To      VideoStatus
}

func (e *VideoTransitionError) Error() string {
	return fmt.Sprintf("video %s: invalid status transition %s -> %s", e.VideoID, e.From, e.To)
}
