// Package types provides type definitions for structured data used throughout the shorts-autopilot system.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Platform identifies a social platform a video can be posted to.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// AllPlatforms lists every supported platform in fan-out order.
var AllPlatforms = []Platform{PlatformYouTube, PlatformInstagram, PlatformTikTok}

// ParsePlatform converts a string into a known Platform.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AllPlatforms {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// PostingSchedule describes when a niche should publish. Only the scheduler reads it.
type PostingSchedule struct {
	TimesPerDay    int      `json:"times_per_day" yaml:"times_per_day" validate:"gte=0,lte=24"`
	PreferredTimes []string `json:"preferred_times,omitempty" yaml:"preferred_times" validate:"dive,datetime=15:04"`
	Timezone       string   `json:"timezone,omitempty" yaml:"timezone"`
}

// Location resolves the schedule timezone, falling back to UTC.
func (s PostingSchedule) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// YouTubeCredentials holds an OAuth client plus a long-lived refresh token.
type YouTubeCredentials struct {
	ClientID      string `json:"client_id" yaml:"client_id" validate:"required"`
	ClientSecret  string `json:"client_secret" yaml:"client_secret" validate:"required"`
	RefreshToken  string `json:"refresh_token" yaml:"refresh_token" validate:"required"`
	PrivacyStatus string `json:"privacy_status,omitempty" yaml:"privacy_status" validate:"omitempty,oneof=public unlisted private"`
	CategoryID    string `json:"category_id,omitempty" yaml:"category_id"`
}

// InstagramCredentials holds a Graph API token for an Instagram business account.
type InstagramCredentials struct {
	AccessToken string `json:"access_token" yaml:"access_token" validate:"required"`
	AccountID   string `json:"account_id" yaml:"account_id" validate:"required"`
}

// TikTokCredentials holds a Content Posting API user token.
type TikTokCredentials struct {
	AccessToken string `json:"access_token" yaml:"access_token" validate:"required"`
	OpenID      string `json:"open_id,omitempty" yaml:"open_id"`
}

// PlatformCredentials is the per-platform credential bundle of a niche.
// A nil slot means the platform is disabled for that niche.
type PlatformCredentials struct {
	YouTube   *YouTubeCredentials   `json:"youtube,omitempty" yaml:"youtube"`
	Instagram *InstagramCredentials `json:"instagram,omitempty" yaml:"instagram"`
	TikTok    *TikTokCredentials    `json:"tiktok,omitempty" yaml:"tiktok"`
}

// Has reports whether credentials are present for the platform.
func (c PlatformCredentials) Has(p Platform) bool {
	switch p {
	case PlatformYouTube:
		return c.YouTube != nil
	case PlatformInstagram:
		return c.Instagram != nil
	case PlatformTikTok:
		return c.TikTok != nil
	}
	return false
}

// Enabled returns the platforms with credentials, in fan-out order.
func (c PlatformCredentials) Enabled() []Platform {
	var out []Platform
	for _, p := range AllPlatforms {
		if c.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// Redacted returns a copy safe for API responses: presence is kept, secrets are blanked.
func (c PlatformCredentials) Redacted() PlatformCredentials {
	var out PlatformCredentials
	if c.YouTube != nil {
		out.YouTube = &YouTubeCredentials{
			ClientID:      c.YouTube.ClientID,
			PrivacyStatus: c.YouTube.PrivacyStatus,
			CategoryID:    c.YouTube.CategoryID,
		}
	}
	if c.Instagram != nil {
		out.Instagram = &InstagramCredentials{AccountID: c.Instagram.AccountID}
	}
	if c.TikTok != nil {
		out.TikTok = &TikTokCredentials{OpenID: c.TikTok.OpenID}
	}
	return out
}

// ContentNiche is a configured content channel.
type ContentNiche struct {
	ID          string              `json:"id" yaml:"id" validate:"required,max=64"`
	Name        string              `json:"name" yaml:"name" validate:"required"`
	Keywords    []string            `json:"keywords" yaml:"keywords" validate:"dive,required"`
	Schedule    PostingSchedule     `json:"schedule" yaml:"schedule"`
	Credentials PlatformCredentials `json:"credentials" yaml:"credentials"`
	CreatedAt   time.Time           `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt   time.Time           `json:"updated_at,omitempty" yaml:"-"`
}

// Validate validates the niche and any present credential slots.
func (n *ContentNiche) Validate() error {
	validate := validator.New()
	return validate.Struct(n)
}

// Redacted returns a copy of the niche with credential secrets removed.
func (n ContentNiche) Redacted() ContentNiche {
	n.Credentials = n.Credentials.Redacted()
	return n
}
