// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config represents the autopilot configuration that can be loaded from a JSON file.
// All fields are optional; missing values come from the environment, then from defaults.
type Config struct {
	// Storage
	DatabaseURL   string `json:"database_url,omitempty"`   // PostgreSQL connection URL
	StorageDir    string `json:"storage_dir,omitempty"`    // Directory for generated videos
	PublicBaseURL string `json:"public_base_url,omitempty" validate:"omitempty,url"` // Base URL the assets are served under
	NichesFile    string `json:"niches_file,omitempty"`    // YAML niche catalogue

	// Providers
	GeminiAPIKey   string  `json:"gemini_api_key,omitempty"`
	GeminiModel    string  `json:"gemini_model,omitempty"` // Overrides the standard-tier model
	VideoAPIToken  string  `json:"video_api_token,omitempty"`
	VideoAPIURL    string  `json:"video_api_url,omitempty" validate:"omitempty,url"`
	VideoModel     string  `json:"video_model,omitempty"`
	VideoDuration  float64 `json:"video_duration,omitempty" validate:"gte=0,lte=60"` // Seconds
	AspectRatio    string  `json:"aspect_ratio,omitempty"`
	SearchAPIKey   string  `json:"search_api_key,omitempty"`
	SearchEngineID string  `json:"search_engine_id,omitempty"`

	// Topic sources
	Subreddits         []string `json:"subreddits,omitempty"`
	RedditClientID     string   `json:"reddit_client_id,omitempty"`
	RedditClientSecret string   `json:"reddit_client_secret,omitempty"`
	HeadlinePages      []string `json:"headline_pages,omitempty" validate:"dive,url"`
	UseBrowser         bool     `json:"use_browser,omitempty"` // Render JS-heavy headline pages with Chrome

	// Workflow
	TopicLimit    int    `json:"topic_limit,omitempty" validate:"gte=0"`
	PromptHistory int    `json:"prompt_history,omitempty" validate:"gte=0"`
	NichePause    string `json:"niche_pause,omitempty"`    // Go duration, e.g. "30s"
	ScheduleTick  string `json:"schedule_tick,omitempty"`  // Go duration
	CollectEvery  string `json:"collect_every,omitempty"`  // Go duration
	AnalyticsDays int    `json:"analytics_days,omitempty" validate:"gte=0"`

	// TikTok posting policy
	TikTokPrivacyLevel string `json:"tiktok_privacy_level,omitempty" validate:"omitempty,oneof=PUBLIC_TO_EVERYONE MUTUAL_FOLLOW_FRIENDS FOLLOWER_OF_CREATOR SELF_ONLY"`
	TikTokAudited      bool   `json:"tiktok_audited,omitempty"`

	// Server
	Port    int  `json:"port,omitempty" validate:"gte=0,lte=65535"`
	Verbose bool `json:"verbose,omitempty"` // Print detailed debug information
}

// Defaults used by MergeWithDefaults.
const (
	DefaultStorageDir    = "./data/videos"
	DefaultPublicBaseURL = "http://localhost:8080/assets"
	DefaultNichesFile    = "niches.yaml"
	DefaultVideoModel    = "google/veo-3-fast"
	DefaultPort          = 8080
	DefaultAnalyticsDays = 7
)

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv builds a Config from environment variables. It is used as the defaults layer
// beneath a config file.
func FromEnv() Config {
	return Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		StorageDir:         os.Getenv("STORAGE_DIR"),
		PublicBaseURL:      os.Getenv("PUBLIC_BASE_URL"),
		NichesFile:         os.Getenv("NICHES_FILE"),
		GeminiAPIKey:       os.Getenv("GEMINI_API_KEY"),
		GeminiModel:        os.Getenv("GEMINI_MODEL"),
		VideoAPIToken:      os.Getenv("VIDEO_API_TOKEN"),
		VideoAPIURL:        os.Getenv("VIDEO_API_URL"),
		VideoModel:         os.Getenv("VIDEO_MODEL"),
		SearchAPIKey:       os.Getenv("GOOGLE_SEARCH_API_KEY"),
		SearchEngineID:     os.Getenv("GOOGLE_SEARCH_CX"),
		RedditClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		RedditClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		TikTokPrivacyLevel: os.Getenv("TIKTOK_PRIVACY_LEVEL"),
		TikTokAudited:      envBool("TIKTOK_AUDITED"),
		Port:               envInt("PORT"),
	}
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}

func envInt(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

// Validate checks that the configuration has valid values.
// Required fields are checked per command, since serve, collect and migrate need different ones.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	for name, value := range map[string]string{
		"niche_pause":   c.NichePause,
		"schedule_tick": c.ScheduleTick,
		"collect_every": c.CollectEvery,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("config error: '%s' is not a valid duration: %w", name, err)
		}
	}

	return nil
}

// Require returns an error naming the first empty field among the given ones.
func (c *Config) Require(fields ...string) error {
	values := map[string]string{
		"database_url":    c.DatabaseURL,
		"gemini_api_key":  c.GeminiAPIKey,
		"video_api_token": c.VideoAPIToken,
		"storage_dir":     c.StorageDir,
		"public_base_url": c.PublicBaseURL,
		"niches_file":     c.NichesFile,
	}
	for _, f := range fields {
		if values[f] == "" {
			return fmt.Errorf("config error: '%s' is required", f)
		}
	}
	return nil
}

// Duration parses one of the duration fields, returning fallback when it is empty or invalid.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

// AnalyticsWindow returns the trailing collection window.
func (c *Config) AnalyticsWindow() time.Duration {
	days := c.AnalyticsDays
	if days <= 0 {
		days = DefaultAnalyticsDays
	}
	return time.Duration(days) * 24 * time.Hour
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// This is used to layer a config file over the environment, then over built-in values.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	mergeString(&result.DatabaseURL, defaults.DatabaseURL)
	mergeString(&result.StorageDir, defaults.StorageDir, DefaultStorageDir)
	mergeString(&result.PublicBaseURL, defaults.PublicBaseURL, DefaultPublicBaseURL)
	mergeString(&result.NichesFile, defaults.NichesFile, DefaultNichesFile)
	mergeString(&result.GeminiAPIKey, defaults.GeminiAPIKey)
	mergeString(&result.GeminiModel, defaults.GeminiModel)
	mergeString(&result.VideoAPIToken, defaults.VideoAPIToken)
	mergeString(&result.VideoAPIURL, defaults.VideoAPIURL)
	mergeString(&result.VideoModel, defaults.VideoModel, DefaultVideoModel)
	mergeString(&result.AspectRatio, defaults.AspectRatio)
	mergeString(&result.SearchAPIKey, defaults.SearchAPIKey)
	mergeString(&result.SearchEngineID, defaults.SearchEngineID)
	mergeString(&result.RedditClientID, defaults.RedditClientID)
	mergeString(&result.RedditClientSecret, defaults.RedditClientSecret)
	mergeString(&result.NichePause, defaults.NichePause)
	mergeString(&result.ScheduleTick, defaults.ScheduleTick)
	mergeString(&result.CollectEvery, defaults.CollectEvery)
	mergeString(&result.TikTokPrivacyLevel, defaults.TikTokPrivacyLevel)

	if len(result.Subreddits) == 0 {
		result.Subreddits = defaults.Subreddits
	}
	if len(result.HeadlinePages) == 0 {
		result.HeadlinePages = defaults.HeadlinePages
	}

	// Int fields: use default if zero
	if result.VideoDuration == 0 {
		result.VideoDuration = defaults.VideoDuration
	}
	if result.TopicLimit == 0 {
		result.TopicLimit = defaults.TopicLimit
	}
	if result.PromptHistory == 0 {
		result.PromptHistory = defaults.PromptHistory
	}
	if result.AnalyticsDays == 0 {
		result.AnalyticsDays = defaults.AnalyticsDays
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.Port == 0 {
		result.Port = DefaultPort
	}

	// Bools can only be switched on by a lower layer
	result.TikTokAudited = result.TikTokAudited || defaults.TikTokAudited
	result.UseBrowser = result.UseBrowser || defaults.UseBrowser

	return result
}

func mergeString(dst *string, candidates ...string) {
	for _, c := range candidates {
		if *dst != "" {
			return
		}
		*dst = c
	}
}
