// Package videogen submits prompts to a prediction-style text-to-video API and waits for the result.
package videogen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/poll"
	"github.com/jonathan/shorts-autopilot/internal/schemas"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

// Defaults for the prediction API client.
const (
	DefaultBaseURL          = "https://api.replicate.com"
	DefaultPollInterval     = 5 * time.Second
	DefaultMaxAttempts      = 120
	DefaultAspectRatio      = "9:16"
	DefaultDuration         = 8
	DefaultMaxDownloadBytes = 200 << 20
)

// Prediction statuses reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Config configures the client.
type Config struct {
	BaseURL          string
	Token            string
	Model            string
	AspectRatio      string
	Duration         float64
	PollInterval     time.Duration
	MaxAttempts      int
	MaxDownloadBytes int64
	HTTPClient       *http.Client
}

// Error describes a failed API call.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("video generation %s", e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Client talks to the prediction API.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient validates the config and fills defaults.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("video API token is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("video model is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.AspectRatio == "" {
		cfg.AspectRatio = DefaultAspectRatio
	}
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.MaxDownloadBytes <= 0 {
		cfg.MaxDownloadBytes = DefaultMaxDownloadBytes
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{cfg: cfg, http: client}, nil
}

// Prediction is the API's view of one generation.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

// OutputURL returns the first URL in the output, which may be a string or a list of strings.
func (p *Prediction) OutputURL() string {
	if len(p.Output) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(p.Output, &single); err == nil {
		return single
	}
	var many []string
	if err := json.Unmarshal(p.Output, &many); err == nil && len(many) > 0 {
		return many[0]
	}
	return ""
}

func (p *Prediction) errorText() string {
	if p.Error == nil {
		return ""
	}
	if s, ok := p.Error.(string); ok {
		return s
	}
	b, _ := json.Marshal(p.Error)
	return string(b)
}

// Generate submits the prompt and blocks until the video is ready, failed, or polling gives up.
func (c *Client) Generate(ctx context.Context, req types.VideoRequest) (*types.GeneratedVideo, error) {
	duration := req.Duration
	if duration <= 0 {
		duration = c.cfg.Duration
	}

	pred, err := c.create(ctx, req.Prompt, duration)
	if err != nil {
		return nil, err
	}

	final, err := poll.Until(ctx,
		poll.Options{
			Operation:   "video prediction " + pred.ID,
			Interval:    c.cfg.PollInterval,
			MaxAttempts: c.cfg.MaxAttempts,
		},
		func(ctx context.Context) (*Prediction, error) { return c.get(ctx, pred.ID) },
		classify,
	)
	if err != nil {
		return nil, err
	}

	videoURL := final.OutputURL()
	if videoURL == "" {
		return nil, &Error{Op: "result", Message: fmt.Sprintf("prediction %s succeeded without output", final.ID)}
	}
	return &types.GeneratedVideo{VideoURL: videoURL, Duration: duration}, nil
}

func classify(p *Prediction) (poll.State, string) {
	switch p.Status {
	case StatusSucceeded:
		return poll.Succeeded, ""
	case StatusFailed, StatusCanceled:
		reason := p.errorText()
		if reason == "" {
			reason = p.Status
		}
		return poll.Failed, reason
	default:
		return poll.Pending, ""
	}
}

func (c *Client) create(ctx context.Context, prompt string, duration float64) (*Prediction, error) {
	body, err := json.Marshal(map[string]any{
		"input": map[string]any{
			"prompt":       prompt,
			"aspect_ratio": c.cfg.AspectRatio,
			"duration":     duration,
		},
	})
	if err != nil {
		return nil, &Error{Op: "create", Message: "failed to encode request", Cause: err}
	}

	url := fmt.Sprintf("%s/v1/models/%s/predictions", c.cfg.BaseURL, c.cfg.Model)
	return c.do(ctx, "create", http.MethodPost, url, body)
}

func (c *Client) get(ctx context.Context, id string) (*Prediction, error) {
	url := fmt.Sprintf("%s/v1/predictions/%s", c.cfg.BaseURL, id)
	return c.do(ctx, "poll", http.MethodGet, url, nil)
}

func (c *Client) do(ctx context.Context, op, method, url string, body []byte) (*Prediction, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &Error{Op: op, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "failed to read response", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}

	if err := schemas.Validate(schemas.VideoPrediction, data); err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "unexpected response shape", Cause: err}
	}

	var pred Prediction
	if err := json.Unmarshal(data, &pred); err != nil {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return &pred, nil
}

// Download fetches a generated asset into memory, refusing anything larger than MaxDownloadBytes.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Op: "download", Message: "failed to create request", Cause: err}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{Op: "download", Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Op: "download", StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxDownloadBytes+1))
	if err != nil {
		return nil, &Error{Op: "download", Message: "failed to read body", Cause: err}
	}
	if int64(len(data)) > c.cfg.MaxDownloadBytes {
		return nil, &Error{Op: "download", Message: fmt.Sprintf("asset exceeds %d bytes", c.cfg.MaxDownloadBytes)}
	}
	if len(data) == 0 {
		return nil, &Error{Op: "download", Message: "empty asset"}
	}
	return data, nil
}
