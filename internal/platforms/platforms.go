// Package platforms publishes videos to social platforms and reads back their engagement metrics.
package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/types"
)

// Poster publishes to one platform. Implementations must be safe for concurrent use.
type Poster interface {
	Platform() types.Platform
	Post(ctx context.Context, req types.PostRequest, creds types.PlatformCredentials) (*types.PostResult, error)
	Analytics(ctx context.Context, creds types.PlatformCredentials, postID string) (*types.PlatformMetrics, error)
}

// Error describes a failed platform call.
type Error struct {
	Platform   types.Platform
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Platform, e.Op)
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

// missingCredentials is returned when a poster is asked to act for a niche without its slot.
func missingCredentials(p types.Platform, op string) *Error {
	return &Error{Platform: p, Op: op, Message: "no credentials configured"}
}

// Registry indexes posters by platform.
type Registry map[types.Platform]Poster

// NewRegistry builds a registry. A later poster for the same platform replaces an earlier one.
func NewRegistry(posters ...Poster) Registry {
	r := make(Registry, len(posters))
	for _, p := range posters {
		if p != nil {
			r[p.Platform()] = p
		}
	}
	return r
}

// Posters returns the registered posters in fan-out order.
func (r Registry) Posters() []Poster {
	var out []Poster
	for _, p := range types.AllPlatforms {
		if poster, ok := r[p]; ok {
			out = append(out, poster)
		}
	}
	return out
}

const maxErrorBody = 300

// formBody marks a request body to be sent form-encoded.
type formBody url.Values

// jsonClient is the shared HTTP plumbing for the Graph and TikTok APIs.
type jsonClient struct {
	platform types.Platform
	http     *http.Client
}

func newJSONClient(p types.Platform, client *http.Client) jsonClient {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return jsonClient{platform: p, http: client}
}

// do sends body (form values or a JSON-encodable value) and decodes a 2xx response into out.
func (c jsonClient) do(ctx context.Context, op, method, endpoint string, headers map[string]string, body any, out any) error {
	var reader io.Reader
	contentType := ""
	switch b := body.(type) {
	case nil:
	case formBody:
		reader = strings.NewReader(url.Values(b).Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return &Error{Platform: c.platform, Op: op, Message: "failed to encode request", Cause: err}
		}
		reader = bytes.NewReader(data)
		contentType = "application/json; charset=UTF-8"
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &Error{Platform: c.platform, Op: op, Message: "failed to create request", Cause: err}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Platform: c.platform, Op: op, Message: "request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Platform: c.platform, Op: op, StatusCode: resp.StatusCode, Message: "failed to read response", Cause: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Platform: c.platform, Op: op, StatusCode: resp.StatusCode, Message: apiErrorMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Platform: c.platform, Op: op, StatusCode: resp.StatusCode, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// apiErrorMessage pulls error.message out of a JSON error envelope, falling back to the raw body.
func apiErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxErrorBody {
		text = text[:maxErrorBody] + "..."
	}
	return text
}
