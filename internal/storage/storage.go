// Package storage persists generated video assets and exposes them under a public URL.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jonathan/shorts-autopilot/internal/types"
)

// Error wraps a failed storage operation.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ObjectPath returns the storage key for a video: videos/<niche>/<video>.mp4.
func ObjectPath(nicheID, videoID string) string {
	return path.Join("videos", cleanSegment(nicheID), cleanSegment(videoID)+".mp4")
}

func cleanSegment(s string) string {
	s = unsafeSegment.ReplaceAllString(strings.TrimSpace(s), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "unknown"
	}
	return s
}

// LocalStore writes assets below BaseDir and builds URLs from PublicBaseURL.
// The server mounts BaseDir at /assets/ so platforms that pull by URL can reach the file.
type LocalStore struct {
	BaseDir       string
	PublicBaseURL string
}

// NewLocalStore creates BaseDir if needed.
func NewLocalStore(baseDir, publicBaseURL string) (*LocalStore, error) {
	if baseDir == "" {
		return nil, &Error{Message: "storage directory is required"}
	}
	if _, err := url.Parse(publicBaseURL); err != nil || publicBaseURL == "" {
		return nil, &Error{Message: fmt.Sprintf("invalid public base URL %q", publicBaseURL), Cause: err}
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, &Error{Message: "failed to create storage directory", Cause: err}
	}
	return &LocalStore{BaseDir: baseDir, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

// Upload writes data atomically (temp file then rename) and returns its public location.
func (s *LocalStore) Upload(ctx context.Context, data []byte, videoID, nicheID string) (*types.StoredAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, &Error{Message: "refusing to store empty asset"}
	}

	key := ObjectPath(nicheID, videoID)
	dest := filepath.Join(s.BaseDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, &Error{Message: "failed to create asset directory", Cause: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return nil, &Error{Message: "failed to create temp file", Cause: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return nil, &Error{Message: "failed to write asset", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return nil, &Error{Message: "failed to write asset", Cause: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return nil, &Error{Message: "failed to set asset permissions", Cause: err}
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return nil, &Error{Message: "failed to move asset into place", Cause: err}
	}

	return &types.StoredAsset{
		PublicURL:   s.PublicURL(key),
		StoragePath: key,
		Size:        int64(len(data)),
	}, nil
}

// PublicURL maps a storage key to its URL.
func (s *LocalStore) PublicURL(key string) string {
	return s.PublicBaseURL + "/" + strings.TrimLeft(key, "/")
}

// Delete removes a stored asset. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, key string) error {
	clean := path.Clean("/" + key)
	err := os.Remove(filepath.Join(s.BaseDir, filepath.FromSlash(clean)))
	if err != nil && !os.IsNotExist(err) {
		return &Error{Message: "failed to delete asset", Cause: err}
	}
	return nil
}
