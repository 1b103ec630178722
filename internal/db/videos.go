package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

const videoColumns = `id, niche_id, job_id, prompt, description, hashtags, video_url, source_url,
	storage_path, duration, status, platforms, created_at, updated_at`

// CreateVideo inserts a new video record. The caller assigns the ID.
func (db *DB) CreateVideo(ctx context.Context, video *types.VideoRecord) error {
	jobID, err := optionalID(video.JobID)
	if err != nil {
		return err
	}
	platforms := video.Platforms
	if platforms == nil {
		platforms = []types.PlatformPost{}
	}
	platformsJSON, err := json.Marshal(platforms)
	if err != nil {
		return fmt.Errorf("failed to marshal platforms: %w", err)
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO videos (id, niche_id, job_id, prompt, description, hashtags, video_url, source_url,
		                     storage_path, duration, status, platforms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING created_at, updated_at`,
		video.ID, video.NicheID, jobID, video.Prompt, video.Description, nonNilStrings(video.Hashtags),
		video.VideoURL, video.SourceURL, video.StoragePath, video.Duration, video.Status, platformsJSON,
	).Scan(&video.CreatedAt, &video.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}
	video.Platforms = platforms
	return nil
}

// GetVideo retrieves a video by ID. Returns nil, nil when it does not exist.
func (db *DB) GetVideo(ctx context.Context, id string) (*types.VideoRecord, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)
	video, err := scanVideo(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

// AppendPlatformPost appends one posting attempt to the video's platform list.
// The append is a single UPDATE so concurrent fan-out branches never overwrite each other.
func (db *DB) AppendPlatformPost(ctx context.Context, videoID string, post types.PlatformPost) error {
	postJSON, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("failed to marshal platform post: %w", err)
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE videos
		 SET platforms = platforms || jsonb_build_array($2::jsonb), updated_at = NOW()
		 WHERE id = $1`,
		videoID, postJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to append %s post: %w", post.Platform, err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("video not found: %s", videoID)
	}
	return nil
}

// UpdateVideoStatus moves a video to a new status, rejecting backwards transitions.
func (db *DB) UpdateVideoStatus(ctx context.Context, videoID string, status types.VideoStatus) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current types.VideoStatus
	err = tx.QueryRow(ctx, `SELECT status FROM videos WHERE id = $1 FOR UPDATE`, videoID).Scan(&current)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("video not found: %s", videoID)
		}
		return fmt.Errorf("failed to read video status: %w", err)
	}
	if current == status {
		return tx.Commit(ctx)
	}
	if !types.CanTransitionVideo(current, status) {
		return &types.VideoTransitionError{VideoID: videoID, From: current, To: status}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE videos SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, videoID,
	); err != nil {
		return fmt.Errorf("failed to update video status: %w", err)
	}
	return tx.Commit(ctx)
}

// UpdatePostMetrics writes collected metrics onto the posted entry matching platform and post ID.
// The row is locked for the read-modify-write; entry status is never changed.
func (db *DB) UpdatePostMetrics(ctx context.Context, videoID string, platform types.Platform, postID string, metrics types.PlatformMetrics, at time.Time) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var platformsJSON []byte
	err = tx.QueryRow(ctx, `SELECT platforms FROM videos WHERE id = $1 FOR UPDATE`, videoID).Scan(&platformsJSON)
	if err != nil {
		if err == pgx.ErrNoRows {
			return fmt.Errorf("video not found: %s", videoID)
		}
		return fmt.Errorf("failed to read platforms: %w", err)
	}

	var posts []types.PlatformPost
	if err := json.Unmarshal(platformsJSON, &posts); err != nil {
		return fmt.Errorf("failed to decode platforms: %w", err)
	}

	found := false
	for i := range posts {
		if posts[i].Platform == platform && posts[i].PostID == postID {
			posts[i].ApplyMetrics(metrics, at)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("no %s post %s on video %s", platform, postID, videoID)
	}

	updated, err := json.Marshal(posts)
	if err != nil {
		return fmt.Errorf("failed to marshal platforms: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE videos SET platforms = $1, updated_at = NOW() WHERE id = $2`,
		updated, videoID,
	); err != nil {
		return fmt.Errorf("failed to update metrics: %w", err)
	}
	return tx.Commit(ctx)
}

// RecentPrompts returns up to limit prompts of the niche's newest videos.
func (db *DB) RecentPrompts(ctx context.Context, nicheID string, limit int) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT prompt FROM videos WHERE niche_id = $1 ORDER BY created_at DESC LIMIT $2`,
		nicheID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent prompts: %w", err)
	}
	defer rows.Close()

	var prompts []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

// VideoFilters holds optional filters for listing videos
type VideoFilters struct {
	NicheID string
	Status  types.VideoStatus
	Since   time.Time
	Limit   int
}

// ListVideos retrieves videos with optional filters, newest first
func (db *DB) ListVideos(ctx context.Context, filters VideoFilters) ([]types.VideoRecord, error) {
	if filters.Limit == 0 {
		filters.Limit = 50
	}

	query := `SELECT ` + videoColumns + ` FROM videos WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.NicheID != "" {
		query += fmt.Sprintf(" AND niche_id = $%d", argNum)
		args = append(args, filters.NicheID)
		argNum++
	}
	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}
	if !filters.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argNum)
		args = append(args, filters.Since)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []types.VideoRecord
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}

// ListPostedVideosSince returns the niche's posted videos created at or after since.
func (db *DB) ListPostedVideosSince(ctx context.Context, nicheID string, since time.Time) ([]types.VideoRecord, error) {
	return db.ListVideos(ctx, VideoFilters{
		NicheID: nicheID,
		Status:  types.VideoStatusPosted,
		Since:   since,
		Limit:   1000,
	})
}

func scanVideo(row pgx.Row) (*types.VideoRecord, error) {
	var v types.VideoRecord
	var jobID *uuid.UUID
	var platformsJSON []byte
	if err := row.Scan(&v.ID, &v.NicheID, &jobID, &v.Prompt, &v.Description, &v.Hashtags, &v.VideoURL,
		&v.SourceURL, &v.StoragePath, &v.Duration, &v.Status, &platformsJSON, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.JobID = idString(jobID)
	v.Platforms = []types.PlatformPost{}
	if len(platformsJSON) > 0 {
		if err := json.Unmarshal(platformsJSON, &v.Platforms); err != nil {
			return nil, fmt.Errorf("failed to decode platforms for %s: %w", v.ID, err)
		}
	}
	return &v, nil
}
