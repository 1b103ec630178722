package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

// SaveTrendingTopics records the topics fetched during a run. They are never read back by a run.
func (db *DB) SaveTrendingTopics(ctx context.Context, nicheID, jobID string, topics []types.TrendingTopic) error {
	if len(topics) == 0 {
		return nil
	}
	job, err := optionalID(jobID)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, t := range topics {
		batch.Queue(
			`INSERT INTO trending_topics (niche_id, job_id, topic, score, source, related_keywords, url, fetched_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			nicheID, job, t.Topic, t.Score, t.Source, nonNilStrings(t.RelatedKeywords), t.URL, t.FetchedAt,
		)
	}

	if err := db.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to save trending topics: %w", err)
	}
	return nil
}

// ListTrendingTopics returns the niche's most recently fetched topics
func (db *DB) ListTrendingTopics(ctx context.Context, nicheID string, limit int) ([]types.TrendingTopic, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT topic, score, source, related_keywords, url, fetched_at
		 FROM trending_topics WHERE niche_id = $1
		 ORDER BY fetched_at DESC, score DESC LIMIT $2`,
		nicheID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trending topics: %w", err)
	}
	defer rows.Close()

	var topics []types.TrendingTopic
	for rows.Next() {
		var t types.TrendingTopic
		if err := rows.Scan(&t.Topic, &t.Score, &t.Source, &t.RelatedKeywords, &t.URL, &t.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan trending topic: %w", err)
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// SaveAnalytics stores one metrics sample
func (db *DB) SaveAnalytics(ctx context.Context, record *types.AnalyticsRecord) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO analytics (video_id, niche_id, platform, post_id, views, likes, comments, shares,
		                        engagement_rate, collected_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id::text`,
		record.VideoID, record.NicheID, record.Platform, record.PostID, record.Views, record.Likes,
		record.Comments, record.Shares, record.EngagementRate, record.CollectedAt,
	).Scan(&record.ID)
	if err != nil {
		return fmt.Errorf("failed to save analytics: %w", err)
	}
	return nil
}

// ListAnalytics returns samples for a video collected since the given time, newest first
func (db *DB) ListAnalytics(ctx context.Context, videoID string, since time.Time) ([]types.AnalyticsRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id::text, video_id, niche_id, platform, post_id, views, likes, comments, shares,
		        engagement_rate, collected_at
		 FROM analytics WHERE video_id = $1 AND collected_at >= $2
		 ORDER BY collected_at DESC`,
		videoID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list analytics: %w", err)
	}
	defer rows.Close()

	var records []types.AnalyticsRecord
	for rows.Next() {
		var r types.AnalyticsRecord
		if err := rows.Scan(&r.ID, &r.VideoID, &r.NicheID, &r.Platform, &r.PostID, &r.Views, &r.Likes,
			&r.Comments, &r.Shares, &r.EngagementRate, &r.CollectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analytics: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
