package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

const nicheColumns = `id, name, keywords, schedule, credentials, created_at, updated_at`

// UpsertNiche creates or replaces a niche configuration
func (db *DB) UpsertNiche(ctx context.Context, niche *types.ContentNiche) error {
	scheduleJSON, err := json.Marshal(niche.Schedule)
	if err != nil {
		return fmt.Errorf("failed to marshal schedule: %w", err)
	}
	credsJSON, err := json.Marshal(niche.Credentials)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}
	keywords := niche.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO niches (id, name, keywords, schedule, credentials)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, keywords = EXCLUDED.keywords, schedule = EXCLUDED.schedule,
		     credentials = EXCLUDED.credentials, updated_at = NOW()
		 RETURNING created_at, updated_at`,
		niche.ID, niche.Name, keywords, scheduleJSON, credsJSON,
	).Scan(&niche.CreatedAt, &niche.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert niche %s: %w", niche.ID, err)
	}
	return nil
}

// GetNiche retrieves a niche by ID. Returns nil, nil when it does not exist.
func (db *DB) GetNiche(ctx context.Context, id string) (*types.ContentNiche, error) {
	row := db.pool.QueryRow(ctx, `SELECT `+nicheColumns+` FROM niches WHERE id = $1`, id)
	niche, err := scanNiche(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get niche: %w", err)
	}
	return niche, nil
}

// ListNiches returns every configured niche ordered by ID
func (db *DB) ListNiches(ctx context.Context) ([]types.ContentNiche, error) {
	rows, err := db.pool.Query(ctx, `SELECT `+nicheColumns+` FROM niches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list niches: %w", err)
	}
	defer rows.Close()

	var niches []types.ContentNiche
	for rows.Next() {
		niche, err := scanNiche(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan niche: %w", err)
		}
		niches = append(niches, *niche)
	}
	return niches, rows.Err()
}

// DeleteNiche removes a niche and, via cascade, its videos and jobs
func (db *DB) DeleteNiche(ctx context.Context, id string) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM niches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete niche: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("niche not found: %s", id)
	}
	return nil
}

func scanNiche(row pgx.Row) (*types.ContentNiche, error) {
	var n types.ContentNiche
	var scheduleJSON, credsJSON []byte
	if err := row.Scan(&n.ID, &n.Name, &n.Keywords, &scheduleJSON, &credsJSON, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	if len(scheduleJSON) > 0 {
		if err := json.Unmarshal(scheduleJSON, &n.Schedule); err != nil {
			return nil, fmt.Errorf("failed to decode schedule for %s: %w", n.ID, err)
		}
	}
	if len(credsJSON) > 0 {
		if err := json.Unmarshal(credsJSON, &n.Credentials); err != nil {
			return nil, fmt.Errorf("failed to decode credentials for %s: %w", n.ID, err)
		}
	}
	return &n, nil
}
