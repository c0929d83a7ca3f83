package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sitewatch/internal/domain"
	"sitewatch/internal/repository"
)

// created_at is stored as unix nanoseconds so "latest" ordering is exact.
const createTicksTable = `
CREATE TABLE IF NOT EXISTS ticks (
	id TEXT PRIMARY KEY,
	website_id TEXT NOT NULL,
	status TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	response_time_ms INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	FOREIGN KEY(website_id) REFERENCES websites(id)
);
CREATE INDEX IF NOT EXISTS idx_ticks_website_created ON ticks(website_id, created_at);
`

type TickRepository struct {
	db *sql.DB
}

func NewTickRepository(db *sql.DB) repository.TickRepository {
	return &TickRepository{db: db}
}

func (r *TickRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTicksTable); err != nil {
		return fmt.Errorf("create ticks table: %w", err)
	}
	return nil
}

// Append inserts tick. Ticks are never updated once written.
func (r *TickRepository) Append(ctx context.Context, tick *domain.Tick) error {
	if tick.CreatedAt.IsZero() {
		tick.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO ticks (id, website_id, status, status_code, response_time_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		tick.ID,
		tick.WebsiteID,
		string(tick.Status),
		tick.StatusCode,
		tick.ResponseTimeMS,
		tick.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert tick: %w", translateConstraint(err))
	}
	return nil
}

// ListByWebsite returns up to limit ticks, newest first.
func (r *TickRepository) ListByWebsite(ctx context.Context, websiteID string, limit int) ([]domain.Tick, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, website_id, status, status_code, response_time_ms, created_at
FROM ticks
WHERE website_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?`, websiteID, limit)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	ticks := []domain.Tick{}
	for rows.Next() {
		var (
			tick      domain.Tick
			status    string
			createdAt int64
		)
		if err := rows.Scan(&tick.ID, &tick.WebsiteID, &status, &tick.StatusCode, &tick.ResponseTimeMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		tick.Status = domain.TickStatus(status)
		tick.CreatedAt = fromUnixNano(createdAt)
		ticks = append(ticks, tick)
	}

	return ticks, rows.Err()
}

func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}
