package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sitewatch/internal/domain"
	"sitewatch/internal/repository"
)

const createWebsitesTable = `
CREATE TABLE IF NOT EXISTS websites (
	id TEXT PRIMARY KEY,
	url TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(owner_id) REFERENCES users(id)
);
CREATE INDEX IF NOT EXISTS idx_websites_owner_id ON websites(owner_id);
`

// The owner filter and the latest-tick lookup run as one statement so there
// is no window between the ownership check and the read.
const selectOwnedWebsite = `
SELECT w.id, w.url, w.owner_id, w.created_at,
	t.id, t.status, t.status_code, t.response_time_ms, t.created_at
FROM websites w
LEFT JOIN ticks t ON t.rowid = (
	SELECT lt.rowid FROM ticks lt
	WHERE lt.website_id = w.id
	ORDER BY lt.created_at DESC, lt.rowid DESC
	LIMIT 1
)
WHERE w.id = ? AND w.owner_id = ?`

type WebsiteRepository struct {
	db *sql.DB
}

func NewWebsiteRepository(db *sql.DB) repository.WebsiteRepository {
	return &WebsiteRepository{db: db}
}

func (r *WebsiteRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createWebsitesTable); err != nil {
		return fmt.Errorf("create websites table: %w", err)
	}
	return nil
}

func (r *WebsiteRepository) Create(ctx context.Context, website *domain.Website) error {
	if website.CreatedAt.IsZero() {
		website.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
INSERT INTO websites (id, url, owner_id, created_at)
VALUES (?, ?, ?, ?)`,
		website.ID,
		website.URL,
		website.OwnerID,
		website.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert website: %w", translateConstraint(err))
	}
	return nil
}

func (r *WebsiteRepository) GetByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.Website, error) {
	var (
		website        domain.Website
		tickID         sql.NullString
		tickStatus     sql.NullString
		tickStatusCode sql.NullInt64
		tickRespTime   sql.NullInt64
		tickCreatedAt  sql.NullInt64
	)

	err := r.db.QueryRowContext(ctx, selectOwnedWebsite, id, ownerID).Scan(
		&website.ID,
		&website.URL,
		&website.OwnerID,
		&website.CreatedAt,
		&tickID,
		&tickStatus,
		&tickStatusCode,
		&tickRespTime,
		&tickCreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("website: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan website: %w", err)
	}

	if tickID.Valid {
		website.LatestTick = &domain.Tick{
			ID:             tickID.String,
			WebsiteID:      website.ID,
			Status:         domain.TickStatus(tickStatus.String),
			StatusCode:     int(tickStatusCode.Int64),
			ResponseTimeMS: tickRespTime.Int64,
			CreatedAt:      fromUnixNano(tickCreatedAt.Int64),
		}
	}

	return &website, nil
}
