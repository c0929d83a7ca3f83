package repository

import (
	"context"

	"sitewatch/internal/domain"
)

// WebsiteRepository persists websites. Every read is scoped to an owner.
type WebsiteRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, website *domain.Website) error
	// GetByIDAndOwner returns the website together with its latest tick.
	// A website owned by someone else yields ErrNotFound.
	GetByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.Website, error)
}

// TickRepository is the append-only tick log.
type TickRepository interface {
	Init(ctx context.Context) error
	Append(ctx context.Context, tick *domain.Tick) error
	ListByWebsite(ctx context.Context, websiteID string, limit int) ([]domain.Tick, error)
}
