package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"sitewatch/internal/domain"
	"sitewatch/internal/repository"
	"sitewatch/internal/storage"
)

const (
	DefaultTickLimit = 50
	MaxTickLimit     = 500
	maxExportTicks   = 10000
	maxURLLength     = 2048
)

var errExportDisabled = errors.New("tick export storage is not configured")

// TickExport describes an export written to object storage.
type TickExport struct {
	WebsiteID  string
	Key        string
	Location   string
	Count      int
	ExportedAt time.Time
}

// WebsiteService describes monitored website operations. Every read and
// write is scoped to the authenticated owner.
type WebsiteService interface {
	CreateWebsite(ctx context.Context, ownerID, rawURL string) (*domain.Website, error)
	GetWebsite(ctx context.Context, ownerID, websiteID string) (*domain.Website, error)
	ListTicks(ctx context.Context, ownerID, websiteID string, limit int) ([]domain.Tick, error)
	RecordTick(ctx context.Context, websiteID string, tick domain.Tick) (*domain.Tick, error)
	ExportTicks(ctx context.Context, ownerID, websiteID string) (*TickExport, error)
	ListExports(ctx context.Context, ownerID, websiteID string) ([]storage.ObjectInfo, error)
}

// ExportConfig locates tick exports in object storage. An empty Bucket
// disables exports.
type ExportConfig struct {
	Bucket    string
	KeyPrefix string
}

type websiteService struct {
	websites repository.WebsiteRepository
	ticks    repository.TickRepository
	store    storage.Service
	export   ExportConfig
	now      func() time.Time
}

type websiteInput struct {
	URL string `json:"url" validate:"required,max=2048,http_url"`
}

// NewWebsiteService wires website persistence. store may be nil.
func NewWebsiteService(websites repository.WebsiteRepository, ticks repository.TickRepository, store storage.Service, export ExportConfig) WebsiteService {
	return &websiteService{
		websites: websites,
		ticks:    ticks,
		store:    store,
		export:   export,
		now:      time.Now,
	}
}

func (s *websiteService) CreateWebsite(ctx context.Context, ownerID, rawURL string) (*domain.Website, error) {
	if ownerID == "" {
		return nil, domain.Unauthorized(domain.ReasonMissingToken, "Token not provided")
	}

	normalized, err := validateWebsiteURL(rawURL)
	if err != nil {
		return nil, err
	}

	website := &domain.Website{
		ID:      uuid.NewString(),
		URL:     normalized,
		OwnerID: ownerID,
	}
	if err := s.websites.Create(ctx, website); err != nil {
		if errors.Is(err, repository.ErrReference) {
			// valid signature but the user row is gone
			return nil, domain.Unauthorized(domain.ReasonUnknownSubject, "Invalid token")
		}
		return nil, domain.Internal("Internal server error", err)
	}
	return website, nil
}

func (s *websiteService) GetWebsite(ctx context.Context, ownerID, websiteID string) (*domain.Website, error) {
	if ownerID == "" || websiteID == "" {
		return nil, domain.NotFound("Website not found")
	}

	website, err := s.websites.GetByIDAndOwner(ctx, websiteID, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("Website not found")
		}
		return nil, domain.Internal("Internal server error", err)
	}
	return website, nil
}

func (s *websiteService) ListTicks(ctx context.Context, ownerID, websiteID string, limit int) ([]domain.Tick, error) {
	if _, err := s.GetWebsite(ctx, ownerID, websiteID); err != nil {
		return nil, err
	}

	ticks, err := s.ticks.ListByWebsite(ctx, websiteID, ClampTickLimit(limit))
	if err != nil {
		return nil, domain.Internal("Internal server error", err)
	}
	return ticks, nil
}

// RecordTick appends an observation for websiteID. It is the entry point for
// the external scheduler and is not owner scoped.
func (s *websiteService) RecordTick(ctx context.Context, websiteID string, tick domain.Tick) (*domain.Tick, error) {
	tick.WebsiteID = websiteID
	if tick.Status == "" {
		tick.Status = domain.TickStatusUnknown
	}
	if err := validateTick(tick); err != nil {
		return nil, err
	}
	if tick.ID == "" {
		tick.ID = uuid.NewString()
	}
	if tick.CreatedAt.IsZero() {
		tick.CreatedAt = s.now().UTC()
	}

	if err := s.ticks.Append(ctx, &tick); err != nil {
		if errors.Is(err, repository.ErrReference) {
			return nil, domain.NotFound("Website not found")
		}
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.Conflict("Tick already recorded")
		}
		return nil, domain.Internal("Internal server error", err)
	}
	return &tick, nil
}

type exportDocument struct {
	WebsiteID  string       `json:"websiteId"`
	URL        string       `json:"url"`
	ExportedAt time.Time    `json:"exportedAt"`
	Ticks      []exportTick `json:"ticks"`
}

type exportTick struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	StatusCode     int       `json:"statusCode"`
	ResponseTimeMS int64     `json:"responseTimeMs"`
	CreatedAt      time.Time `json:"createdAt"`
}

func (s *websiteService) ExportTicks(ctx context.Context, ownerID, websiteID string) (*TickExport, error) {
	if !s.exportsEnabled() {
		return nil, domain.Internal("Tick export is not configured", errExportDisabled)
	}

	website, err := s.GetWebsite(ctx, ownerID, websiteID)
	if err != nil {
		return nil, err
	}

	ticks, err := s.ticks.ListByWebsite(ctx, website.ID, maxExportTicks)
	if err != nil {
		return nil, domain.Internal("Internal server error", err)
	}

	exportedAt := s.now().UTC()
	doc := exportDocument{
		WebsiteID:  website.ID,
		URL:        website.URL,
		ExportedAt: exportedAt,
		Ticks:      make([]exportTick, 0, len(ticks)),
	}
	for _, t := range ticks {
		doc.Ticks = append(doc.Ticks, exportTick{
			ID:             t.ID,
			Status:         string(t.Status),
			StatusCode:     t.StatusCode,
			ResponseTimeMS: t.ResponseTimeMS,
			CreatedAt:      t.CreatedAt.UTC(),
		})
	}

	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, domain.Internal("Internal server error", fmt.Errorf("encode export: %w", err))
	}

	key := storage.JoinKey(s.export.KeyPrefix, ownerID, website.ID, fmt.Sprintf("%d.json", exportedAt.Unix()))
	location, err := s.store.PutObject(ctx, s.export.Bucket, key, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, domain.Internal("Tick export failed", fmt.Errorf("upload export: %w", err))
	}

	return &TickExport{
		WebsiteID:  website.ID,
		Key:        key,
		Location:   location,
		Count:      len(doc.Ticks),
		ExportedAt: exportedAt,
	}, nil
}

func (s *websiteService) ListExports(ctx context.Context, ownerID, websiteID string) ([]storage.ObjectInfo, error) {
	if !s.exportsEnabled() {
		return nil, domain.Internal("Tick export is not configured", errExportDisabled)
	}

	website, err := s.GetWebsite(ctx, ownerID, websiteID)
	if err != nil {
		return nil, err
	}

	prefix := storage.JoinKey(s.export.KeyPrefix, ownerID, website.ID) + "/"
	objects, err := s.store.ListObjects(ctx, s.export.Bucket, prefix)
	if err != nil {
		return nil, domain.Internal("Internal server error", fmt.Errorf("list exports: %w", err))
	}
	return objects, nil
}

func (s *websiteService) exportsEnabled() bool {
	return s.store != nil && strings.TrimSpace(s.export.Bucket) != ""
}

// ClampTickLimit maps a requested page size onto 1..MaxTickLimit.
// Zero or negative values select DefaultTickLimit.
func ClampTickLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultTickLimit
	case limit > MaxTickLimit:
		return MaxTickLimit
	default:
		return limit
	}
}

func validateWebsiteURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if err := validate.Struct(websiteInput{URL: trimmed}); err != nil {
		if details := FieldErrors(err); details != nil {
			return "", domain.Validation("Invalid input data", details...)
		}
		return "", domain.Internal("Internal server error", err)
	}

	invalid := domain.Validation("Invalid input data", domain.FieldError{
		Field:   "url",
		Rule:    "http_url",
		Message: "url must be an absolute http or https URL",
	})
	if strings.ContainsAny(trimmed, " \t\r\n") || len(trimmed) > maxURLLength {
		return "", invalid
	}
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || u.Hostname() == "" {
		return "", invalid
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", invalid
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return "", invalid
		}
	}
	return trimmed, nil
}

func validateTick(tick domain.Tick) error {
	var details []domain.FieldError
	if strings.TrimSpace(tick.WebsiteID) == "" {
		details = append(details, domain.FieldError{Field: "websiteId", Rule: "required", Message: "websiteId is required"})
	}
	if !tick.Status.Valid() {
		details = append(details, domain.FieldError{Field: "status", Rule: "oneof", Param: "up down unknown", Message: "status must be one of up, down, unknown"})
	}
	if tick.StatusCode < 0 || tick.StatusCode > 599 {
		details = append(details, domain.FieldError{Field: "statusCode", Rule: "max", Param: "599", Message: "statusCode must be between 0 and 599"})
	}
	if tick.ResponseTimeMS < 0 {
		details = append(details, domain.FieldError{Field: "responseTimeMs", Rule: "min", Param: "0", Message: "responseTimeMs must not be negative"})
	}
	if len(details) > 0 {
		return domain.Validation("Invalid tick", details...)
	}
	return nil
}
