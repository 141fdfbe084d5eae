package repository

import (
	"context"

	"site_registry/internal/domain"
)

// SiteRepository defines site data access
type SiteRepository interface {
	// List returns sites matching filter, newest first
	List(ctx context.Context, filter domain.SiteFilter) ([]domain.Site, error)

	// Get returns the site with id or domain.ErrNotFound
	Get(ctx context.Context, id int) (domain.Site, error)

	// MaxID returns the highest id in use; ok is false when there are no sites
	MaxID(ctx context.Context) (max int, ok bool, err error)

	// Insert stores a new site; a taken id yields domain.ErrDuplicateID
	Insert(ctx context.Context, site domain.Site) error

	// Replace overwrites the stored site with the same id (last write wins)
	Replace(ctx context.Context, site domain.Site) error

	// Delete removes the site with id or returns domain.ErrNotFound
	Delete(ctx context.Context, id int) (domain.Site, error)

	// Type returns database type
	Type() string
}

// UserRepository defines account data access
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (domain.User, error)
	GetByID(ctx context.Context, id string) (domain.User, error)
	// Insert stores a new user; a taken username yields domain.ErrUserExists
	Insert(ctx context.Context, user domain.User) error
}

// EventRepository stores site status history
type EventRepository interface {
	Insert(ctx context.Context, events []domain.StatusEvent) error
	// History returns the latest events of a site, newest first
	History(ctx context.Context, siteID int, limit int) ([]domain.StatusEvent, error)
	Type() string
}
