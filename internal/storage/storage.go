// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/good-yellow-bee/focusdial/internal/models"
)

var (
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("storage: unique constraint violated")
	// ErrReferenced is returned when a row cannot be removed because other rows point at it.
	ErrReferenced = errors.New("storage: row is still referenced")
	// ErrNotFound is returned by Update and Delete when no row matched.
	ErrNotFound = errors.New("storage: not found")
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error
	// EnsureAdminUser creates default admin if no users exist.
	EnsureAdminUser() error

	Users() UserRepository
	Projects() ProjectRepository
	Entries() TimeEntryRepository
	APIKeys() APIKeyRepository
	Tokens() TokenRepository
}

// UserRepository defines operations for user management.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// ProjectRepository defines operations on a user's projects.
// Lookups return (nil, nil) when nothing matches.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetByName(ctx context.Context, userID, name string) (*models.Project, error)
	GetByDeviceID(ctx context.Context, userID, deviceProjectID string) (*models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]*models.Project, error)
	CountEntries(ctx context.Context, projectID string) (int64, error)
}

// EntryFilter narrows a time entry listing. Zero values do not filter.
// From and To bound start_time inclusively.
type EntryFilter struct {
	UserID    string
	ProjectID string
	From      *time.Time
	To        *time.Time
	Active    *bool
	Invoiced  *bool
	Limit     int
}

// TimeEntryRepository defines operations on tracked time.
type TimeEntryRepository interface {
	Create(ctx context.Context, entry *models.TimeEntry) error
	GetByID(ctx context.Context, id string) (*models.TimeEntry, error)
	Update(ctx context.Context, entry *models.TimeEntry) error
	Delete(ctx context.Context, id string) error
	// List returns entries newest first.
	List(ctx context.Context, filter EntryFilter) ([]*models.TimeEntry, error)
	// LatestActive returns the most recently started open entry for the project.
	LatestActive(ctx context.Context, userID, projectID string) (*models.TimeEntry, error)
	// TotalDuration sums the durations of all closed entries of a user, in seconds.
	TotalDuration(ctx context.Context, userID string) (int64, error)
}

// APIKeyRepository defines operations for device API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByKeyHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ListByUser(ctx context.Context, userID string) ([]*models.APIKey, error)
	Delete(ctx context.Context, userID, id string) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// TokenRepository defines operations for refresh token management.
type TokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeByTokenHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context) (int64, error)
}
