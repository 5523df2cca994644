// internal/storage/storage.go
// Storage port shared by every backend. Adapters live in subpackages and are
// chosen once at startup by storage/backend.

package storage

import (
	"context"
	"strings"
	"time"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
)

// UserStore is the user half of the port
type UserStore interface {
	// ListActiveUsers returns users with active=true ordered by phone
	ListActiveUsers(ctx context.Context) ([]models.User, error)
	// ListUsers returns every user ordered by phone
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, phone string) (*models.User, error)
	CreateUser(ctx context.Context, in models.NewUser) (*models.User, error)
	UpdateUser(ctx context.Context, phone string, upd models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, phone string) error
	SetActive(ctx context.Context, phone string, active bool) error
	// RecordDispatch stores kind.Marker(localNow) as the user's last dispatch marker
	RecordDispatch(ctx context.Context, phone string, kind models.DispatchKind, localNow time.Time) error
}

// EntryStore is the journal half of the port
type EntryStore interface {
	AppendEntry(ctx context.Context, phone, text string) (*models.Entry, error)
	// RecentEntries returns entries created within the last windowDays days,
	// boundary included, newest first
	RecentEntries(ctx context.Context, phone string, windowDays int) ([]models.Entry, error)
}

// Repository is implemented by every storage backend
type Repository interface {
	UserStore
	EntryStore
	Ping(ctx context.Context) error
	Close() error
}

// Clock returns the current instant; adapters take one so tests can pin time
type Clock func() time.Time

// SystemClock is the wall clock
func SystemClock() time.Time {
	return time.Now()
}

// Normalize strips the monotonic reading and fixes precision so every backend
// round-trips the same instant.
func Normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// WindowStart is the inclusive lower bound of a RecentEntries query
func WindowStart(now time.Time, windowDays int) time.Time {
	if windowDays <= 0 {
		windowDays = models.DefaultEntryWindowDays
	}
	return Normalize(now).AddDate(0, 0, -windowDays)
}

// ValidateEntryText rejects blank journal text
func ValidateEntryText(text string) error {
	if strings.TrimSpace(text) == "" {
		return models.NewValidationError("text", "text must not be empty")
	}
	return nil
}

// ValidateKind rejects unknown dispatch kinds
func ValidateKind(kind models.DispatchKind) error {
	if !kind.Valid() {
		return models.NewValidationError("kind", "unknown dispatch kind "+string(kind))
	}
	return nil
}
