// internal/storage/sqlstore/store.go
// Relational storage backend. Queries are written with ? placeholders and
// rebound for the connected driver, so one implementation serves PostgreSQL
// and SQLite.

package sqlstore

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/storage"
)

// Store implements storage.Repository on top of sqlx
type Store struct {
	db  *sqlx.DB
	now storage.Clock
	log *zap.Logger
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the clock used for created_at/updated_at
func WithClock(clock storage.Clock) Option {
	return func(s *Store) {
		s.now = clock
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

// New creates a new Store over an open, migrated database
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{
		db:  db,
		now: storage.SystemClock,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying pool
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() time.Time {
	return storage.Normalize(s.now())
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}
