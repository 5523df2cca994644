// internal/storage/sqlstore/migrate.go

package sqlstore

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Dialect names a supported SQL engine
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// Migrate applies every pending up migration for the dialect.
// databaseURL is a postgres:// URL or, for SQLite, the database file path.
func Migrate(dialect Dialect, databaseURL string, log *zap.Logger) error {
	var dir, url string
	switch dialect {
	case Postgres:
		dir, url = "migrations/postgres", databaseURL
	case SQLite:
		dir, url = "migrations/sqlite", "sqlite://"+databaseURL
	default:
		return fmt.Errorf("unsupported dialect %q", dialect)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("no migrations to apply", zap.String("dialect", string(dialect)))
			return nil
		}
		return fmt.Errorf("migration up failed: %w", err)
	}

	version, _, _ := m.Version()
	log.Info("migrations applied", zap.String("dialect", string(dialect)), zap.Uint("version", version))
	return nil
}
