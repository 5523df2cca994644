// internal/storage/backend/backend.go
// Picks and opens the storage backend once at startup

package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/common/database"
	"github.com/imadgeboyega/gratitude-backend/internal/config"
	"github.com/imadgeboyega/gratitude-backend/internal/models"
	"github.com/imadgeboyega/gratitude-backend/internal/storage"
	"github.com/imadgeboyega/gratitude-backend/internal/storage/dynamostore"
	"github.com/imadgeboyega/gratitude-backend/internal/storage/sqlstore"
)

// Open connects to the configured backend, runs migrations or table setup,
// and returns it behind the storage port. Any failure is a
// *models.ConfigurationError: the process must not start without storage.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Repository, error) {
	name, err := cfg.ResolveStorageBackend()
	if err != nil {
		return nil, err
	}
	log = log.With(zap.String("storage", name))

	var repo storage.Repository
	switch name {
	case config.BackendPostgres:
		repo, err = openPostgres(ctx, cfg, log)
	case config.BackendSQLite:
		repo, err = openSQLite(ctx, cfg, log)
	case config.BackendDynamoDB:
		repo, err = openDynamoDB(ctx, cfg, log)
	default:
		err = fmt.Errorf("unknown backend %q", name)
	}
	if err != nil {
		if models.IsConfiguration(err) {
			return nil, err
		}
		return nil, models.NewConfigurationError("STORAGE_BACKEND", "%s backend unusable: %v", name, err)
	}

	log.Info("storage backend ready")
	return repo, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Repository, error) {
	db, err := database.NewPostgresDBFromURL(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := sqlstore.Migrate(sqlstore.Postgres, cfg.DatabaseURL, log); err != nil {
		db.Close()
		return nil, err
	}
	return sqlstore.New(db, sqlstore.WithLogger(log)), nil
}

func openSQLite(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Repository, error) {
	if err := sqlstore.Migrate(sqlstore.SQLite, cfg.SQLitePath, log); err != nil {
		return nil, err
	}
	db, err := database.NewSQLiteDB(ctx, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	return sqlstore.New(db, sqlstore.WithLogger(log)), nil
}

func openDynamoDB(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.Repository, error) {
	client, err := database.NewDynamoDBClient(database.DynamoDBConfig{
		Region:   cfg.AWSRegion,
		Endpoint: cfg.DynamoDBEndpoint,
	})
	if err != nil {
		return nil, err
	}

	store, err := dynamostore.New(client, dynamostore.Config{
		UsersTable:   cfg.DynamoDBUsersTable,
		EntriesTable: cfg.DynamoDBEntriesTable,
	}, dynamostore.WithLogger(log))
	if err != nil {
		return nil, models.NewConfigurationError("DYNAMODB_USERS_TABLE", "%v", err)
	}

	if cfg.DynamoDBCreateTables {
		if err := store.CreateTables(ctx); err != nil {
			return nil, err
		}
	}
	if err := store.Ping(ctx); err != nil {
		return nil, err
	}
	return store, nil
}
