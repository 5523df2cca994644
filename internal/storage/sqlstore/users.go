// internal/storage/sqlstore/users.go

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
	"github.com/imadgeboyega/gratitude-backend/internal/storage"
)

const userColumns = `phone, email, timezone, preferred_time, active,
	COALESCE(last_daily_dispatch, '') AS last_daily_dispatch,
	COALESCE(last_weekly_dispatch, '') AS last_weekly_dispatch,
	created_at, updated_at`

// ListActiveUsers returns active users ordered by phone
func (s *Store) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE active = ? ORDER BY phone`

	users := []models.User{}
	if err := s.db.SelectContext(ctx, &users, s.q(query), true); err != nil {
		return nil, fmt.Errorf("failed to list active users: %w", err)
	}
	return normalizeUsers(users), nil
}

// ListUsers returns all users ordered by phone
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY phone`

	users := []models.User{}
	if err := s.db.SelectContext(ctx, &users, query); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return normalizeUsers(users), nil
}

// GetUser retrieves a user by phone
func (s *Store) GetUser(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = ?`

	var user models.User
	if err := s.db.GetContext(ctx, &user, s.q(query), phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.NotFoundError{Phone: phone}
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return normalizeUser(&user), nil
}

// CreateUser inserts a new active user; an existing phone is left untouched
func (s *Store) CreateUser(ctx context.Context, in models.NewUser) (*models.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	now := s.timestamp()
	query := `
		INSERT INTO users (phone, email, timezone, preferred_time, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone) DO NOTHING`

	result, err := s.db.ExecContext(ctx, s.q(query),
		in.Phone, in.Email, in.Timezone, in.PreferredTime, true, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, &models.ConflictError{Phone: in.Phone}
	}

	return s.GetUser(ctx, in.Phone)
}

// UpdateUser merges the present fields of upd in a single statement
func (s *Store) UpdateUser(ctx context.Context, phone string, upd models.UserUpdate) (*models.User, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE users SET
			email = COALESCE(?, email),
			timezone = COALESCE(?, timezone),
			preferred_time = COALESCE(?, preferred_time),
			active = COALESCE(?, active),
			updated_at = ?
		WHERE phone = ?`

	result, err := s.db.ExecContext(ctx, s.q(query),
		upd.Email, upd.Timezone, upd.PreferredTime, upd.Active, s.timestamp(), phone)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if err := s.expectRow(result, phone); err != nil {
		return nil, err
	}

	return s.GetUser(ctx, phone)
}

// DeleteUser removes a user. Entries are kept.
func (s *Store) DeleteUser(ctx context.Context, phone string) error {
	result, err := s.db.ExecContext(ctx, s.q(`DELETE FROM users WHERE phone = ?`), phone)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return s.expectRow(result, phone)
}

// SetActive toggles the active flag; setting the current value is not an error
func (s *Store) SetActive(ctx context.Context, phone string, active bool) error {
	query := `UPDATE users SET active = ?, updated_at = ? WHERE phone = ?`

	result, err := s.db.ExecContext(ctx, s.q(query), active, s.timestamp(), phone)
	if err != nil {
		return fmt.Errorf("failed to set active: %w", err)
	}
	return s.expectRow(result, phone)
}

// RecordDispatch stores the dedup marker for kind
func (s *Store) RecordDispatch(ctx context.Context, phone string, kind models.DispatchKind, localNow time.Time) error {
	if err := storage.ValidateKind(kind); err != nil {
		return err
	}

	column := "last_daily_dispatch"
	if kind == models.DispatchWeekly {
		column = "last_weekly_dispatch"
	}
	query := `UPDATE users SET ` + column + ` = ?, updated_at = ? WHERE phone = ?`

	marker := kind.Marker(localNow)
	result, err := s.db.ExecContext(ctx, s.q(query), marker, s.timestamp(), phone)
	if err != nil {
		return fmt.Errorf("failed to record %s dispatch: %w", kind, err)
	}
	if err := s.expectRow(result, phone); err != nil {
		return err
	}

	s.log.Debug("dispatch recorded", zap.String("phone", phone), zap.String("kind", string(kind)), zap.String("marker", marker))
	return nil
}

func (s *Store) expectRow(result sql.Result, phone string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &models.NotFoundError{Phone: phone}
	}
	return nil
}

func normalizeUser(u *models.User) *models.User {
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u
}

func normalizeUsers(users []models.User) []models.User {
	for i := range users {
		normalizeUser(&users[i])
	}
	return users
}
