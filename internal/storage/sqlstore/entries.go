// internal/storage/sqlstore/entries.go

package sqlstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
	"github.com/imadgeboyega/gratitude-backend/internal/storage"
)

// AppendEntry stores a journal entry with a store-assigned timestamp
func (s *Store) AppendEntry(ctx context.Context, phone, text string) (*models.Entry, error) {
	if err := storage.ValidateEntryText(text); err != nil {
		return nil, err
	}

	entry := &models.Entry{
		ID:        uuid.NewString(),
		Phone:     phone,
		Text:      text,
		Timestamp: storage.Normalize(s.now()),
	}

	query := `INSERT INTO entries (id, phone, body, created_at) VALUES (?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, s.q(query), entry.ID, entry.Phone, entry.Text, entry.Timestamp); err != nil {
		return nil, fmt.Errorf("failed to append entry: %w", err)
	}

	return entry, nil
}

// RecentEntries returns entries within the window, newest first
func (s *Store) RecentEntries(ctx context.Context, phone string, windowDays int) ([]models.Entry, error) {
	since := storage.WindowStart(s.now(), windowDays)

	query := `
		SELECT id, phone, body, created_at
		FROM entries
		WHERE phone = ? AND created_at >= ?
		ORDER BY created_at DESC, id DESC`

	entries := []models.Entry{}
	if err := s.db.SelectContext(ctx, &entries, s.q(query), phone, since); err != nil {
		return nil, fmt.Errorf("failed to get recent entries: %w", err)
	}

	for i := range entries {
		entries[i].Timestamp = entries[i].Timestamp.UTC()
	}
	return entries, nil
}
