// internal/webhook/handler_test.go

package webhook

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
)

type fakeStore struct {
	mu      sync.Mutex
	active  map[string]bool
	entries map[string][]string
	err     error
}

func newFakeStore(phones ...string) *fakeStore {
	s := &fakeStore{active: map[string]bool{}, entries: map[string][]string{}}
	for _, p := range phones {
		s.active[p] = true
	}
	return s
}

func (s *fakeStore) SetActive(ctx context.Context, phone string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.active[phone]; !ok {
		return &models.NotFoundError{Phone: phone}
	}
	s.active[phone] = active
	return nil
}

func (s *fakeStore) AppendEntry(ctx context.Context, phone, text string) (*models.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.entries[phone] = append(s.entries[phone], text)
	return &models.Entry{ID: uuid.NewString(), Phone: phone, Text: text}, nil
}

func TestHandle(t *testing.T) {
	const phone = "+15551234567"

	tests := []struct {
		name        string
		body        string
		want        Outcome
		wantActive  bool
		wantEntries []string
	}{
		{"stop", "STOP", OutcomeUnsubscribed, false, nil},
		{"stop with spaces", "  Stop \n", OutcomeUnsubscribed, false, nil},
		{"entry", "Grateful for sunshine", OutcomeEntry, true, []string{"Grateful for sunshine"}},
		{"entry keeps raw body", "  my dog  ", OutcomeEntry, true, []string{"  my dog  "}},
		{"stop inside sentence is an entry", "don't stop", OutcomeEntry, true, []string{"don't stop"}},
		{"blank", "   ", OutcomeIgnored, true, nil},
		{"empty", "", OutcomeIgnored, true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore(phone)
			h := NewHandler(store, zaptest.NewLogger(t))

			got, err := h.Handle(context.Background(), phone, tt.body)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantActive, store.active[phone])
			assert.Equal(t, tt.wantEntries, store.entries[phone])
		})
	}
}

func TestHandle_StopUnknownNumber(t *testing.T) {
	h := NewHandler(newFakeStore(), zaptest.NewLogger(t))

	got, err := h.Handle(context.Background(), "+15550000000", "stop")
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnsubscribed, got)
}

func TestHandle_EntryFromUnknownNumber(t *testing.T) {
	store := newFakeStore()
	h := NewHandler(store, zaptest.NewLogger(t))

	got, err := h.Handle(context.Background(), "+15550000000", "hello")
	require.NoError(t, err)
	assert.Equal(t, OutcomeEntry, got)
	assert.Equal(t, []string{"hello"}, store.entries["+15550000000"])
}

func TestHandle_StoreFailure(t *testing.T) {
	store := newFakeStore("+15551234567")
	store.err = errors.New("database is locked")
	h := NewHandler(store, zaptest.NewLogger(t))

	_, err := h.Handle(context.Background(), "+15551234567", "hello")
	assert.Error(t, err)

	_, err = h.Handle(context.Background(), "+15551234567", "stop")
	assert.Error(t, err)
}
