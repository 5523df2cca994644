// internal/storage/storagetest/storagetest.go
// Behaviour every storage backend must share. Adapter tests call Run with a
// factory for their backend.

package storagetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
	"github.com/imadgeboyega/gratitude-backend/internal/storage"
)

// Clock is a settable clock for adapters under test
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock pinned to now
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the pinned instant
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock
func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by d
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory returns an empty repository whose timestamps come from clock
type Factory func(t *testing.T, clock *Clock) storage.Repository

// Start is the instant the suite clock starts at
var Start = time.Date(2026, 10, 18, 23, 30, 0, 0, time.UTC)

// Run executes the shared suite
func Run(t *testing.T, newRepo Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, repo storage.Repository, clock *Clock)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateConflict", testCreateConflict},
		{"CreateValidation", testCreateValidation},
		{"UpdatePartial", testUpdatePartial},
		{"UpdateValidationAndNotFound", testUpdateValidationAndNotFound},
		{"Delete", testDelete},
		{"SetActive", testSetActive},
		{"ListActiveUsersOrdered", testListActiveUsersOrdered},
		{"RecordDispatch", testRecordDispatch},
		{"AppendEntry", testAppendEntry},
		{"RecentEntriesWindow", testRecentEntriesWindow},
		{"ConcurrentMutations", testConcurrentMutations},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock(Start)
			repo := newRepo(t, clock)
			t.Cleanup(func() { repo.Close() })
			tt.fn(t, repo, clock)
		})
	}
}

func newUser(phone string) models.NewUser {
	return models.NewUser{
		Phone:         phone,
		Email:         "someone@example.com",
		Timezone:      "America/New_York",
		PreferredTime: "20:00",
	}
}

func testCreateAndGet(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, newUser("+15550000001"))
	require.NoError(t, err)
	assert.True(t, created.Active)

	got, err := repo.GetUser(ctx, "+15550000001")
	require.NoError(t, err)
	assert.Equal(t, "+15550000001", got.Phone)
	assert.Equal(t, "someone@example.com", got.Email)
	assert.Equal(t, "America/New_York", got.Timezone)
	assert.Equal(t, "20:00", got.PreferredTime)
	assert.True(t, got.Active)
	assert.Empty(t, got.LastDailyDispatch)
	assert.Empty(t, got.LastWeeklyDispatch)
	assert.True(t, got.CreatedAt.Equal(Start), "created_at %s", got.CreatedAt)

	_, err = repo.GetUser(ctx, "+15559999999")
	assert.True(t, models.IsNotFound(err))
}

func testCreateConflict(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, newUser("+15550000001"))
	require.NoError(t, err)

	dup := newUser("+15550000001")
	dup.Email = "other@example.com"
	dup.PreferredTime = "07:00"
	_, err = repo.CreateUser(ctx, dup)
	require.Error(t, err)
	assert.True(t, models.IsConflict(err))

	got, err := repo.GetUser(ctx, "+15550000001")
	require.NoError(t, err)
	assert.Equal(t, "someone@example.com", got.Email)
	assert.Equal(t, "20:00", got.PreferredTime)
}

func testCreateValidation(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	bad := newUser("5550000001")
	_, err := repo.CreateUser(ctx, bad)
	assert.True(t, models.IsValidation(err))

	bad = newUser("+15550000001")
	bad.Timezone = "Nowhere/Special"
	_, err = repo.CreateUser(ctx, bad)
	assert.True(t, models.IsValidation(err))

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func testUpdatePartial(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, newUser("+15550000001"))
	require.NoError(t, err)

	clock.Advance(time.Hour)
	tz := "Europe/London"
	updated, err := repo.UpdateUser(ctx, "+15550000001", models.UserUpdate{Timezone: &tz})
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", updated.Timezone)
	assert.Equal(t, "20:00", updated.PreferredTime)
	assert.Equal(t, "someone@example.com", updated.Email)
	assert.True(t, updated.Active)
	assert.True(t, updated.UpdatedAt.Equal(Start.Add(time.Hour)))

	inactive := false
	at := "06:45"
	updated, err = repo.UpdateUser(ctx, "+15550000001", models.UserUpdate{PreferredTime: &at, Active: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "06:45", updated.PreferredTime)
	assert.Equal(t, "Europe/London", updated.Timezone)
	assert.False(t, updated.Active)
}

func testUpdateValidationAndNotFound(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, newUser("+15550000001"))
	require.NoError(t, err)

	bad := "25:00"
	_, err = repo.UpdateUser(ctx, "+15550000001", models.UserUpdate{PreferredTime: &bad})
	assert.True(t, models.IsValidation(err))

	got, err := repo.GetUser(ctx, "+15550000001")
	require.NoError(t, err)
	assert.Equal(t, "20:00", got.PreferredTime)

	ok := "21:00"
	_, err = repo.UpdateUser(ctx, "+15559999999", models.UserUpdate{PreferredTime: &ok})
	assert.True(t, models.IsNotFound(err))
}

func testDelete(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, newUser("+15550000001"))
	require.NoError(t, err)

	err = repo.DeleteUser(ctx, "+15559999999")
	assert.True(t, models.IsNotFound(err))

	active, err := repo.ListActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, repo.DeleteUser(ctx, "+15550000001"))
	_, err = repo.GetUser(ctx, "+15550000001")
	assert.True(t, models.IsNotFound(err))
}

func testSetActive(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, newUser("+15550000001"))
	require.NoError(t, err)

	require.NoError(t, repo.SetActive(ctx, "+15550000001", false))
	require.NoError(t, repo.SetActive(ctx, "+15550000001", false))

	got, err := repo.GetUser(ctx, "+15550000001")
	require.NoError(t, err)
	assert.False(t, got.Active)

	err = repo.SetActive(ctx, "+15559999999", false)
	assert.True(t, models.IsNotFound(err))
}

func testListActiveUsersOrdered(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	for _, phone := range []string{"+15550000003", "+15550000001", "+15550000002"} {
		_, err := repo.CreateUser(ctx, newUser(phone))
		require.NoError(t, err)
	}
	require.NoError(t, repo.SetActive(ctx, "+15550000002", false))

	active, err := repo.ListActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "+15550000001", active[0].Phone)
	assert.Equal(t, "+15550000003", active[1].Phone)

	all, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func testRecordDispatch(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	_, err := repo.CreateUser(ctx, newUser("+15550000001"))
	require.NoError(t, err)

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	local := Start.In(ny)

	require.NoError(t, repo.RecordDispatch(ctx, "+15550000001", models.DispatchDaily, local))
	require.NoError(t, repo.RecordDispatch(ctx, "+15550000001", models.DispatchWeekly, local))

	got, err := repo.GetUser(ctx, "+15550000001")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-18", got.LastDailyDispatch)
	assert.Equal(t, "2026-W42", got.LastWeeklyDispatch)

	active, err := repo.ListActiveUsers(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "2026-10-18", active[0].LastDailyDispatch)

	err = repo.RecordDispatch(ctx, "+15559999999", models.DispatchDaily, local)
	assert.True(t, models.IsNotFound(err))

	err = repo.RecordDispatch(ctx, "+15550000001", models.DispatchKind("monthly"), local)
	assert.True(t, models.IsValidation(err))
}

func testAppendEntry(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()

	entry, err := repo.AppendEntry(ctx, "+15550000001", "my dog")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, "my dog", entry.Text)
	assert.True(t, entry.Timestamp.Equal(Start))

	_, err = repo.AppendEntry(ctx, "+15550000001", "   ")
	assert.True(t, models.IsValidation(err))

	// entries do not require an existing user
	entries, err := repo.RecentEntries(ctx, "+15550000001", 7)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "my dog", entries[0].Text)
}

func testRecentEntriesWindow(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()
	phone := "+15550000001"

	base := Start.Add(-10 * 24 * time.Hour)

	clock.Set(base)
	_, err := repo.AppendEntry(ctx, phone, "too old")
	require.NoError(t, err)

	clock.Set(Start.Add(-7 * 24 * time.Hour))
	_, err = repo.AppendEntry(ctx, phone, "on the boundary")
	require.NoError(t, err)

	clock.Set(Start.Add(-2 * 24 * time.Hour))
	_, err = repo.AppendEntry(ctx, phone, "two days ago")
	require.NoError(t, err)

	clock.Set(Start.Add(-time.Minute))
	_, err = repo.AppendEntry(ctx, phone, "just now")
	require.NoError(t, err)

	_, err = repo.AppendEntry(ctx, "+15550000002", "someone else")
	require.NoError(t, err)

	clock.Set(Start)
	entries, err := repo.RecentEntries(ctx, phone, 7)
	require.NoError(t, err)

	texts := make([]string, 0, len(entries))
	for _, e := range entries {
		texts = append(texts, e.Text)
	}
	assert.Equal(t, []string{"just now", "two days ago", "on the boundary"}, texts)

	// zero falls back to the default window
	entries, err = repo.RecentEntries(ctx, phone, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = repo.RecentEntries(ctx, "+15550000003", 7)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func testConcurrentMutations(t *testing.T, repo storage.Repository, clock *Clock) {
	ctx := context.Background()
	phone := "+15550000001"

	_, err := repo.CreateUser(ctx, newUser(phone))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.SetActive(ctx, phone, false))
		}()
		go func() {
			defer wg.Done()
			_, err := repo.AppendEntry(ctx, phone, "concurrent")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetUser(ctx, phone)
	require.NoError(t, err)
	assert.False(t, got.Active)

	entries, err := repo.RecentEntries(ctx, phone, 7)
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}
