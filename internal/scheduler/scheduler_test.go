// internal/scheduler/scheduler_test.go

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/imadgeboyega/gratitude-backend/internal/common/database"
	"github.com/imadgeboyega/gratitude-backend/internal/models"
	notifications "github.com/imadgeboyega/gratitude-backend/internal/notification"
	"github.com/imadgeboyega/gratitude-backend/internal/storage"
	"github.com/imadgeboyega/gratitude-backend/internal/storage/sqlstore"
	"github.com/imadgeboyega/gratitude-backend/internal/storage/storagetest"
	"github.com/imadgeboyega/gratitude-backend/internal/webhook"
)

// 2026-10-18 00:00 UTC is Saturday 2026-10-17 20:00 in New York
var saturdayEvening = time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

// 2026-10-19 00:00 UTC is Sunday 2026-10-18 20:00 in New York
var sundayEvening = time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

type countingPrompts struct {
	calls   atomic.Int32
	text    string
	err     error
	started chan struct{}
	release chan struct{}
}

func (p *countingPrompts) Generate(ctx context.Context) (string, error) {
	p.calls.Add(1)
	if p.started != nil {
		close(p.started)
	}
	if p.release != nil {
		select {
		case <-p.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return p.text, p.err
}

type harness struct {
	repo    storage.Repository
	clock   *storagetest.Clock
	prompts *countingPrompts
	sms     *notifications.MockSMSService
	email   *notifications.MockEmailService
	sched   *Scheduler
}

func newHarness(t *testing.T, now time.Time, cfg Config) *harness {
	t.Helper()
	log := zaptest.NewLogger(t)

	path := filepath.Join(t.TempDir(), "scheduler.db")
	require.NoError(t, sqlstore.Migrate(sqlstore.SQLite, path, log))
	db, err := database.NewSQLiteDB(context.Background(), path)
	require.NoError(t, err)

	clock := storagetest.NewClock(now)
	repo := sqlstore.New(db, sqlstore.WithClock(clock.Now), sqlstore.WithLogger(log))
	t.Cleanup(func() { _ = repo.Close() })

	h := &harness{
		repo:    repo,
		clock:   clock,
		prompts: &countingPrompts{text: "What made you smile today?"},
		sms:     notifications.NewMockSMSService(),
		email:   notifications.NewMockEmailService(),
	}
	mailer := notifications.NewSummaryMailer(h.email, log)
	h.sched = New(repo, h.prompts, h.sms, mailer, cfg, log, WithClock(clock.Now))
	return h
}

func (h *harness) addUser(t *testing.T, phone, tz, pref string) {
	t.Helper()
	_, err := h.repo.CreateUser(context.Background(), models.NewUser{
		Phone:         phone,
		Email:         "u" + phone[1:] + "@example.com",
		Timezone:      tz,
		PreferredTime: pref,
	})
	require.NoError(t, err)
}

func (h *harness) user(t *testing.T, phone string) *models.User {
	t.Helper()
	u, err := h.repo.GetUser(context.Background(), phone)
	require.NoError(t, err)
	return u
}

func (h *harness) tick() {
	h.sched.Tick(context.Background())
	h.sched.Wait()
}

func recipients(msgs []notifications.SMSMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.To)
	}
	return out
}

func TestDailyDedupAcrossTicks(t *testing.T) {
	h := newHarness(t, saturdayEvening, Config{})
	h.addUser(t, "+15550000001", "America/New_York", "20:00")

	for i := 0; i < 3; i++ {
		h.tick()
		h.clock.Advance(time.Minute)
	}

	assert.Len(t, h.sms.Sent(), 1)
	assert.Equal(t, "2026-10-17", h.user(t, "+15550000001").LastDailyDispatch)
	assert.Empty(t, h.email.Sent(), "Saturday is not summary day")
}

func TestDailyEndToEnd(t *testing.T) {
	h := newHarness(t, saturdayEvening.Add(time.Minute), Config{})
	ctx := context.Background()

	h.addUser(t, "+15550000001", "America/New_York", "20:00")
	h.addUser(t, "+15550000002", "America/New_York", "20:00")
	h.addUser(t, "+15550000003", "America/Los_Angeles", "20:00")
	h.addUser(t, "+15550000004", "Asia/Tokyo", "09:00")
	h.addUser(t, "+15550000005", "America/New_York", "20:03")
	require.NoError(t, h.repo.SetActive(ctx, "+15550000002", false))

	h.tick()

	sent := h.sms.Sent()
	assert.ElementsMatch(t, []string{"+15550000001", "+15550000004", "+15550000005"}, recipients(sent))
	for _, m := range sent {
		assert.Equal(t, "What made you smile today?", m.Body)
	}
	assert.EqualValues(t, 1, h.prompts.calls.Load())

	assert.Equal(t, "2026-10-17", h.user(t, "+15550000001").LastDailyDispatch)
	assert.Equal(t, "2026-10-18", h.user(t, "+15550000004").LastDailyDispatch)
	assert.Empty(t, h.user(t, "+15550000002").LastDailyDispatch)
	assert.Empty(t, h.user(t, "+15550000003").LastDailyDispatch)

	// Tokyo is already at Sunday 09:01, so its user also gets the weekly summary
	mails := h.email.Sent()
	require.Len(t, mails, 1)
	assert.Equal(t, "u15550000004@example.com", mails[0].To)
	assert.Contains(t, mails[0].Body, "We missed you this week!")
	assert.Equal(t, "2026-W42", h.user(t, "+15550000004").LastWeeklyDispatch)
}

func TestDailyFiveUsersOnePromptAfterStop(t *testing.T) {
	h := newHarness(t, saturdayEvening.Add(time.Minute), Config{})
	ctx := context.Background()

	for i := 1; i <= 6; i++ {
		h.addUser(t, fmt.Sprintf("+1555000000%d", i), "America/New_York", "20:00")
	}

	inbound := webhook.NewHandler(h.repo, zaptest.NewLogger(t))
	outcome, err := inbound.Handle(ctx, "+15550000006", "  STOP  ")
	require.NoError(t, err)
	assert.Equal(t, webhook.OutcomeUnsubscribed, outcome)

	for i := 0; i < 3; i++ {
		h.tick()
		h.clock.Advance(time.Minute)
	}

	assert.EqualValues(t, 1, h.prompts.calls.Load())
	sent := h.sms.Sent()
	assert.Len(t, sent, 5)
	assert.NotContains(t, recipients(sent), "+15550000006")
	assert.Empty(t, h.user(t, "+15550000006").LastDailyDispatch)
}

func TestDailyFailureIsolation(t *testing.T) {
	h := newHarness(t, saturdayEvening, Config{})
	h.addUser(t, "+15550000001", "America/New_York", "20:00")
	h.addUser(t, "+15550000002", "America/New_York", "20:00")
	h.sms.SetFail("+15550000001", errors.New("gateway rejected"))

	res, err := h.sched.RunDaily(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Due)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)

	assert.Empty(t, h.user(t, "+15550000001").LastDailyDispatch)
	assert.Equal(t, "2026-10-17", h.user(t, "+15550000002").LastDailyDispatch)

	// The failed user is retried on the next tick inside the window
	h.sms.SetFail("+15550000001", nil)
	h.clock.Advance(time.Minute)
	res, err = h.sched.RunDaily(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Duplicate)
	assert.Len(t, h.sms.Sent(), 2)
}

func TestDailyTimeoutIsolation(t *testing.T) {
	h := newHarness(t, saturdayEvening, Config{CallTimeout: 100 * time.Millisecond})
	h.addUser(t, "+15550000001", "America/New_York", "20:00")
	h.addUser(t, "+15550000002", "America/New_York", "20:00")
	h.sms.SetBlock("+15550000001", true)

	res, err := h.sched.RunDaily(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, []string{"+15550000002"}, recipients(h.sms.Sent()))
	assert.Empty(t, h.user(t, "+15550000001").LastDailyDispatch)
}

func TestDailyPromptFallback(t *testing.T) {
	h := newHarness(t, saturdayEvening, Config{})
	h.prompts.err = errors.New("model unavailable")
	h.addUser(t, "+15550000001", "America/New_York", "20:00")
	h.addUser(t, "+15550000002", "America/New_York", "20:01")

	h.tick()

	sent := h.sms.Sent()
	require.Len(t, sent, 2)
	for _, m := range sent {
		assert.Equal(t, notifications.DefaultPrompt, m.Body)
	}
	assert.EqualValues(t, 1, h.prompts.calls.Load())
}

func TestDailyNoCandidatesSkipsGeneration(t *testing.T) {
	h := newHarness(t, saturdayEvening, Config{})
	h.addUser(t, "+15550000001", "America/New_York", "08:00")

	h.tick()

	assert.Empty(t, h.sms.Sent())
	assert.EqualValues(t, 0, h.prompts.calls.Load())
}

func TestForceBypassesWindowNotMarker(t *testing.T) {
	h := newHarness(t, saturdayEvening, Config{})
	h.addUser(t, "+15550000001", "America/New_York", "07:30")

	res, err := h.sched.RunDaily(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	res, err = h.sched.RunDaily(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Sent)
	assert.Equal(t, 1, res.Duplicate)
	assert.Len(t, h.sms.Sent(), 1)
}

type fixedUsers struct {
	users    []models.User
	recorded []string
}

func (f *fixedUsers) ListActiveUsers(ctx context.Context) ([]models.User, error) {
	return f.users, nil
}

func (f *fixedUsers) RecentEntries(ctx context.Context, phone string, windowDays int) ([]models.Entry, error) {
	return nil, nil
}

func (f *fixedUsers) RecordDispatch(ctx context.Context, phone string, kind models.DispatchKind, localNow time.Time) error {
	f.recorded = append(f.recorded, kind.Marker(localNow))
	return nil
}

func TestForceReachesUserWithUnknownTimezone(t *testing.T) {
	log := zaptest.NewLogger(t)
	store := &fixedUsers{users: []models.User{
		{Phone: "+15550000001", Timezone: "Mars/Olympus_Mons", PreferredTime: "20:00", Active: true},
	}}
	sms := notifications.NewMockSMSService()
	clock := storagetest.NewClock(saturdayEvening)
	sched := New(store, notifications.NewStaticPromptGenerator("Who helped you today?"), sms, nil, Config{}, log, WithClock(clock.Now))

	res, err := sched.RunDaily(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Due)
	assert.Empty(t, sms.Sent())

	res, err = sched.RunDaily(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)
	require.Len(t, sms.Sent(), 1)
	assert.Equal(t, []string{"2026-10-18"}, store.recorded, "marker falls back to the UTC date")
}

func TestWeeklySummary(t *testing.T) {
	h := newHarness(t, sundayEvening.Add(-48*time.Hour), Config{})
	ctx := context.Background()
	h.addUser(t, "+15550000001", "America/New_York", "20:00")
	h.addUser(t, "+15550000002", "America/New_York", "20:00")

	_, err := h.repo.AppendEntry(ctx, "+15550000001", "Long call with my sister")
	require.NoError(t, err)

	// Saturday evening: daily only
	h.clock.Set(saturdayEvening)
	res, err := h.sched.RunWeekly(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Due)
	assert.Empty(t, h.email.Sent())

	h.clock.Set(sundayEvening)
	res, err = h.sched.RunWeekly(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)

	byAddress := map[string]notifications.EmailMessage{}
	for _, m := range h.email.Sent() {
		byAddress[m.To] = m
	}
	require.Len(t, byAddress, 2)
	assert.Contains(t, byAddress["u15550000001@example.com"].Body, "- Long call with my sister (Fri Oct 16, 8:00 PM)")
	assert.Contains(t, byAddress["u15550000002@example.com"].Body, "We missed you this week!")
	assert.Equal(t, "2026-W42", h.user(t, "+15550000001").LastWeeklyDispatch)

	// Same ISO week: no second summary
	h.clock.Advance(time.Minute)
	res, err = h.sched.RunWeekly(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Duplicate)
	assert.Len(t, h.email.Sent(), 2)
}

func TestWeeklyMailFailureLeavesMarker(t *testing.T) {
	h := newHarness(t, sundayEvening, Config{})
	h.addUser(t, "+15550000001", "America/New_York", "20:00")
	h.email.SetFail("u15550000001@example.com", errors.New("relay down"))

	res, err := h.sched.RunWeekly(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Empty(t, h.user(t, "+15550000001").LastWeeklyDispatch)
}

func TestJobNeverOverlapsItself(t *testing.T) {
	h := newHarness(t, saturdayEvening, Config{})
	h.addUser(t, "+15550000001", "America/New_York", "20:00")
	h.prompts.started = make(chan struct{})
	h.prompts.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.sched.RunDaily(context.Background(), false)
		done <- err
	}()
	<-h.prompts.started

	_, err := h.sched.RunDaily(context.Background(), false)
	assert.ErrorIs(t, err, ErrJobRunning)

	// The weekly job is independent of the daily one
	_, err = h.sched.RunWeekly(context.Background(), false)
	assert.NoError(t, err)

	close(h.prompts.release)
	require.NoError(t, <-done)
	assert.Len(t, h.sms.Sent(), 1)
}

func TestRunRejectsUnknownKind(t *testing.T) {
	h := newHarness(t, saturdayEvening, Config{})
	_, err := h.sched.Run(context.Background(), models.DispatchKind("monthly"), false)
	assert.True(t, models.IsValidation(err))
}

func TestStartStopsOnCancel(t *testing.T) {
	h := newHarness(t, saturdayEvening, Config{})
	sched := New(h.repo, h.prompts, h.sms, notifications.NewSummaryMailer(h.email, zaptest.NewLogger(t)),
		Config{Interval: 10 * time.Millisecond}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		sched.Start(ctx)
		close(stopped)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNextDeadline(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 34, 56, 789, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 18, 12, 35, 0, 0, time.UTC), NextDeadline(now, time.Minute))

	onBoundary := time.Date(2026, 10, 18, 12, 35, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 18, 12, 36, 0, 0, time.UTC), NextDeadline(onBoundary, time.Minute))
}

func TestCallWithTimeout(t *testing.T) {
	ctx := context.Background()

	t.Run("domain errors pass through", func(t *testing.T) {
		err := callWithTimeout(ctx, time.Second, "record", func(context.Context) error {
			return &models.NotFoundError{Phone: "+1"}
		})
		assert.True(t, models.IsNotFound(err))
	})

	t.Run("external errors are transient", func(t *testing.T) {
		err := callWithTimeout(ctx, time.Second, "send sms", func(context.Context) error {
			return errors.New("503")
		})
		assert.True(t, models.IsTransient(err))
	})

	t.Run("timeout is transient", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		err := callWithTimeout(ctx, 20*time.Millisecond, "send sms", func(context.Context) error {
			<-release
			return nil
		})
		assert.True(t, models.IsTransient(err))
	})

	t.Run("parent cancellation is not transient", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := callWithTimeout(cctx, time.Second, "send sms", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, models.IsTransient(err))
	})
}
