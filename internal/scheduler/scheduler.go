// internal/scheduler/scheduler.go
// Polling dispatcher for the daily prompt and the weekly summary. Each tick is
// aligned to an absolute deadline so processing time never accumulates drift.

package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
	notifications "github.com/imadgeboyega/gratitude-backend/internal/notification"
	"github.com/imadgeboyega/gratitude-backend/internal/schedule"
)

// ErrJobRunning is returned by RunDaily/RunWeekly when the same job is already in progress
var ErrJobRunning = errors.New("job already running")

// Store is the part of the storage port the jobs need
type Store interface {
	ListActiveUsers(ctx context.Context) ([]models.User, error)
	RecentEntries(ctx context.Context, phone string, windowDays int) ([]models.Entry, error)
	RecordDispatch(ctx context.Context, phone string, kind models.DispatchKind, localNow time.Time) error
}

// SummaryMailer delivers the weekly digest
type SummaryMailer interface {
	SendWeeklySummary(ctx context.Context, address string, entries []models.Entry, loc *time.Location) error
}

// Config holds the scheduler settings
type Config struct {
	Interval    time.Duration
	Matcher     schedule.Matcher
	SummaryDay  time.Weekday
	Concurrency int
	CallTimeout time.Duration
	WindowDays  int
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Matcher:     schedule.NewMatcher(schedule.DefaultTolerance, schedule.SameHour),
		SummaryDay:  time.Sunday,
		Concurrency: 8,
		CallTimeout: 15 * time.Second,
		WindowDays:  models.DefaultEntryWindowDays,
	}
}

// JobResult summarizes one run of a job
type JobResult struct {
	Kind      models.DispatchKind `json:"kind"`
	Due       int                 `json:"due"`
	Sent      int                 `json:"sent"`
	Failed    int                 `json:"failed"`
	Duplicate int                 `json:"duplicate"`
}

// Scheduler runs the daily and weekly jobs
type Scheduler struct {
	store   Store
	prompts notifications.PromptGenerator
	sms     notifications.SMSService
	mailer  SummaryMailer
	cfg     Config
	now     func() time.Time
	log     *zap.Logger

	dailyRunning  atomic.Bool
	weeklyRunning atomic.Bool
	wg            sync.WaitGroup
}

// Option customizes a Scheduler
type Option func(*Scheduler)

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a new Scheduler. Zero config values take the defaults.
func New(store Store, prompts notifications.PromptGenerator, sms notifications.SMSService, mailer SummaryMailer, cfg Config, log *zap.Logger, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Matcher.Mode == "" {
		cfg.Matcher = def.Matcher
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = def.WindowDays
	}

	s := &Scheduler{
		store:   store,
		prompts: prompts,
		sms:     sms,
		mailer:  mailer,
		cfg:     cfg,
		now:     time.Now,
		log:     log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs the tick loop until ctx is cancelled, then waits for in-flight jobs
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Starting dispatch scheduler",
		zap.Duration("interval", s.cfg.Interval),
		zap.String("match_mode", string(s.cfg.Matcher.Mode)),
		zap.Int("tolerance", s.cfg.Matcher.Tolerance),
		zap.Stringer("summary_day", s.cfg.SummaryDay),
	)

	next := NextDeadline(s.now(), s.cfg.Interval)
	for {
		timer := time.NewTimer(next.Sub(s.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info("Context cancelled, stopping dispatch scheduler")
			s.wg.Wait()
			return
		case <-timer.C:
		}

		s.Tick(ctx)

		next = next.Add(s.cfg.Interval)
		if now := s.now(); !next.After(now) {
			// Deadlines missed while asleep or suspended are dropped, not replayed
			next = NextDeadline(now, s.cfg.Interval)
		}
	}
}

// NextDeadline returns the first interval boundary strictly after now
func NextDeadline(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

// Tick launches both jobs for the current instant without waiting for them.
// A job whose previous run is still going is skipped for this tick.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	for _, kind := range []models.DispatchKind{models.DispatchDaily, models.DispatchWeekly} {
		kind := kind
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			_, err := s.run(ctx, kind, now, false)
			switch {
			case errors.Is(err, ErrJobRunning):
				s.log.Warn("previous run still in progress, skipping tick", zap.String("job", string(kind)))
			case err != nil:
				s.log.Error("job failed", zap.String("job", string(kind)), zap.Error(err))
			}
		}()
	}
}

// Wait blocks until every job started by Tick has returned
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunDaily runs the daily prompt job synchronously. force bypasses the time
// window but never the dedup marker.
func (s *Scheduler) RunDaily(ctx context.Context, force bool) (*JobResult, error) {
	return s.run(ctx, models.DispatchDaily, s.now(), force)
}

// RunWeekly runs the weekly summary job synchronously. force bypasses the time
// window and the weekday but never the dedup marker.
func (s *Scheduler) RunWeekly(ctx context.Context, force bool) (*JobResult, error) {
	return s.run(ctx, models.DispatchWeekly, s.now(), force)
}

// Run dispatches to RunDaily or RunWeekly by kind
func (s *Scheduler) Run(ctx context.Context, kind models.DispatchKind, force bool) (*JobResult, error) {
	switch kind {
	case models.DispatchDaily:
		return s.RunDaily(ctx, force)
	case models.DispatchWeekly:
		return s.RunWeekly(ctx, force)
	}
	return nil, models.NewValidationError("kind", "unknown job "+string(kind))
}

func (s *Scheduler) run(ctx context.Context, kind models.DispatchKind, now time.Time, force bool) (*JobResult, error) {
	flag := &s.dailyRunning
	if kind == models.DispatchWeekly {
		flag = &s.weeklyRunning
	}
	if !flag.CompareAndSwap(false, true) {
		tickSkipsTotal.WithLabelValues(string(kind)).Inc()
		return nil, ErrJobRunning
	}
	defer flag.Store(false)

	started := time.Now()
	defer func() {
		jobDuration.WithLabelValues(string(kind)).Observe(time.Since(started).Seconds())
	}()

	run := s.daily
	if kind == models.DispatchWeekly {
		run = s.weekly
	}
	res, err := run(ctx, now, force)
	if err == nil && (res.Due > 0 || force) {
		s.log.Info("job finished",
			zap.String("job", string(kind)),
			zap.Bool("force", force),
			zap.Int("due", res.Due),
			zap.Int("sent", res.Sent),
			zap.Int("failed", res.Failed),
		)
	}
	return res, err
}
