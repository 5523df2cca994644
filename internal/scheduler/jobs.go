// internal/scheduler/jobs.go

package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
	notifications "github.com/imadgeboyega/gratitude-backend/internal/notification"
	"github.com/imadgeboyega/gratitude-backend/internal/schedule"
)

// candidate is a user that is due for a job at a given local instant
type candidate struct {
	user  models.User
	local time.Time
}

type tally struct {
	sent   atomic.Int64
	failed atomic.Int64
}

// collect lists active users and keeps the ones due for kind at now
func (s *Scheduler) collect(ctx context.Context, kind models.DispatchKind, now time.Time, force bool) ([]candidate, *JobResult, error) {
	var users []models.User
	err := callWithTimeout(ctx, s.cfg.CallTimeout, "list active users", func(ctx context.Context) error {
		var err error
		users, err = s.store.ListActiveUsers(ctx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	res := &JobResult{Kind: kind}
	due := make([]candidate, 0)
	for _, u := range users {
		local, ok := schedule.LocalNow(now, u.Timezone)
		if !ok {
			if !force {
				s.log.Warn("skipping user with unknown timezone", zap.String("phone", u.Phone), zap.String("timezone", u.Timezone))
				continue
			}
			// forced runs still reach the user; the marker is taken in UTC
			s.log.Warn("unknown timezone, using UTC", zap.String("phone", u.Phone), zap.String("timezone", u.Timezone))
			local = now.UTC()
		}
		if !s.cfg.Matcher.ShouldFire(now, u.Timezone, u.PreferredTime, force) {
			continue
		}
		if kind == models.DispatchWeekly && !force && local.Weekday() != s.cfg.SummaryDay {
			continue
		}
		if u.LastDispatch(kind) == kind.Marker(local) {
			res.Duplicate++
			continue
		}
		due = append(due, candidate{user: u, local: local})
	}
	res.Due = len(due)
	return due, res, nil
}

// fanOut runs fn for each candidate with bounded parallelism
func (s *Scheduler) fanOut(due []candidate, res *JobResult, fn func(c candidate) error) {
	var t tally
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for _, c := range due {
		c := c
		g.Go(func() error {
			if err := fn(c); err != nil {
				t.failed.Add(1)
				return nil
			}
			t.sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Sent = int(t.sent.Load())
	res.Failed = int(t.failed.Load())
}

func (s *Scheduler) daily(ctx context.Context, now time.Time, force bool) (*JobResult, error) {
	due, res, err := s.collect(ctx, models.DispatchDaily, now, force)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return res, nil
	}

	prompt := &lazyPrompt{gen: s.prompts, timeout: s.cfg.CallTimeout, log: s.log}

	s.fanOut(due, res, func(c candidate) error {
		body := prompt.get(ctx)
		err := callWithTimeout(ctx, s.cfg.CallTimeout, "send sms", func(ctx context.Context) error {
			_, err := s.sms.SendSMS(ctx, &notifications.SMSMessage{To: c.user.Phone, Body: body})
			return err
		})
		if err != nil {
			dispatchesTotal.WithLabelValues(string(models.DispatchDaily), outcomeFailed).Inc()
			s.log.Warn("daily prompt failed", zap.String("phone", c.user.Phone), zap.Error(err))
			return err
		}
		return s.record(ctx, models.DispatchDaily, c)
	})
	return res, nil
}

func (s *Scheduler) weekly(ctx context.Context, now time.Time, force bool) (*JobResult, error) {
	due, res, err := s.collect(ctx, models.DispatchWeekly, now, force)
	if err != nil {
		return nil, err
	}

	s.fanOut(due, res, func(c candidate) error {
		if c.user.Email == "" {
			s.log.Warn("weekly summary skipped, no email on file", zap.String("phone", c.user.Phone))
			dispatchesTotal.WithLabelValues(string(models.DispatchWeekly), outcomeFailed).Inc()
			return models.NewValidationError("email", "no email on file")
		}

		var entries []models.Entry
		err := callWithTimeout(ctx, s.cfg.CallTimeout, "recent entries", func(ctx context.Context) error {
			var err error
			entries, err = s.store.RecentEntries(ctx, c.user.Phone, s.cfg.WindowDays)
			return err
		})
		if err == nil {
			err = callWithTimeout(ctx, s.cfg.CallTimeout, "send summary", func(ctx context.Context) error {
				return s.mailer.SendWeeklySummary(ctx, c.user.Email, entries, c.local.Location())
			})
		}
		if err != nil {
			dispatchesTotal.WithLabelValues(string(models.DispatchWeekly), outcomeFailed).Inc()
			s.log.Warn("weekly summary failed", zap.String("phone", c.user.Phone), zap.Error(err))
			return err
		}
		return s.record(ctx, models.DispatchWeekly, c)
	})
	return res, nil
}

// record stores the dedup marker after a successful send. A failure here means
// the user may be sent to again on the next tick.
func (s *Scheduler) record(ctx context.Context, kind models.DispatchKind, c candidate) error {
	err := callWithTimeout(ctx, s.cfg.CallTimeout, "record dispatch", func(ctx context.Context) error {
		return s.store.RecordDispatch(ctx, c.user.Phone, kind, c.local)
	})
	if err != nil {
		dispatchesTotal.WithLabelValues(string(kind), outcomeUnrecorded).Inc()
		s.log.Error("sent but could not record dispatch",
			zap.String("job", string(kind)),
			zap.String("phone", c.user.Phone),
			zap.Error(err),
		)
		return nil
	}
	dispatchesTotal.WithLabelValues(string(kind), outcomeSent).Inc()
	return nil
}

// lazyPrompt generates the prompt at most once per job run, on first use
type lazyPrompt struct {
	gen     notifications.PromptGenerator
	timeout time.Duration
	log     *zap.Logger

	once sync.Once
	text string
}

func (p *lazyPrompt) get(ctx context.Context) string {
	p.once.Do(func() {
		p.text = notifications.DefaultPrompt
		if p.gen == nil {
			return
		}

		var text string
		err := callWithTimeout(ctx, p.timeout, "generate prompt", func(ctx context.Context) error {
			var err error
			text, err = p.gen.Generate(ctx)
			return err
		})
		if err != nil || strings.TrimSpace(text) == "" {
			promptFallbacksTotal.Inc()
			p.log.Warn("prompt generation failed, using default", zap.Error(err))
			return
		}
		p.text = text
	})
	return p.text
}

// callWithTimeout runs fn with its own deadline. fn keeps running in the
// background if it ignores its context; its result is then discarded.
// Failures of external calls come back as TransientDeliveryError; domain
// errors from the store are returned unchanged.
func callWithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(cctx) }()

	var err error
	select {
	case err = <-done:
	case <-cctx.Done():
		err = cctx.Err()
	}

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case models.IsNotFound(err), models.IsValidation(err), models.IsTransient(err):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &models.TransientDeliveryError{Op: op, Err: errors.New("timed out after " + timeout.String())}
	}
	return &models.TransientDeliveryError{Op: op, Err: err}
}
