// internal/notification/summary.go

package notifications

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
)

// SummaryMailer renders weekly summaries and hands them to an EmailService
type SummaryMailer struct {
	email EmailService
	log   *zap.Logger
}

// NewSummaryMailer creates a summary mailer on top of an email transport
func NewSummaryMailer(email EmailService, log *zap.Logger) *SummaryMailer {
	return &SummaryMailer{email: email, log: log}
}

// SendWeeklySummary mails the given entries to address. An empty entry list
// sends the "missed you" variant. Timestamps are shown in loc.
func (m *SummaryMailer) SendWeeklySummary(ctx context.Context, address string, entries []models.Entry, loc *time.Location) error {
	if address == "" {
		return models.NewValidationError("email", "email is required for the weekly summary")
	}

	text, html, err := RenderWeeklySummary(entries, loc)
	if err != nil {
		return err
	}

	msg := &EmailMessage{
		To:      address,
		Subject: WeeklySummarySubject,
		Body:    text,
		HTML:    html,
	}
	if err := m.email.SendEmail(ctx, msg); err != nil {
		return fmt.Errorf("weekly summary to %s: %w", address, err)
	}

	m.log.Debug("weekly summary sent", zap.String("to", address), zap.Int("entries", len(entries)))
	return nil
}
