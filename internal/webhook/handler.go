// internal/webhook/handler.go
// Maps an inbound text message to an unsubscribe or a journal entry.

package webhook

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/models"
)

// StopKeyword unsubscribes the sender, compared after trimming and lower-casing
const StopKeyword = "stop"

// Outcome is what an inbound message turned into
type Outcome string

const (
	OutcomeUnsubscribed Outcome = "unsubscribed"
	OutcomeEntry        Outcome = "entry"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeDuplicate    Outcome = "duplicate"
)

// Store is the part of the storage port the webhook writes to
type Store interface {
	SetActive(ctx context.Context, phone string, active bool) error
	AppendEntry(ctx context.Context, phone, text string) (*models.Entry, error)
}

// Handler applies inbound messages to the store
type Handler struct {
	store Store
	log   *zap.Logger
}

// NewHandler creates a new inbound message handler
func NewHandler(store Store, log *zap.Logger) *Handler {
	return &Handler{store: store, log: log}
}

// Handle processes one message from phone. STOP from an unknown number is
// logged and treated as handled. A blank body is acknowledged without writing.
func (h *Handler) Handle(ctx context.Context, phone, body string) (Outcome, error) {
	normalized := strings.ToLower(strings.TrimSpace(body))

	switch normalized {
	case StopKeyword:
		err := h.store.SetActive(ctx, phone, false)
		if models.IsNotFound(err) {
			h.log.Warn("stop from unknown number", zap.String("phone", phone))
			return OutcomeUnsubscribed, nil
		}
		if err != nil {
			return "", err
		}
		h.log.Info("user unsubscribed", zap.String("phone", phone))
		return OutcomeUnsubscribed, nil

	case "":
		h.log.Debug("blank message ignored", zap.String("phone", phone))
		return OutcomeIgnored, nil
	}

	entry, err := h.store.AppendEntry(ctx, phone, body)
	if err != nil {
		return "", err
	}
	h.log.Debug("entry stored", zap.String("phone", phone), zap.String("id", entry.ID))
	return OutcomeEntry, nil
}
