// internal/notification/models.go

package notifications

import (
	"context"
)

// SMSMessage is an outbound text message
type SMSMessage struct {
	To   string
	Body string
}

// EmailMessage is an outbound email. HTML is optional.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	HTML    string
}

// SMSService sends text messages and returns the gateway message id
type SMSService interface {
	SendSMS(ctx context.Context, msg *SMSMessage) (string, error)
}

// EmailService delivers email through a relay
type EmailService interface {
	SendEmail(ctx context.Context, msg *EmailMessage) error
}

// PromptGenerator produces the short daily question
type PromptGenerator interface {
	Generate(ctx context.Context) (string, error)
}
