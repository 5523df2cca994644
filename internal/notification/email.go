// internal/notification/email.go

package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPEmailService implements email notifications using SMTP (STARTTLS on 587)
type SMTPEmailService struct {
	from     string
	fromName string
	dialer   *gomail.Dialer
	log      *zap.Logger
}

// NewSMTPEmailService creates a new SMTP email service
func NewSMTPEmailService(host string, port int, username, password, from, fromName string, log *zap.Logger) (*SMTPEmailService, error) {
	if host == "" || username == "" || password == "" || from == "" {
		return nil, fmt.Errorf("incomplete SMTP configuration")
	}

	dialer := gomail.NewDialer(host, port, username, password)
	dialer.TLSConfig = &tls.Config{ServerName: host}

	return &SMTPEmailService{
		from:     from,
		fromName: fromName,
		dialer:   dialer,
		log:      log,
	}, nil
}

// SendEmail sends a single email
func (s *SMTPEmailService) SendEmail(ctx context.Context, msg *EmailMessage) error {
	m := buildMessage(s.from, s.fromName, msg)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	s.log.Debug("email sent", zap.String("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func buildMessage(from, fromName string, msg *EmailMessage) *gomail.Message {
	m := gomail.NewMessage()

	// Set headers
	m.SetHeader("From", m.FormatAddress(from, fromName))
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	// Plain text first so HTML is the preferred alternative
	m.SetBody("text/plain", msg.Body)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}
	return m
}

// SendGridEmailService implements email notifications using SendGrid
type SendGridEmailService struct {
	client   *sendgrid.Client
	from     string
	fromName string
	log      *zap.Logger
}

// NewSendGridEmailService creates a new SendGrid email service.
// host may be empty to use the public API.
func NewSendGridEmailService(apiKey, host, from, fromName string, log *zap.Logger) (*SendGridEmailService, error) {
	if apiKey == "" || from == "" {
		return nil, fmt.Errorf("incomplete SendGrid configuration")
	}

	request := sendgrid.GetRequest(apiKey, "/v3/mail/send", host)
	request.Method = "POST"

	return &SendGridEmailService{
		client:   &sendgrid.Client{Request: request},
		from:     from,
		fromName: fromName,
		log:      log,
	}, nil
}

// SendEmail sends a single email via SendGrid
func (s *SendGridEmailService) SendEmail(ctx context.Context, msg *EmailMessage) error {
	from := mail.NewEmail(s.fromName, s.from)
	to := mail.NewEmail("", msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, msg.HTML)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid send: status %d: %s", response.StatusCode, response.Body)
	}

	s.log.Debug("email sent", zap.String("to", msg.To), zap.Int("status", response.StatusCode))
	return nil
}

// MockEmailService is a mock implementation for testing
type MockEmailService struct {
	mu         sync.Mutex
	SentEmails []*EmailMessage
	Fail       map[string]error
}

// NewMockEmailService creates a new mock email service
func NewMockEmailService() *MockEmailService {
	return &MockEmailService{
		SentEmails: make([]*EmailMessage, 0),
		Fail:       map[string]error{},
	}
}

func (m *MockEmailService) SendEmail(ctx context.Context, msg *EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.Fail[msg.To]; err != nil {
		return err
	}
	m.SentEmails = append(m.SentEmails, msg)
	return nil
}

// Sent returns a copy of the recorded emails
func (m *MockEmailService) Sent() []EmailMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailMessage, 0, len(m.SentEmails))
	for _, e := range m.SentEmails {
		out = append(out, *e)
	}
	return out
}

// SetFail registers (or clears, with nil) a failure for a recipient
func (m *MockEmailService) SetFail(to string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Fail, to)
		return
	}
	m.Fail[to] = err
}
