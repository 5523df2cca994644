// internal/notification/sms.go

package notifications

import (
	"context"
	"fmt"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// TwilioSMSService implements SMS notifications using Twilio
type TwilioSMSService struct {
	client *twilio.RestClient
	from   string
	log    *zap.Logger
}

// NewTwilioSMSService creates a new Twilio SMS service
func NewTwilioSMSService(accountSID, authToken, from string, log *zap.Logger) (*TwilioSMSService, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("incomplete Twilio configuration")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioSMSService{
		client: client,
		from:   from,
		log:    log,
	}, nil
}

// SendSMS sends a single SMS. The Twilio client takes no context; callers
// bound the call with their own timeout.
func (s *TwilioSMSService) SendSMS(ctx context.Context, msg *SMSMessage) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(s.from)
	params.SetBody(msg.Body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	s.log.Debug("sms sent", zap.String("to", msg.To), zap.String("sid", sid))
	return sid, nil
}

// MockSMSService records messages instead of sending them
type MockSMSService struct {
	mu           sync.Mutex
	SentMessages []*SMSMessage
	// Fail makes SendSMS return the mapped error for a recipient
	Fail map[string]error
	// Block makes SendSMS wait for ctx cancellation for a recipient
	Block map[string]bool
}

// NewMockSMSService creates a new mock SMS service
func NewMockSMSService() *MockSMSService {
	return &MockSMSService{
		SentMessages: make([]*SMSMessage, 0),
		Fail:         map[string]error{},
		Block:        map[string]bool{},
	}
}

func (m *MockSMSService) SendSMS(ctx context.Context, msg *SMSMessage) (string, error) {
	m.mu.Lock()
	err, block := m.Fail[msg.To], m.Block[msg.To]
	m.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, msg)
	return fmt.Sprintf("SM%032d", len(m.SentMessages)), nil
}

// Sent returns a copy of the recorded messages
func (m *MockSMSService) Sent() []SMSMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SMSMessage, 0, len(m.SentMessages))
	for _, msg := range m.SentMessages {
		out = append(out, *msg)
	}
	return out
}

// SetFail registers (or clears, with nil) a failure for a recipient
func (m *MockSMSService) SetFail(to string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Fail, to)
		return
	}
	m.Fail[to] = err
}

// SetBlock makes sends to a recipient hang until the context ends
func (m *MockSMSService) SetBlock(to string, block bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Block[to] = block
}
