// cmd/api/providers.go

package main

import (
	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/config"
	"github.com/imadgeboyega/gratitude-backend/internal/models"
	notifications "github.com/imadgeboyega/gratitude-backend/internal/notification"
)

func newSMSService(cfg *config.Config, log *zap.Logger) (notifications.SMSService, error) {
	switch cfg.SMSProvider {
	case "twilio":
		svc, err := notifications.NewTwilioSMSService(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, log)
		if err != nil {
			return nil, models.NewConfigurationError("SMS_PROVIDER", "%v", err)
		}
		log.Info("Using Twilio for SMS")
		return svc, nil
	default:
		log.Warn("Using mock SMS provider (development mode)")
		return notifications.NewMockSMSService(), nil
	}
}

func newEmailService(cfg *config.Config, log *zap.Logger) (notifications.EmailService, error) {
	switch cfg.EmailProvider {
	case "sendgrid":
		svc, err := notifications.NewSendGridEmailService(cfg.SendGridAPIKey, "", cfg.EmailFrom, cfg.EmailFromName, log)
		if err != nil {
			return nil, models.NewConfigurationError("EMAIL_PROVIDER", "%v", err)
		}
		log.Info("Using SendGrid for emails")
		return svc, nil
	case "smtp":
		svc, err := notifications.NewSMTPEmailService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom, cfg.EmailFromName, log)
		if err != nil {
			return nil, models.NewConfigurationError("EMAIL_PROVIDER", "%v", err)
		}
		log.Info("Using SMTP for emails")
		return svc, nil
	default:
		log.Warn("Using mock email provider (development mode)")
		return notifications.NewMockEmailService(), nil
	}
}

func newPromptGenerator(cfg *config.Config, log *zap.Logger) (notifications.PromptGenerator, error) {
	switch cfg.PromptProvider {
	case "deepseek":
		gen, err := notifications.NewDeepSeekPromptGenerator(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL, cfg.PromptModel, log)
		if err != nil {
			return nil, models.NewConfigurationError("PROMPT_PROVIDER", "%v", err)
		}
		log.Info("Using DeepSeek for prompts", zap.String("model", cfg.PromptModel))
		return gen, nil
	default:
		log.Info("Using static prompt")
		return notifications.NewStaticPromptGenerator(""), nil
	}
}
