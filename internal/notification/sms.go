package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
)

// SMSConfig holds the text message gateway settings.
type SMSConfig struct {
	WebhookURL string
	Token      string
	Timeout    time.Duration
}

// WebhookSMSSender posts text messages to an SMS gateway webhook.
type WebhookSMSSender struct {
	cfg    SMSConfig
	client *http.Client
	logger *zap.Logger
}

// NewWebhookSMSSender creates a webhook-backed SMS sender.
func NewWebhookSMSSender(cfg SMSConfig, logger *zap.Logger) *WebhookSMSSender {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSMSSender{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type smsPayload struct {
	Channel string   `json:"channel,omitempty"`
	Phones  []string `json:"phones,omitempty"`
	Content string   `json:"content"`
}

// SendSMSTextMessage posts one message to the gateway. Returns false on
// any delivery failure.
func (s *WebhookSMSSender) SendSMSTextMessage(ctx context.Context, content string, target port.SMSTarget) bool {
	if s.cfg.WebhookURL == "" {
		return false
	}

	body, err := json.Marshal(smsPayload{
		Channel: target.Channel,
		Phones:  target.Phones,
		Content: content,
	})
	if err != nil {
		s.logger.Error("Failed to marshal SMS payload", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("Failed to build SMS request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Error("Failed to send SMS", zap.String("channel", target.Channel), zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("SMS gateway rejected message",
			zap.String("channel", target.Channel),
			zap.Int("status", resp.StatusCode))
		return false
	}

	s.logger.Info("SMS sent", zap.String("channel", target.Channel))
	return true
}

// Verify interface compliance
var _ port.SMSSender = (*WebhookSMSSender)(nil)
