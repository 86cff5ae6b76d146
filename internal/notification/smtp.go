// Package notification provides the outbound delivery adapters: SMTP for
// email and a webhook endpoint for text messages. Both are best effort;
// a failed delivery is logged and reported as a boolean, never an error
// that could affect a document action.
package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/oasuite/procureflow/internal/application/port"
)

// SMTPConfig holds mail relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers email through a plain SMTP relay.
type SMTPSender struct {
	cfg    SMTPConfig
	logger *zap.Logger
}

// NewSMTPSender creates an SMTP-backed email sender.
func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{cfg: cfg, logger: logger}
}

// SendEmailMessages sends one message to all recipients. Returns false on
// any delivery failure.
func (s *SMTPSender) SendEmailMessages(ctx context.Context, to []string, subject, text string) bool {
	if len(to) == 0 {
		return true
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=UTF-8",
		"",
		text,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, s.cfg.From, to, []byte(msg)); err != nil {
		s.logger.Error("Failed to send email",
			zap.Strings("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return false
	}

	s.logger.Info("Email sent", zap.Int("recipients", len(to)), zap.String("subject", subject))
	return true
}

// Verify interface compliance
var _ port.EmailSender = (*SMTPSender)(nil)
