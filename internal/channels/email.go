package channels

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"github.com/coinsentry/coinsentry/internal/delivery"
	"github.com/coinsentry/coinsentry/internal/types"
)

// EmailConfig addresses the SMTP relay.
type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
}

func (c EmailConfig) complete() bool {
	return c.Host != "" && c.Port != 0 && c.From != "" && len(c.To) > 0
}

// sendMailFunc matches smtp.SendMail. Injected for testing.
type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Email delivers notifications through an SMTP relay.
type Email struct {
	logger   *zap.Logger
	cfg      EmailConfig
	sendMail sendMailFunc
}

func NewEmail(logger *zap.Logger, cfg EmailConfig) *Email {
	return &Email{
		logger:   logger.Named("email"),
		cfg:      cfg,
		sendMail: smtp.SendMail,
	}
}

func (e *Email) Name() string       { return "email" }
func (e *Email) IsConfigured() bool { return e.cfg.complete() }

func (e *Email) Send(ctx context.Context, n types.Notification) error {
	if err := ctx.Err(); err != nil {
		return delivery.Retryable(e.Name(), err)
	}

	var auth smtp.Auth
	if e.cfg.Username != "" {
		auth = smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.Host)
	}

	subject := fmt.Sprintf("[%s] project mention: %s",
		strings.ToUpper(string(n.Priority)), n.Mention.Payload.Name)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
		e.cfg.From, strings.Join(e.cfg.To, ", "), subject, renderText(n))

	addr := fmt.Sprintf("%s:%d", e.cfg.Host, e.cfg.Port)
	if err := e.sendMail(addr, auth, e.cfg.From, e.cfg.To, []byte(msg)); err != nil {
		// SMTP failures are connection-level more often than not.
		return delivery.Retryable(e.Name(), err)
	}
	return nil
}
