// Package mailer delivers HTML email over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail/v2"
	"go.uber.org/zap"

	"github.com/noah-isme/provider-admission-api/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPSender sends mail through an SMTP relay using mandatory STARTTLS.
type SMTPSender struct {
	dialer dialer
	from   string
}

// NewSMTPSender builds a sender from notification config.
func NewSMTPSender(cfg config.NotificationConfig) (*SMTPSender, error) {
	if cfg.SMTPHost == "" || cfg.From == "" {
		return nil, fmt.Errorf("smtp not configured (SMTP_HOST/SMTP_FROM)")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(cfg.SMTPHost, port, cfg.SMTPUser, cfg.SMTPPass)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.SMTPHost,
		InsecureSkipVerify: cfg.SkipTLSVerify, //nolint:gosec
	}
	return &SMTPSender{dialer: d, from: cfg.From}, nil
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(buildMessage(s.from, msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from string, msg Message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To...)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.HTML)
	return m
}

// LogSender records messages instead of sending them. Used when SMTP is disabled.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("mail has no recipients")
	}
	s.logger.Info("mail delivery skipped (smtp disabled)", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}
