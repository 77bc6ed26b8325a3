// Package mailer sends transactional email. Production wiring uses the
// SMTP implementation; local development runs with the log-only one.
package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer delivers a single plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig holds the connection settings for an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay using PLAIN auth.
type SMTPMailer struct {
	config SMTPConfig
	logger *slog.Logger

	// sendMail is swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer creates a Mailer backed by the configured SMTP relay.
func NewSMTPMailer(config SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if logger == nil {
		logger = slog.Default()
	}

	return &SMTPMailer{
		config:   config,
		logger:   logger.With(slog.String("component", "smtp_mailer")),
		sendMail: smtp.SendMail,
	}
}

var _ Mailer = (*SMTPMailer)(nil)

// Send implements Mailer.Send.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	msg.WriteString("From: " + m.config.From + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)

	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if err := m.sendMail(addr, auth, m.config.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}

	m.logger.Debug("mail sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// LogMailer writes messages to the log instead of delivering them.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a Mailer that only logs.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogMailer{logger: logger.With(slog.String("component", "log_mailer"))}
}

var _ Mailer = (*LogMailer)(nil)

// Send implements Mailer.Send.
func (m *LogMailer) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.logger.Info("mail (not delivered, log mailer active)",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.String("body", body))
	return nil
}
