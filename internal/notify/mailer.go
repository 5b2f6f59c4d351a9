// Package notify sends outbound email over SMTP.
package notify

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/jordan-wright/email"
	"go.uber.org/zap"

	"github.com/fieldops/taskboard/internal/config"
)

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	FileName    string
	ContentType string
	Content     []byte
}

// Message is one outbound email.
type Message struct {
	To          []string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Mailer delivers messages.
type Mailer interface {
	Send(msg Message) error
}

// NewMailer returns an SMTP mailer, or a mailer that only logs when no relay is configured.
func NewMailer(cfg config.NotificationConfig, logger *zap.Logger) Mailer {
	if !cfg.EmailEnabled() {
		return &logMailer{logger: logger}
	}
	return &smtpMailer{cfg: cfg, logger: logger}
}

type smtpMailer struct {
	cfg    config.NotificationConfig
	logger *zap.Logger
}

// Send delivers msg with STARTTLS.
func (m *smtpMailer) Send(msg Message) error {
	e, err := buildEmail(m.cfg.EmailFrom, msg)
	if err != nil {
		return err
	}

	var auth smtp.Auth
	if m.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUsername, m.cfg.SMTPPassword, m.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	if err := e.SendWithStartTLS(addr, auth, &tls.Config{ServerName: m.cfg.SMTPHost}); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	m.logger.Debug("email sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
	return nil
}

func buildEmail(from string, msg Message) (*email.Email, error) {
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		if addr = strings.TrimSpace(addr); addr != "" {
			to = append(to, addr)
		}
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("email %q has no recipients", msg.Subject)
	}

	e := email.NewEmail()
	e.From = from
	e.To = to
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	for _, att := range msg.Attachments {
		if _, err := e.Attach(bytes.NewReader(att.Content), att.FileName, att.ContentType); err != nil {
			return nil, fmt.Errorf("attach %s: %w", att.FileName, err)
		}
	}
	return e, nil
}

type logMailer struct {
	logger *zap.Logger
}

func (m *logMailer) Send(msg Message) error {
	m.logger.Info("email skipped, smtp not configured",
		zap.Strings("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("attachments", len(msg.Attachments)))
	return nil
}
