package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"time"

	mail "github.com/go-mail/mail/v2"

	"github.com/noah-isme/reimbursement-portal-api/pkg/config"
)

// ErrNotConfigured is returned when SMTP_HOST or SMTP_FROM is empty.
var ErrNotConfigured = errors.New("smtp not configured (SMTP_HOST/SMTP_FROM)")

// Attachment is an in-memory file attached to a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is one outbound HTML email.
type Message struct {
	To          []string
	Subject     string
	HTMLBody    string
	Attachments []Attachment
}

type dialer interface {
	DialAndSend(m ...*mail.Message) error
}

// SMTPMailer delivers messages over SMTP with mandatory STARTTLS.
type SMTPMailer struct {
	from   string
	dialer dialer
}

// NewSMTPMailer builds a mailer from config. An unconfigured mailer is still
// returned; every Send on it fails with ErrNotConfigured.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	if cfg.Host == "" || cfg.From == "" {
		return &SMTPMailer{from: cfg.From}
	}
	port := cfg.Port
	if port == 0 {
		port = 587
	}
	d := mail.NewDialer(cfg.Host, port, cfg.User, cfg.Password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	d.TLSConfig = &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.SkipTLSVerify, //nolint:gosec
	}
	d.Timeout = 30 * time.Second
	return &SMTPMailer{from: cfg.From, dialer: d}
}

// Configured reports whether the mailer can attempt delivery.
func (m *SMTPMailer) Configured() bool {
	return m != nil && m.dialer != nil && m.from != ""
}

// Send delivers msg. It returns before dialing when ctx is already done.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.Configured() {
		return ErrNotConfigured
	}
	if len(msg.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.dialer.DialAndSend(buildMessage(m.from, msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from string, msg Message) *mail.Message {
	out := mail.NewMessage()
	out.SetHeader("From", from)
	out.SetHeader("To", msg.To...)
	out.SetHeader("Subject", msg.Subject)
	out.SetBody("text/html", msg.HTMLBody)

	for _, att := range msg.Attachments {
		data := att.Data
		settings := []mail.FileSetting{
			mail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		}
		if att.ContentType != "" {
			settings = append(settings, mail.SetHeader(map[string][]string{
				"Content-Type": {att.ContentType},
			}))
		}
		out.Attach(att.Filename, settings...)
	}
	return out
}
