package service

import (
	"context"
	"log/slog"

	mail "github.com/go-mail/mail/v2"
	"github.com/kevinaaaquil/readersync/verification"
)

// Mailer sends a single HTML email.
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
	Transport() string
}

type SMTPMailer struct {
	dialer *mail.Dialer
	from   string
}

func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	d := mail.NewDialer(host, port, username, password)
	d.StartTLSPolicy = mail.MandatoryStartTLS
	if from == "" {
		from = username
	}
	return &SMTPMailer{dialer: d, from: from}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := mail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)

	done := make(chan error, 1)
	go func() { done <- m.dialer.DialAndSend(msg) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *SMTPMailer) Transport() string { return "smtp" }

// LogMailer stands in for SMTP in development. It writes the message summary
// to the log instead of sending it.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	slog.Info("email not sent, smtp not configured", "to", verification.MaskEmail(to), "subject", subject)
	return nil
}

func (LogMailer) Transport() string { return "log" }
