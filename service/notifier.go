package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/store"
	"github.com/kevinaaaquil/readersync/verification"
)

// CodeNotifier emails verification codes and records each attempt in the
// email log.
type CodeNotifier struct {
	Mailer  Mailer
	Logs    store.EmailLogStore // optional
	Brand   string
	BaseURL string        // public site used for the email's link; optional
	Timeout time.Duration // per send; defaults to 15s
	// DevMode logs the code itself. Only for local development.
	DevMode bool
}

func (n *CodeNotifier) SendCode(ctx context.Context, tok *models.VerificationToken) error {
	brand := n.Brand
	if brand == "" {
		brand = "Books"
	}
	subject := emailSubject(brand, tok.Type)
	if n.DevMode {
		slog.Info("verification code", "email", tok.Email, "type", tok.Type, "code", tok.Code)
	}

	title, description := emailCopy(tok.Type)
	body, err := renderCodeEmail(codeEmail{
		Brand:       brand,
		Title:       title,
		Description: description,
		Code:        tok.Code,
		Link:        verification.VerificationURL(n.BaseURL, tok),
		ExpiresIn:   humanDuration(verification.ExpiryFor(tok.Type)),
	})
	if err != nil {
		return err
	}

	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sendErr := n.Mailer.Send(sendCtx, tok.Email, subject, body)

	if n.Logs != nil {
		entry := &models.EmailLog{
			ToEmail:   tok.Email,
			Purpose:   tok.Type,
			Subject:   subject,
			Transport: n.Mailer.Transport(),
			Delivered: sendErr == nil,
			SentAt:    time.Now().UTC(),
		}
		if sendErr != nil {
			entry.Error = sendErr.Error()
		}
		if err := n.Logs.InsertEmailLog(context.WithoutCancel(ctx), entry); err != nil {
			slog.Warn("insert email log failed", "error", err)
		}
	}
	return sendErr
}
