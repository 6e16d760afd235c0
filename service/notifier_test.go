package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/store"
)

type recordingMailer struct {
	to, subject, body string
	err               error
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.to, m.subject, m.body = to, subject, body
	return m.err
}

func (m *recordingMailer) Transport() string { return "test" }

func TestCodeNotifierSendsAndLogs(t *testing.T) {
	mailer := &recordingMailer{}
	logs := store.NewMemory()
	n := &CodeNotifier{Mailer: mailer, Logs: logs, Brand: "Life Force Books", BaseURL: "https://books.example.com"}
	tok := &models.VerificationToken{Code: "482913", Email: "reader@example.com", Type: models.TokenAccountRecovery}

	if err := n.SendCode(context.Background(), tok); err != nil {
		t.Fatalf("send: %v", err)
	}
	if mailer.to != "reader@example.com" || mailer.subject != "Recover Your Progress - Life Force Books" {
		t.Fatalf("unexpected envelope: to=%q subject=%q", mailer.to, mailer.subject)
	}
	if !strings.Contains(mailer.body, "482913") || !strings.Contains(mailer.body, "24 hours") {
		t.Fatalf("body missing code or expiry: %s", mailer.body)
	}
	if !strings.Contains(mailer.body, "https://books.example.com/recover-account?") {
		t.Fatalf("body missing link")
	}
	entries := logs.EmailLogs()
	if len(entries) != 1 || !entries[0].Delivered || entries[0].Transport != "test" {
		t.Fatalf("unexpected email log: %+v", entries)
	}
}

func TestCodeNotifierRecordsFailure(t *testing.T) {
	mailer := &recordingMailer{err: errors.New("smtp down")}
	logs := store.NewMemory()
	n := &CodeNotifier{Mailer: mailer, Logs: logs}
	tok := &models.VerificationToken{Code: "111111", Email: "a@example.com", Type: models.TokenPasswordReset}

	if err := n.SendCode(context.Background(), tok); err == nil {
		t.Fatalf("expected delivery error")
	}
	if !strings.Contains(mailer.body, "1 hour") {
		t.Fatalf("password reset email should mention 1 hour expiry")
	}
	entries := logs.EmailLogs()
	if len(entries) != 1 || entries[0].Delivered || entries[0].Error != "smtp down" {
		t.Fatalf("failure not logged: %+v", entries)
	}
}

func TestLogMailerNeverFails(t *testing.T) {
	if err := (LogMailer{}).Send(context.Background(), "a@example.com", "s", "b"); err != nil {
		t.Fatalf("log mailer returned %v", err)
	}
}
