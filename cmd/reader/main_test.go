package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/readersync/client"
	"github.com/kevinaaaquil/readersync/handlers"
	"github.com/kevinaaaquil/readersync/localstore"
	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/reconcile"
	"github.com/kevinaaaquil/readersync/store"
	"github.com/kevinaaaquil/readersync/verification"
)

type mailbox struct {
	mu   sync.Mutex
	last string
}

func (m *mailbox) SendCode(_ context.Context, tok *models.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = tok.Code
	return nil
}

func (m *mailbox) code() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func newServer(t *testing.T) (*httptest.Server, *mailbox) {
	t.Helper()
	mem := store.NewMemory()
	tokens := verification.NewService(mem)
	box := &mailbox{}
	rec := reconcile.New(reconcile.Config{Records: mem, Tokens: tokens, Notifier: box})
	vh := &handlers.VerificationHandler{Reconciler: rec, Tokens: tokens}
	ph := &handlers.ProgressHandler{Reconciler: rec}

	r := chi.NewRouter()
	r.Post("/api/verification/send", vh.Send)
	r.Post("/api/verification/verify", vh.Verify)
	r.Post("/api/user-progress/sync", ph.Sync)
	r.Get("/api/user-progress/sync", ph.Fetch)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, box
}

func newDevice(srv *httptest.Server) (*app, *bytes.Buffer) {
	out := &bytes.Buffer{}
	return &app{store: localstore.NewMemory(), api: client.New(srv.URL), stdout: out}, out
}

func mustRun(t *testing.T, a *app, args ...string) {
	t.Helper()
	if err := a.run(context.Background(), args[0], args[1:]); err != nil {
		t.Fatalf("reader %s: %v", strings.Join(args, " "), err)
	}
}

func TestBackupThenRecoverOnSecondDevice(t *testing.T) {
	srv, box := newServer(t)
	ctx := context.Background()

	phone, _ := newDevice(srv)
	mustRun(t, phone, "read", "-book", "1", "-chapter", "5", "-minutes", "30")
	mustRun(t, phone, "bookmark", "-book", "1", "-text", "favourite scene")
	mustRun(t, phone, "connect", "-email", "reader@example.com")
	mustRun(t, phone, "verify", "-code", box.code())

	laptop, out := newDevice(srv)
	mustRun(t, laptop, "read", "-book", "2", "-chapter", "1", "-minutes", "5", "-done")
	mustRun(t, laptop, "recover", "-email", "reader@example.com")
	mustRun(t, laptop, "verify", "-code", box.code(), "-type", string(models.TokenAccountRecovery))

	state, err := laptop.store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if state.Email != "reader@example.com" {
		t.Fatalf("email not linked: %+v", state)
	}
	if state.Progress.Books["1"].CurrentChapter != 5 || !state.Progress.Books["2"].Completed {
		t.Fatalf("recovered progress incomplete: %+v", state.Progress.Books)
	}
	if len(state.Bookmarks.Bookmarks) != 1 || state.Bookmarks.Bookmarks[0].Title != "favourite scene" {
		t.Fatalf("bookmarks not restored: %+v", state.Bookmarks)
	}
	if !strings.Contains(out.String(), "(updated)") {
		t.Fatalf("unexpected output: %s", out.String())
	}

	mustRun(t, laptop, "sync")
	mustRun(t, laptop, "status")
	if !strings.Contains(out.String(), "2 (1 reading, 1 completed)") {
		t.Fatalf("status output: %s", out.String())
	}
}

func TestSyncNeedsLinkedEmail(t *testing.T) {
	srv, _ := newServer(t)
	device, _ := newDevice(srv)
	if err := device.run(context.Background(), "sync", nil); err == nil {
		t.Fatalf("expected error without email")
	}
}

func TestUnknownCommand(t *testing.T) {
	srv, _ := newServer(t)
	device, _ := newDevice(srv)
	if err := device.run(context.Background(), "teleport", nil); err == nil {
		t.Fatalf("expected error")
	}
}
