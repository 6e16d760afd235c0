package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/reconcile"
)

func TestVerifySendsNormalizedSnapshot(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/verification/verify" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		var snap map[string]map[string]json.RawMessage
		_ = json.Unmarshal(body["guestProgress"], &snap)
		if string(snap["progress"]["completed"]) != "[]" {
			t.Errorf("completed should be an empty array, got %s", snap["progress"]["completed"])
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"tokenData":{"email":"reader@example.com","type":"account-recovery","syncStats":{"booksCount":2,"bookmarksCount":0,"action":"updated"}}}`))
	}))
	defer srv.Close()

	doc := models.ProgressDocument{Books: map[string]models.BookProgress{}}
	res, err := New(srv.URL+"/").Verify(context.Background(), "123456", models.TokenAccountRecovery, &models.GuestSnapshot{Progress: &doc})
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.Email != "reader@example.com" || res.Stats == nil || res.Stats.Action != reconcile.ActionUpdated {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestAPIErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"invalid or expired verification code"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL).Verify(context.Background(), "000000", "", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadRequest || apiErr.Message != "invalid or expired verification code" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSendCheckSyncFetch(t *testing.T) {
	expires := time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/verification/send", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "tokenId": "tok-1", "expiresAt": expires})
	})
	mux.HandleFunc("/api/verification/check", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") != "reader@example.com" {
			t.Errorf("missing email query")
		}
		_, _ = w.Write([]byte(`{"success":true,"hasPending":true}`))
	})
	mux.HandleFunc("/api/user-progress/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = w.Write([]byte(`{"success":true,"data":{"email":"reader@example.com","guestId":"g1","verified":true}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"abc","email":"reader@example.com","syncStats":{"booksCount":1,"bookmarksCount":0,"action":"created"}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL)
	ctx := context.Background()
	sent, err := c.SendCode(ctx, "reader@example.com", "g1", models.TokenProgressBackup)
	if err != nil || sent.TokenID != "tok-1" || !sent.ExpiresAt.Equal(expires) {
		t.Fatalf("send: %+v %v", sent, err)
	}
	pending, err := c.CheckPending(ctx, "reader@example.com", "")
	if err != nil || !pending {
		t.Fatalf("check: %v %v", pending, err)
	}
	synced, err := c.Sync(ctx, SyncRequest{Email: "reader@example.com", GuestID: "g1"})
	if err != nil || synced.Stats.Action != reconcile.ActionCreated {
		t.Fatalf("sync: %+v %v", synced, err)
	}
	rec, err := c.Fetch(ctx, "reader@example.com", "g1")
	if err != nil || !rec.Verified {
		t.Fatalf("fetch: %+v %v", rec, err)
	}
}
