// Package client talks to the readersync HTTP API from a reading device.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/progress"
	"github.com/kevinaaaquil/readersync/reconcile"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) SendCode(ctx context.Context, email, guestID string, typ models.TokenType) (*reconcile.SendCodeResult, error) {
	payload := map[string]string{"email": email, "guestId": guestID, "type": string(typ)}
	var res reconcile.SendCodeResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/verification/send", payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) CheckPending(ctx context.Context, email string, typ models.TokenType) (bool, error) {
	q := url.Values{"email": {email}, "type": {string(typ)}}
	var res struct {
		HasPending bool `json:"hasPending"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/verification/check?"+q.Encode(), nil, &res); err != nil {
		return false, err
	}
	return res.HasPending, nil
}

// Verify submits a code together with the device's guest data.
func (c *Client) Verify(ctx context.Context, code string, typ models.TokenType, snap *models.GuestSnapshot) (*reconcile.VerifyResult, error) {
	payload := struct {
		Token         string                `json:"token"`
		Type          models.TokenType      `json:"type,omitempty"`
		GuestProgress *models.GuestSnapshot `json:"guestProgress,omitempty"`
	}{code, typ, normalized(snap)}
	var res struct {
		TokenData reconcile.VerifyResult `json:"tokenData"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/verification/verify", payload, &res); err != nil {
		return nil, err
	}
	return &res.TokenData, nil
}

type SyncRequest struct {
	Email       string                     `json:"email"`
	GuestID     string                     `json:"guestId"`
	Force       bool                       `json:"force,omitempty"`
	Progress    *models.ProgressDocument   `json:"progress,omitempty"`
	Bookmarks   *models.BookmarkCollection `json:"bookmarks,omitempty"`
	Preferences *models.UserPreferences    `json:"preferences,omitempty"`
	DeviceInfo  *models.DeviceInfo         `json:"deviceInfo,omitempty"`
}

func (c *Client) Sync(ctx context.Context, req SyncRequest) (*reconcile.SyncResult, error) {
	if req.Progress != nil {
		doc := progress.Normalize(*req.Progress)
		req.Progress = &doc
	}
	var res struct {
		Data reconcile.SyncResult `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/user-progress/sync", req, &res); err != nil {
		return nil, err
	}
	return &res.Data, nil
}

func (c *Client) Fetch(ctx context.Context, email, guestID string) (*models.UserProgressRecord, error) {
	q := url.Values{"email": {email}, "guestId": {guestID}}
	var res struct {
		Data models.UserProgressRecord `json:"data"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/user-progress/sync?"+q.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return &res.Data, nil
}

// normalized fills nil reading lists, which the server rejects.
func normalized(snap *models.GuestSnapshot) *models.GuestSnapshot {
	if snap == nil || snap.Progress == nil {
		return snap
	}
	out := *snap
	doc := progress.Normalize(*snap.Progress)
	out.Progress = &doc
	return &out
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Message
		if msg == "" {
			msg = resp.Status
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
