package handlers

import (
	"net/http"

	"github.com/kevinaaaquil/readersync/reconcile"
)

type ProgressHandler struct {
	Reconciler *reconcile.Service
}

type SyncRequest struct {
	Email   string `json:"email"`
	GuestID string `json:"guestId"`
	Force   bool   `json:"force,omitempty"`
	snapshotBody
}

func (h *ProgressHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, "Failed to sync progress")
		return
	}
	snap, err := req.snapshot()
	if err != nil {
		respondError(w, r, err, "Failed to sync progress")
		return
	}
	res, err := h.Reconciler.Sync(r.Context(), reconcile.SyncRequest{
		Email:       req.Email,
		GuestID:     req.GuestID,
		Progress:    snap.Progress,
		Bookmarks:   snap.Bookmarks,
		Preferences: snap.Preferences,
		DeviceInfo:  snap.DeviceInfo,
		Force:       req.Force,
	})
	if err != nil {
		respondError(w, r, err, "Failed to sync progress")
		return
	}
	message := "Progress synced successfully"
	if res.Stats.Action == reconcile.ActionCreated {
		message = "Progress record created successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message, "data": res})
}

func (h *ProgressHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rec, err := h.Reconciler.Fetch(r.Context(), q.Get("email"), q.Get("guestId"))
	if err != nil {
		respondError(w, r, err, "Failed to fetch progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": rec})
}
