package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kevinaaaquil/readersync/middleware"
	"github.com/kevinaaaquil/readersync/service"
	"github.com/kevinaaaquil/readersync/verification"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AdminHandler struct {
	Tokens  *verification.Service
	Backups *service.BackupService // nil when no bucket is configured
}

func (h *AdminHandler) TokenStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Tokens.Statistics(r.Context())
	if err != nil {
		respondError(w, r, err, "Failed to load token statistics")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": stats})
}

func (h *AdminHandler) CleanupTokens(w http.ResponseWriter, r *http.Request) {
	n, err := h.Tokens.CleanupExpired(r.Context())
	if err != nil {
		respondError(w, r, err, "Failed to clean up tokens")
		return
	}
	slog.Info("expired tokens removed", "deleted", n, "operator", operator(r))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": n})
}

func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	if h.Backups == nil {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}
	email, err := verification.NormalizeEmail(r.URL.Query().Get("email"))
	if err != nil {
		respondError(w, r, err, "Failed to list backups")
		return
	}
	list, err := h.Backups.List(r.Context(), email)
	if err != nil {
		respondError(w, r, err, "Failed to list backups")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list})
}

func (h *AdminHandler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	if h.Backups == nil {
		writeError(w, http.StatusServiceUnavailable, "backups not configured")
		return
	}
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid backup id")
		return
	}
	url, err := h.Backups.DownloadURL(r.Context(), id)
	if errors.Is(err, service.ErrBackupNotFound) {
		writeError(w, http.StatusNotFound, "backup not found")
		return
	}
	if err != nil {
		respondError(w, r, err, "Failed to generate download url")
		return
	}
	slog.Info("backup download issued", "backup_id", id.Hex(), "operator", operator(r))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "url": url})
}

// operator names the admin behind a request for audit log lines.
func operator(r *http.Request) string {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return ""
	}
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok && claims.Email != "" {
		return claims.Email
	}
	return id.Hex()
}
