package handlers

import (
	"net/http"
	"strings"

	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/reconcile"
	"github.com/kevinaaaquil/readersync/verification"
)

type VerificationHandler struct {
	Reconciler *reconcile.Service
	Tokens     *verification.Service
}

type SendCodeRequest struct {
	Email    string           `json:"email"`
	GuestID  string           `json:"guestId,omitempty"`
	Type     models.TokenType `json:"type,omitempty"`
	Metadata map[string]any   `json:"metadata,omitempty"`
}

func (h *VerificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, "Failed to send verification email")
		return
	}
	res, err := h.Reconciler.SendCode(r.Context(), reconcile.SendCodeRequest{
		Email:     req.Email,
		GuestID:   req.GuestID,
		Type:      req.Type,
		Metadata:  req.Metadata,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		respondError(w, r, err, "Failed to send verification email")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Verification code sent successfully",
		"tokenId":   res.TokenID,
		"expiresAt": res.ExpiresAt,
	})
}

type VerifyCodeRequest struct {
	Token         string           `json:"token"`
	Type          models.TokenType `json:"type,omitempty"`
	GuestProgress *snapshotBody    `json:"guestProgress,omitempty"`
}

func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, "Verification failed")
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "Verification code is required")
		return
	}
	snap, err := req.GuestProgress.snapshot()
	if err != nil {
		respondError(w, r, err, "Verification failed")
		return
	}
	res, err := h.Reconciler.VerifyAndReconcile(r.Context(), reconcile.VerifyRequest{
		Code:     req.Token,
		Type:     req.Type,
		Snapshot: snap,
	})
	if err != nil {
		respondError(w, r, err, "Verification failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Email verified successfully",
		"tokenData": res,
	})
}

func (h *VerificationHandler) Check(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, http.StatusBadRequest, "Email is required")
		return
	}
	typ, err := verification.ParseTokenType(r.URL.Query().Get("type"))
	if err != nil {
		respondError(w, r, err, "Failed to check verification status")
		return
	}
	pending, err := h.Tokens.HasPending(r.Context(), email, typ)
	if err != nil {
		respondError(w, r, err, "Failed to check verification status")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"hasPending": pending,
		"email":      email,
		"type":       typ,
	})
}
