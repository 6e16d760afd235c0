package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kevinaaaquil/readersync/middleware"
	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/store"
	"golang.org/x/crypto/bcrypt"
)

const tokenIssuer = "readersync"

// AuthHandler issues operator JWTs for the admin routes.
type AuthHandler struct {
	Users     store.UserStore
	JWTSecret string
	// Predefined credentials (from config); used if no user exists yet
	DefaultEmail string
	DefaultPass  string
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	Email   string `json:"email"`
	Role    string `json:"role"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.Users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		respondError(w, r, err, "login failed")
		return
	}
	if user == nil {
		if !h.isDefaultLogin(req.Email, req.Password) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		user, err = h.ensureDefaultUser(r)
		if err != nil {
			respondError(w, r, err, "login failed")
			return
		}
	} else if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := h.createToken(user)
	if err != nil {
		respondError(w, r, err, "could not create token")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token, Email: user.Email, Role: user.Role})
}

// ensureDefaultUser seeds the configured operator account as an admin.
func (h *AuthHandler) ensureDefaultUser(r *http.Request) (*models.User, error) {
	email := strings.ToLower(h.DefaultEmail)
	user, err := h.Users.UserByEmail(r.Context(), email)
	if err != nil || user != nil {
		return user, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(h.DefaultPass), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	newUser := &models.User{
		Email:     email,
		Password:  string(hash),
		Role:      models.RoleAdmin,
		CreatedAt: time.Now().UTC(),
	}
	id, err := h.Users.CreateUser(r.Context(), newUser)
	if errors.Is(err, store.ErrDuplicate) {
		// another login seeded it first
		return h.Users.UserByEmail(r.Context(), email)
	}
	if err != nil {
		return nil, err
	}
	newUser.ID = id
	return newUser, nil
}

func (h *AuthHandler) isDefaultLogin(email, password string) bool {
	if h.DefaultEmail == "" || h.DefaultPass == "" {
		return false
	}
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(strings.ToLower(h.DefaultEmail)))
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(h.DefaultPass))
	return emailOK&passOK == 1
}

func (h *AuthHandler) createToken(user *models.User) (string, error) {
	now := time.Now()
	claims := &middleware.Claims{
		UserID: user.ID.Hex(),
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(h.JWTSecret))
}
