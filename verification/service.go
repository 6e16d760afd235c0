// Package verification manages single-use email verification codes.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/store"
)

// maxCreateAttempts bounds retries after a code collision or a lost insert race.
const maxCreateAttempts = 5

type Service struct {
	tokens store.TokenStore
	now    func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(tokens store.TokenStore, opts ...Option) *Service {
	s := &Service{tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateRequest struct {
	Email     string
	Type      models.TokenType
	GuestID   string
	Metadata  map[string]any
	IPAddress string
	UserAgent string
}

// CreateToken returns the pending token for (email, type) when one is still
// valid, otherwise it stores a new one.
func (s *Service) CreateToken(ctx context.Context, req CreateRequest) (*models.VerificationToken, error) {
	email, err := NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	typ, err := ParseTokenType(string(req.Type))
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxCreateAttempts; attempt++ {
		now := s.now().UTC()
		existing, err := s.tokens.FindActiveToken(ctx, email, typ, now)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTokenCreation, err)
		}
		if existing != nil {
			return existing, nil
		}
		if err := s.tokens.PurgeStaleTokens(ctx, email, typ, now); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTokenCreation, err)
		}

		code, err := generateNumericCode(CodeLength)
		if err != nil {
			return nil, fmt.Errorf("%w: generate code: %w", ErrTokenCreation, err)
		}
		tok := &models.VerificationToken{
			Token:     uuid.New().String(),
			Code:      code,
			Email:     email,
			Type:      typ,
			GuestID:   strings.TrimSpace(req.GuestID),
			ExpiresAt: now.Add(ExpiryFor(typ)),
			Metadata:  req.Metadata,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
			CreatedAt: now,
		}
		err = s.tokens.InsertToken(ctx, tok)
		if err == nil {
			slog.Debug("verification token created", "email", MaskEmail(email), "type", typ, "expires_at", tok.ExpiresAt)
			return tok, nil
		}
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %w", ErrTokenCreation, err)
		}
	}
	return nil, fmt.Errorf("%w: no unique code after %d attempts", ErrTokenCreation, maxCreateAttempts)
}

// VerifyToken consumes the token matching code and typ. Codes that are not six
// digits fail with ErrInvalidCode without touching the store.
func (s *Service) VerifyToken(ctx context.Context, code string, typ models.TokenType) (*models.VerificationToken, error) {
	code = strings.TrimSpace(code)
	if !ValidCode(code) {
		return nil, ErrInvalidCode
	}
	typ, err := ParseTokenType(string(typ))
	if err != nil {
		return nil, err
	}
	tok, err := s.tokens.ConsumeToken(ctx, code, typ, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("consume token: %w", err)
	}
	if tok == nil {
		return nil, ErrNotFoundOrExpired
	}
	return tok, nil
}

// RecordFailedAttempt notes a failed verification against code for abuse
// monitoring. It does not change whether the code can still be used.
func (s *Service) RecordFailedAttempt(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}
	return s.tokens.RecordTokenAttempt(ctx, code, s.now().UTC())
}

// HasPending reports whether an unused, unexpired token exists for the pair.
func (s *Service) HasPending(ctx context.Context, email string, typ models.TokenType) (bool, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return false, err
	}
	typ, err = ParseTokenType(string(typ))
	if err != nil {
		return false, err
	}
	tok, err := s.tokens.FindActiveToken(ctx, email, typ, s.now().UTC())
	if err != nil {
		return false, err
	}
	return tok != nil, nil
}

// CleanupExpired deletes expired tokens. Verification never depends on it.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpiredTokens(ctx, s.now().UTC())
}

func (s *Service) Statistics(ctx context.Context) (models.TokenStatistics, error) {
	return s.tokens.TokenStats(ctx, s.now().UTC())
}

// RunCleanup calls CleanupExpired every interval until ctx is done.
func (s *Service) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.CleanupExpired(ctx)
			if err != nil {
				slog.Error("token cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("expired tokens removed", "count", n)
			}
		}
	}
}
