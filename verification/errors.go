package verification

import "errors"

var (
	ErrEmailRequired    = errors.New("email is required")
	ErrInvalidEmail     = errors.New("email format is invalid")
	ErrInvalidCode      = errors.New("verification code must be 6 digits")
	ErrInvalidTokenType = errors.New("invalid verification type")

	// ErrNotFoundOrExpired covers wrong, expired and already used codes alike.
	// Callers must not tell end users which one it was.
	ErrNotFoundOrExpired = errors.New("invalid or expired verification code")

	ErrTokenCreation = errors.New("failed to create verification token")
)

// IsValidation reports whether err was caused by malformed caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmailRequired) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrInvalidTokenType)
}
