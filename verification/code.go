package verification

import (
	"crypto/rand"
	"math/big"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/kevinaaaquil/readersync/models"
)

const CodeLength = 6

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	codePattern  = regexp.MustCompile(`^[0-9]{6}$`)
)

// NormalizeEmail lowercases and trims email and checks its shape.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	if !emailPattern.MatchString(email) {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// ValidCode reports whether code has the shape of a verification code.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// ParseTokenType maps a request value to a token type. Empty means progress-backup.
func ParseTokenType(v string) (models.TokenType, error) {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return models.TokenProgressBackup, nil
	}
	for _, t := range models.TokenTypes {
		if string(t) == v {
			return t, nil
		}
	}
	return "", ErrInvalidTokenType
}

// ExpiryFor is how long a token of type t stays valid.
func ExpiryFor(t models.TokenType) time.Duration {
	if t == models.TokenPasswordReset {
		return time.Hour
	}
	return 24 * time.Hour
}

var landingPaths = map[models.TokenType]string{
	models.TokenEmailVerification: "/verify-email",
	models.TokenPasswordReset:     "/reset-password",
	models.TokenProgressBackup:    "/restore-progress",
	models.TokenAccountRecovery:   "/recover-account",
}

// VerificationURL builds the link included in verification emails. It returns
// "" when baseURL is empty.
func VerificationURL(baseURL string, tok *models.VerificationToken) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("code", tok.Code)
	q.Set("email", tok.Email)
	q.Set("type", string(tok.Type))
	return baseURL + landingPaths[tok.Type] + "?" + q.Encode()
}

func generateNumericCode(length int) (string, error) {
	if length <= 0 {
		length = CodeLength
	}
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// MaskEmail hides most of the local part for logging.
func MaskEmail(email string) string {
	email = strings.TrimSpace(strings.ToLower(email))
	local, domain, ok := strings.Cut(email, "@")
	if !ok {
		return "***"
	}
	switch len(local) {
	case 0:
		return "***@" + domain
	case 1, 2:
		return local[:1] + "***@" + domain
	default:
		return local[:1] + "***" + local[len(local)-1:] + "@" + domain
	}
}
