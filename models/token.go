package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TokenType string

const (
	TokenEmailVerification TokenType = "email-verification"
	TokenPasswordReset     TokenType = "password-reset"
	TokenProgressBackup    TokenType = "progress-backup"
	TokenAccountRecovery   TokenType = "account-recovery"
)

var TokenTypes = []TokenType{TokenEmailVerification, TokenPasswordReset, TokenProgressBackup, TokenAccountRecovery}

// Reconciles reports whether consuming a token of this type merges guest data
// into the user's progress record.
func (t TokenType) Reconciles() bool {
	return t == TokenProgressBackup || t == TokenAccountRecovery
}

// VerificationToken is a single-use, time-limited proof of email ownership.
// Token is an opaque lookup id; Code is the short numeric secret sent by email.
type VerificationToken struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Token         string             `bson:"token" json:"token"`
	Code          string             `bson:"code" json:"-"`
	Email         string             `bson:"email" json:"email"`
	Type          TokenType          `bson:"type" json:"type"`
	GuestID       string             `bson:"guestId,omitempty" json:"guestId,omitempty"`
	ExpiresAt     time.Time          `bson:"expiresAt" json:"expiresAt"`
	IsUsed        bool               `bson:"isUsed" json:"isUsed"`
	UsedAt        *time.Time         `bson:"usedAt,omitempty" json:"usedAt,omitempty"`
	Attempts      int                `bson:"attempts" json:"attempts"`
	LastAttemptAt *time.Time         `bson:"lastAttemptAt,omitempty" json:"lastAttemptAt,omitempty"`
	Metadata      map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	IPAddress     string             `bson:"ipAddress,omitempty" json:"ipAddress,omitempty"`
	UserAgent     string             `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// Active reports whether the token can still be consumed at now.
func (t *VerificationToken) Active(now time.Time) bool {
	return !t.IsUsed && now.Before(t.ExpiresAt)
}

// TokenStatistics summarises the verification_tokens collection for operators.
type TokenStatistics struct {
	Total   int64               `json:"total"`
	Active  int64               `json:"active"`
	Expired int64               `json:"expired"`
	Used    int64               `json:"used"`
	ByType  map[TokenType]int64 `json:"byType"`
}
