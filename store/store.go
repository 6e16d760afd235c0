package store

import (
	"context"
	"errors"
	"time"

	"github.com/kevinaaaquil/readersync/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrConflict is returned by ReplaceProgress when the record changed since it was read.
	ErrConflict = errors.New("store: record was modified concurrently")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Find methods return nil, nil when nothing matches.

// RecordStore persists one UserProgressRecord per email.
type RecordStore interface {
	FindProgressByEmail(ctx context.Context, email string) (*models.UserProgressRecord, error)
	FindProgressByGuest(ctx context.Context, guestID string) (*models.UserProgressRecord, error)
	// FindProgressByEmailOrGuest prefers a record matching email over one matching guestID.
	FindProgressByEmailOrGuest(ctx context.Context, email, guestID string) (*models.UserProgressRecord, error)
	// CreateProgress assigns ID and sets Revision to 1.
	CreateProgress(ctx context.Context, rec *models.UserProgressRecord) error
	// ReplaceProgress writes rec only if the stored revision equals rec.Revision,
	// then increments rec.Revision.
	ReplaceProgress(ctx context.Context, rec *models.UserProgressRecord) error
	DeleteProgress(ctx context.Context, id primitive.ObjectID) error
}

// TokenStore persists verification tokens. At most one unused token may exist
// per code and per (email, type); InsertToken returns ErrDuplicate otherwise.
type TokenStore interface {
	FindActiveToken(ctx context.Context, email string, typ models.TokenType, now time.Time) (*models.VerificationToken, error)
	// PurgeStaleTokens removes expired unused tokens for the pair so a new one can be inserted.
	PurgeStaleTokens(ctx context.Context, email string, typ models.TokenType, now time.Time) error
	InsertToken(ctx context.Context, tok *models.VerificationToken) error
	// ConsumeToken atomically marks a matching unused, unexpired token as used.
	ConsumeToken(ctx context.Context, code string, typ models.TokenType, now time.Time) (*models.VerificationToken, error)
	// RecordTokenAttempt bumps the attempt counter of the newest token with code.
	RecordTokenAttempt(ctx context.Context, code string, now time.Time) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
	TokenStats(ctx context.Context, now time.Time) (models.TokenStatistics, error)
}

type EmailLogStore interface {
	InsertEmailLog(ctx context.Context, log *models.EmailLog) error
}

type BackupStore interface {
	InsertBackup(ctx context.Context, b *models.UserBackup) error
	// BackupsByEmail returns backups newest first.
	BackupsByEmail(ctx context.Context, email string) ([]models.UserBackup, error)
	BackupByID(ctx context.Context, id primitive.ObjectID) (*models.UserBackup, error)
	DeleteBackup(ctx context.Context, id primitive.ObjectID) error
}

type UserStore interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) (primitive.ObjectID, error)
}
