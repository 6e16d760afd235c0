package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrBackupNotFound = errors.New("backup not found")

// ObjectStorage is what BackupService needs from S3Archive.
type ObjectStorage interface {
	PutJSON(ctx context.Context, key string, body []byte, meta map[string]string) error
	Delete(ctx context.Context, key string) error
	PresignDownload(ctx context.Context, key string, expiry time.Duration, filename string) (string, error)
}

// BackupService archives JSON snapshots of progress records after each
// reconciliation and keeps the newest Retention per email.
type BackupService struct {
	Objects   ObjectStorage
	Backups   store.BackupStore
	Retention int
}

type backupSnapshot struct {
	Email       string                    `json:"email"`
	GuestID     string                    `json:"guestId"`
	Revision    int64                     `json:"revision"`
	SyncType    models.SyncType           `json:"syncType"`
	Progress    models.ProgressDocument   `json:"progress"`
	Bookmarks   models.BookmarkCollection `json:"bookmarks"`
	Preferences models.UserPreferences    `json:"preferences"`
	Statistics  models.Statistics         `json:"statistics"`
	ArchivedAt  time.Time                 `json:"archivedAt"`
}

func (b *BackupService) Archive(ctx context.Context, rec *models.UserProgressRecord, syncType models.SyncType) error {
	now := time.Now().UTC()
	data, err := json.Marshal(backupSnapshot{
		Email:       rec.Email,
		GuestID:     rec.GuestID,
		Revision:    rec.Revision,
		SyncType:    syncType,
		Progress:    rec.Progress,
		Bookmarks:   rec.Bookmarks,
		Preferences: rec.Preferences,
		Statistics:  rec.Statistics,
		ArchivedAt:  now,
	})
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	key := backupKey(rec.Email, now)
	meta := map[string]string{"revision": strconv.FormatInt(rec.Revision, 10), "sync-type": string(syncType)}
	if err := b.Objects.PutJSON(ctx, key, data, meta); err != nil {
		return fmt.Errorf("upload backup: %w", err)
	}
	entry := &models.UserBackup{
		Email:     rec.Email,
		GuestID:   rec.GuestID,
		S3Key:     key,
		SyncType:  syncType,
		Revision:  rec.Revision,
		SizeBytes: int64(len(data)),
		CreatedAt: now,
	}
	if err := b.Backups.InsertBackup(ctx, entry); err != nil {
		_ = b.Objects.Delete(ctx, key)
		return fmt.Errorf("record backup: %w", err)
	}
	b.prune(ctx, rec.Email)
	return nil
}

func (b *BackupService) prune(ctx context.Context, email string) {
	if b.Retention <= 0 {
		return
	}
	all, err := b.Backups.BackupsByEmail(ctx, email)
	if err != nil {
		slog.Warn("list backups for pruning failed", "error", err)
		return
	}
	for i := b.Retention; i < len(all); i++ {
		if err := b.Objects.Delete(ctx, all[i].S3Key); err != nil {
			slog.Warn("delete backup object failed", "key", all[i].S3Key, "error", err)
			continue
		}
		if err := b.Backups.DeleteBackup(ctx, all[i].ID); err != nil {
			slog.Warn("delete backup row failed", "id", all[i].ID.Hex(), "error", err)
		}
	}
}

func (b *BackupService) List(ctx context.Context, email string) ([]models.UserBackup, error) {
	return b.Backups.BackupsByEmail(ctx, email)
}

// DownloadURL presigns a short-lived link to the backup's JSON.
func (b *BackupService) DownloadURL(ctx context.Context, id primitive.ObjectID) (string, error) {
	backup, err := b.Backups.BackupByID(ctx, id)
	if err != nil {
		return "", err
	}
	if backup == nil {
		return "", ErrBackupNotFound
	}
	name := fmt.Sprintf("progress-%s.json", backup.CreatedAt.Format("20060102-150405"))
	return b.Objects.PresignDownload(ctx, backup.S3Key, 15*time.Minute, name)
}

// backupKey keeps raw email addresses out of object keys. Keys sort by
// creation time within one reader's prefix.
func backupKey(email string, at time.Time) string {
	sum := sha256.Sum256([]byte(email))
	return fmt.Sprintf("backups/%s/%s-%s.json", hex.EncodeToString(sum[:8]), at.Format("20060102T150405.000Z"), uuid.NewString()[:8])
}
