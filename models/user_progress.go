package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SyncType string

const (
	SyncFull        SyncType = "full"
	SyncProgress    SyncType = "progress"
	SyncPreferences SyncType = "preferences"
	SyncBookmarks   SyncType = "bookmarks"
	SyncBackup      SyncType = "backup"
	SyncRecovery    SyncType = "recovery"
)

// MaxSyncHistory bounds UserProgressRecord.SyncHistory; older entries are dropped.
const MaxSyncHistory = 10

type SyncEntry struct {
	SyncedAt time.Time `bson:"syncedAt" json:"syncedAt"`
	SyncType SyncType  `bson:"syncType" json:"syncType"`
	DeviceID string    `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	DataSize int       `bson:"dataSize" json:"dataSize"`
}

const (
	PlatformWeb     = "web"
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformCLI     = "cli"
)

type DeviceInfo struct {
	Platform   string `bson:"platform,omitempty" json:"platform,omitempty"`
	AppVersion string `bson:"appVersion,omitempty" json:"appVersion,omitempty"`
	DeviceID   string `bson:"deviceId,omitempty" json:"deviceId,omitempty"`
	UserAgent  string `bson:"userAgent,omitempty" json:"userAgent,omitempty"`
}

// UserProgressRecord is the server-side copy of a reader's state, keyed by email.
// Revision increases on every successful write and guards concurrent updates.
type UserProgressRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email          string             `bson:"email" json:"email"`
	GuestID        string             `bson:"guestId" json:"guestId"`
	Verified       bool               `bson:"verified" json:"verified"`
	VerifiedAt     *time.Time         `bson:"verifiedAt,omitempty" json:"verifiedAt,omitempty"`
	Progress       ProgressDocument   `bson:"progress" json:"progress"`
	Bookmarks      BookmarkCollection `bson:"bookmarks" json:"bookmarks"`
	Preferences    UserPreferences    `bson:"preferences" json:"preferences"`
	DeviceInfo     DeviceInfo         `bson:"deviceInfo" json:"deviceInfo"`
	Statistics     Statistics         `bson:"statistics" json:"statistics"`
	SyncHistory    []SyncEntry        `bson:"syncHistory" json:"syncHistory"`
	LastSyncAt     time.Time          `bson:"lastSyncAt" json:"lastSyncAt"`
	LastActivityAt time.Time          `bson:"lastActivityAt" json:"lastActivityAt"`
	IsActive       bool               `bson:"isActive" json:"isActive"`
	Revision       int64              `bson:"revision" json:"revision"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AppendSync records a sync event, keeping at most MaxSyncHistory entries.
func (r *UserProgressRecord) AppendSync(e SyncEntry) {
	history := make([]SyncEntry, 0, len(r.SyncHistory)+1)
	history = append(append(history, r.SyncHistory...), e)
	if len(history) > MaxSyncHistory {
		history = history[len(history)-MaxSyncHistory:]
	}
	r.SyncHistory = history
	r.LastSyncAt = e.SyncedAt
}

// GuestSnapshot is the local data a device submits when it proves email ownership.
type GuestSnapshot struct {
	Progress    *ProgressDocument   `json:"progress,omitempty"`
	Bookmarks   *BookmarkCollection `json:"bookmarks,omitempty"`
	Preferences *UserPreferences    `json:"preferences,omitempty"`
	DeviceInfo  *DeviceInfo         `json:"deviceInfo,omitempty"`
}
