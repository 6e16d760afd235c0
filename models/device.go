package models

import "time"

// DeviceState is everything a reading device keeps locally between runs.
type DeviceState struct {
	GuestID     string             `json:"guestId"`
	Email       string             `json:"email,omitempty"`
	Platform    string             `json:"platform"`
	Progress    ProgressDocument   `json:"progress"`
	Bookmarks   BookmarkCollection `json:"bookmarks"`
	Preferences UserPreferences    `json:"preferences"`
	CreatedAt   time.Time          `json:"createdAt"`
	LastSyncAt  *time.Time         `json:"lastSyncAt,omitempty"`
}
