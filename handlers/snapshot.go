package handlers

import (
	"encoding/json"

	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/progress"
)

// snapshotBody is the device state as sent over the wire. Progress stays raw
// so its shape can be checked before decoding.
type snapshotBody struct {
	Progress    json.RawMessage            `json:"progress,omitempty"`
	Bookmarks   *models.BookmarkCollection `json:"bookmarks,omitempty"`
	Preferences *models.UserPreferences    `json:"preferences,omitempty"`
	DeviceInfo  *models.DeviceInfo         `json:"deviceInfo,omitempty"`
}

func (b *snapshotBody) snapshot() (*models.GuestSnapshot, error) {
	if b == nil {
		return nil, nil
	}
	snap := &models.GuestSnapshot{
		Bookmarks:   b.Bookmarks,
		Preferences: b.Preferences,
		DeviceInfo:  b.DeviceInfo,
	}
	if len(b.Progress) > 0 && string(b.Progress) != "null" {
		doc, err := progress.DecodeDocument(b.Progress)
		if err != nil {
			return nil, err
		}
		snap.Progress = &doc
	}
	return snap, nil
}
