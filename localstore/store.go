// Package localstore keeps a reading device's state between runs. One backend
// is picked by configuration through Open; there is no fallback between them.
package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/progress"
)

const (
	KindSQLite = "sqlite"
	KindFile   = "file"
	KindMemory = "memory"
)

var ErrUnknownKind = errors.New("unknown local store kind")

type Store interface {
	// Load returns the saved state, or a new state with a fresh guest id that
	// has already been saved.
	Load(ctx context.Context) (*models.DeviceState, error)
	Save(ctx context.Context, state *models.DeviceState) error
	Close() error
}

func Open(kind, path string) (Store, error) {
	switch kind {
	case KindSQLite:
		return OpenSQLite(path)
	case KindFile:
		return NewFileStore(path)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// NewState is the state of a device that has never saved anything.
func NewState(platform string) *models.DeviceState {
	return &models.DeviceState{
		GuestID:     "guest_" + uuid.NewString(),
		Platform:    platform,
		Progress:    progress.NewDocument(),
		Bookmarks:   progress.DefaultBookmarks(),
		Preferences: progress.DefaultPreferences(),
		CreatedAt:   time.Now().UTC(),
	}
}

func encodeState(state *models.DeviceState) ([]byte, error) {
	if state == nil || state.GuestID == "" {
		return nil, errors.New("device state needs a guest id")
	}
	return json.Marshal(state)
}

func decodeState(data []byte) (*models.DeviceState, error) {
	var state models.DeviceState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode device state: %w", err)
	}
	state.Progress = progress.Normalize(state.Progress)
	bookmarks, err := progress.NormalizeBookmarks(state.Bookmarks)
	if err != nil {
		return nil, err
	}
	state.Bookmarks = bookmarks
	return &state, nil
}

// loadOrInit decodes data, or creates and saves a new state when data is empty.
func loadOrInit(ctx context.Context, s Store, data []byte) (*models.DeviceState, error) {
	if len(data) > 0 {
		return decodeState(data)
	}
	state := NewState(models.PlatformCLI)
	if err := s.Save(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}
