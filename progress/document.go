package progress

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/kevinaaaquil/readersync/models"
)

var (
	ErrInvalidDocument    = errors.New("invalid progress data")
	ErrInvalidPreferences = errors.New("invalid preferences")
	ErrInvalidBookmarks   = errors.New("invalid bookmarks")
)

const DefaultReadingSpeed = 200

func NewDocument() models.ProgressDocument {
	return models.ProgressDocument{
		Books:            map[string]models.BookProgress{},
		CurrentlyReading: []models.BookID{},
		Completed:        []models.BookID{},
	}
}

func DefaultBookmarks() models.BookmarkCollection {
	return models.BookmarkCollection{
		Bookmarks:  []models.Bookmark{},
		Notes:      []models.Note{},
		Highlights: []models.Highlight{},
	}
}

func DefaultPreferences() models.UserPreferences {
	return models.UserPreferences{
		Theme:        models.ThemeLight,
		FontSize:     models.FontMedium,
		FontFamily:   "default",
		ReadingSpeed: DefaultReadingSpeed,
		Notifications: models.NotificationPreferences{
			Email:        true,
			Reminders:    false,
			NewBooks:     true,
			Achievements: true,
		},
		Privacy: models.PrivacyPreferences{
			ShareProgress: false,
			PublicProfile: false,
		},
	}
}

// DecodeDocument parses a progress document received from a caller. The books
// map and both reading lists must be present; the result is validated and
// normalized.
func DecodeDocument(raw []byte) (models.ProgressDocument, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(raw, &shape); err != nil {
		return models.ProgressDocument{}, fmt.Errorf("%w: progress must be an object", ErrInvalidDocument)
	}
	if err := requireKind(shape, "books", '{'); err != nil {
		return models.ProgressDocument{}, err
	}
	for _, key := range []string{"currentlyReading", "completed"} {
		if err := requireKind(shape, key, '['); err != nil {
			return models.ProgressDocument{}, err
		}
	}
	var doc models.ProgressDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return models.ProgressDocument{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := Validate(doc); err != nil {
		return models.ProgressDocument{}, err
	}
	return Normalize(doc), nil
}

func requireKind(shape map[string]json.RawMessage, key string, open byte) error {
	v := bytes.TrimSpace(shape[key])
	if len(v) == 0 || v[0] != open {
		kind := "an array"
		if open == '{' {
			kind = "an object"
		}
		return fmt.Errorf("%w: %s must be %s", ErrInvalidDocument, key, kind)
	}
	return nil
}

// Validate checks field ranges of every book entry and the reading lists.
func Validate(doc models.ProgressDocument) error {
	for key, b := range doc.Books {
		if key == "" {
			return fmt.Errorf("%w: empty book id", ErrInvalidDocument)
		}
		if b.BookID != "" && string(b.BookID) != key {
			return fmt.Errorf("%w: book %q has mismatched bookId %q", ErrInvalidDocument, key, b.BookID)
		}
		if b.CurrentChapter < 1 {
			return fmt.Errorf("%w: book %q currentChapter must be positive", ErrInvalidDocument, key)
		}
		if b.CurrentPosition < 0 {
			return fmt.Errorf("%w: book %q currentPosition must not be negative", ErrInvalidDocument, key)
		}
		if b.TimeSpent < 0 {
			return fmt.Errorf("%w: book %q timeSpent must not be negative", ErrInvalidDocument, key)
		}
	}
	for _, list := range [][]models.BookID{doc.CurrentlyReading, doc.Completed} {
		for _, id := range list {
			if id == "" {
				return fmt.Errorf("%w: empty id in reading list", ErrInvalidDocument)
			}
		}
	}
	return nil
}

// Normalize returns a copy of doc in canonical form: no nil collections, book
// ids filled from map keys, lists deduplicated and sorted, completed books
// removed from CurrentlyReading and CompletedAt set only on completed books.
func Normalize(doc models.ProgressDocument) models.ProgressDocument {
	books := make(map[string]models.BookProgress, len(doc.Books))
	for key, b := range doc.Books {
		b = cloneBook(b)
		b.BookID = models.BookID(key)
		if !b.Completed {
			b.CompletedAt = nil
		} else if b.CompletedAt == nil {
			b.CompletedAt = cloneTime(b.LastReadAt)
		}
		books[key] = b
	}
	completed := union(doc.Completed)
	return models.ProgressDocument{
		Books:            books,
		CurrentlyReading: without(union(doc.CurrentlyReading), completed),
		Completed:        completed,
		LastActivity:     cloneTime(doc.LastActivity),
	}
}

func ValidatePreferences(p models.UserPreferences) error {
	if !slices.Contains(models.ValidThemes, p.Theme) {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalidPreferences, p.Theme)
	}
	if !slices.Contains(models.ValidFontSizes, p.FontSize) {
		return fmt.Errorf("%w: unknown fontSize %q", ErrInvalidPreferences, p.FontSize)
	}
	if p.ReadingSpeed <= 0 {
		return fmt.Errorf("%w: readingSpeed must be positive", ErrInvalidPreferences)
	}
	return nil
}

// NormalizeBookmarks replaces nil lists with empty ones and rejects entries
// without an id or book.
func NormalizeBookmarks(c models.BookmarkCollection) (models.BookmarkCollection, error) {
	out := DefaultBookmarks()
	for _, b := range c.Bookmarks {
		if b.ID == "" || b.BookID == "" {
			return models.BookmarkCollection{}, fmt.Errorf("%w: bookmark needs id and bookId", ErrInvalidBookmarks)
		}
		out.Bookmarks = append(out.Bookmarks, b)
	}
	for _, n := range c.Notes {
		if n.ID == "" || n.BookID == "" {
			return models.BookmarkCollection{}, fmt.Errorf("%w: note needs id and bookId", ErrInvalidBookmarks)
		}
		out.Notes = append(out.Notes, n)
	}
	for _, h := range c.Highlights {
		if h.ID == "" || h.BookID == "" {
			return models.BookmarkCollection{}, fmt.Errorf("%w: highlight needs id and bookId", ErrInvalidBookmarks)
		}
		out.Highlights = append(out.Highlights, h)
	}
	return out, nil
}
