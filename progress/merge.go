// Package progress holds the pure reading-progress logic shared by the server
// and devices: merging two progress documents, boundary validation and the
// small mutations a reader makes while reading.
package progress

import (
	"sort"
	"strconv"
	"time"

	"github.com/kevinaaaquil/readersync/models"
)

// Merge combines two progress documents. For each book the record with the
// strictly later LastReadAt wins as a whole; a missing timestamp is older than
// any present one and on a tie local is kept. Reading lists are unioned and a
// completed book is never left in CurrentlyReading. Inputs are not modified.
func Merge(local, remote models.ProgressDocument) models.ProgressDocument {
	books := make(map[string]models.BookProgress, len(local.Books)+len(remote.Books))
	for id, b := range local.Books {
		books[id] = cloneBook(b)
	}
	for id, rb := range remote.Books {
		lb, ok := books[id]
		if !ok || newer(rb.LastReadAt, lb.LastReadAt) {
			books[id] = cloneBook(rb)
		}
	}

	completed := union(local.Completed, remote.Completed)
	reading := without(union(local.CurrentlyReading, remote.CurrentlyReading), completed)

	return models.ProgressDocument{
		Books:            books,
		CurrentlyReading: reading,
		Completed:        completed,
		LastActivity:     later(local.LastActivity, remote.LastActivity),
	}
}

// MergeBookmarks concatenates both collections, a first. Entries are not
// deduplicated.
func MergeBookmarks(a, b models.BookmarkCollection) models.BookmarkCollection {
	out := models.BookmarkCollection{
		Bookmarks:  make([]models.Bookmark, 0, len(a.Bookmarks)+len(b.Bookmarks)),
		Notes:      make([]models.Note, 0, len(a.Notes)+len(b.Notes)),
		Highlights: make([]models.Highlight, 0, len(a.Highlights)+len(b.Highlights)),
	}
	out.Bookmarks = append(append(out.Bookmarks, a.Bookmarks...), b.Bookmarks...)
	out.Notes = append(append(out.Notes, a.Notes...), b.Notes...)
	out.Highlights = append(append(out.Highlights, a.Highlights...), b.Highlights...)
	return out
}

// PickPreferences returns the device preferences when supplied, else the
// server's, else the defaults. Preferences are never merged field by field.
func PickPreferences(device, server *models.UserPreferences) models.UserPreferences {
	switch {
	case device != nil:
		return *device
	case server != nil:
		return *server
	default:
		return DefaultPreferences()
	}
}

func newer(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}

func later(a, b *time.Time) *time.Time {
	switch {
	case a == nil && b == nil:
		return nil
	case a == nil:
		return cloneTime(b)
	case b == nil:
		return cloneTime(a)
	case b.After(*a):
		return cloneTime(b)
	default:
		return cloneTime(a)
	}
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneBook(b models.BookProgress) models.BookProgress {
	b.LastReadAt = cloneTime(b.LastReadAt)
	b.StartedAt = cloneTime(b.StartedAt)
	b.CompletedAt = cloneTime(b.CompletedAt)
	return b
}

// union returns the distinct non-empty ids of all lists in canonical order.
func union(lists ...[]models.BookID) []models.BookID {
	seen := make(map[models.BookID]struct{})
	out := make([]models.BookID, 0)
	for _, list := range lists {
		for _, id := range list {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessID(out[i], out[j]) })
	return out
}

func without(ids, remove []models.BookID) []models.BookID {
	drop := make(map[models.BookID]struct{}, len(remove))
	for _, id := range remove {
		drop[id] = struct{}{}
	}
	out := make([]models.BookID, 0, len(ids))
	for _, id := range ids {
		if _, ok := drop[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

func contains(ids []models.BookID, id models.BookID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// lessID orders numeric ids by value ahead of other ids, which sort lexically.
func lessID(a, b models.BookID) bool {
	ai, aerr := strconv.ParseInt(string(a), 10, 64)
	bi, berr := strconv.ParseInt(string(b), 10, 64)
	switch {
	case aerr == nil && berr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aerr == nil:
		return true
	case berr == nil:
		return false
	}
	return a < b
}
