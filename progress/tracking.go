package progress

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/kevinaaaquil/readersync/models"
)

// BookUpdate describes one reading session. Nil fields leave the stored value alone.
type BookUpdate struct {
	Chapter      *int
	Position     *float64
	MinutesSpent int
	Completed    *bool
}

// UpdateBook returns a copy of doc with the session applied to bookID. The
// book is stamped as read at now, added to the right reading list and the
// document's LastActivity moves to now.
func UpdateBook(doc models.ProgressDocument, bookID models.BookID, u BookUpdate, now time.Time) models.ProgressDocument {
	out := Normalize(doc)
	key := string(bookID)
	b, ok := out.Books[key]
	if !ok {
		started := now
		b = models.BookProgress{BookID: bookID, CurrentChapter: 1, StartedAt: &started}
	}
	if u.Chapter != nil && *u.Chapter >= 1 {
		b.CurrentChapter = *u.Chapter
	}
	if u.Position != nil && *u.Position >= 0 {
		b.CurrentPosition = *u.Position
	}
	if u.MinutesSpent > 0 {
		b.TimeSpent += u.MinutesSpent
	}
	if u.Completed != nil {
		if *u.Completed && !b.Completed {
			done := now
			b.CompletedAt = &done
		}
		if !*u.Completed {
			b.CompletedAt = nil
		}
		b.Completed = *u.Completed
	}
	read := now
	b.LastReadAt = &read
	out.Books[key] = b

	if b.Completed {
		out.Completed = union(out.Completed, []models.BookID{bookID})
		out.CurrentlyReading = without(out.CurrentlyReading, out.Completed)
	} else {
		out.Completed = without(out.Completed, []models.BookID{bookID})
		if !contains(out.CurrentlyReading, bookID) {
			out.CurrentlyReading = union(out.CurrentlyReading, []models.BookID{bookID})
		}
	}
	activity := now
	out.LastActivity = &activity
	return out
}

func AddBookmark(c models.BookmarkCollection, b models.Bookmark, now time.Time) models.BookmarkCollection {
	b.ID = uuid.New().String()
	b.CreatedAt = now
	out := copyCollection(c)
	out.Bookmarks = append(out.Bookmarks, b)
	return out
}

func AddNote(c models.BookmarkCollection, n models.Note, now time.Time) models.BookmarkCollection {
	n.ID = uuid.New().String()
	n.CreatedAt = now
	out := copyCollection(c)
	out.Notes = append(out.Notes, n)
	return out
}

func AddHighlight(c models.BookmarkCollection, h models.Highlight, now time.Time) models.BookmarkCollection {
	h.ID = uuid.New().String()
	h.CreatedAt = now
	out := copyCollection(c)
	out.Highlights = append(out.Highlights, h)
	return out
}

func copyCollection(c models.BookmarkCollection) models.BookmarkCollection {
	return MergeBookmarks(c, models.BookmarkCollection{})
}

// ReadingStats is the device-facing summary of a progress document.
type ReadingStats struct {
	TotalBooks         int `json:"totalBooks"`
	CompletedBooks     int `json:"completedBooks"`
	CurrentlyReading   int `json:"currentlyReading"`
	TotalReadingTime   int `json:"totalReadingTime"`
	AverageReadingTime int `json:"averageReadingTime"`
}

func CalculateStats(doc models.ProgressDocument) ReadingStats {
	s := ReadingStats{
		TotalBooks:       len(doc.Books),
		CompletedBooks:   len(doc.Completed),
		CurrentlyReading: len(doc.CurrentlyReading),
		TotalReadingTime: totalTime(doc),
	}
	if s.TotalBooks > 0 {
		s.AverageReadingTime = int(math.Round(float64(s.TotalReadingTime) / float64(s.TotalBooks)))
	}
	return s
}

// RecordStatistics recomputes the derived totals of a stored record, keeping
// the fields that are not derived from the document.
func RecordStatistics(doc models.ProgressDocument, prev models.Statistics) models.Statistics {
	out := prev
	if out.AverageReadingSpeed == 0 {
		out.AverageReadingSpeed = DefaultReadingSpeed
	}
	out.TotalBooksRead = len(doc.Completed)
	out.TotalReadingTime = totalTime(doc)
	return out
}

func totalTime(doc models.ProgressDocument) int {
	total := 0
	for _, b := range doc.Books {
		total += b.TimeSpent
	}
	return total
}
