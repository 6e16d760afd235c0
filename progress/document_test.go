package progress

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/kevinaaaquil/readersync/models"
)

func TestDecodeDocumentRequiresShape(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not an object", `[]`},
		{"missing books", `{"currentlyReading":[],"completed":[]}`},
		{"books is a list", `{"books":[],"currentlyReading":[],"completed":[]}`},
		{"missing completed", `{"books":{},"currentlyReading":[]}`},
		{"null currentlyReading", `{"books":{},"currentlyReading":null,"completed":[]}`},
		{"negative time", `{"books":{"1":{"currentChapter":1,"timeSpent":-4}},"currentlyReading":[],"completed":[]}`},
		{"zero chapter", `{"books":{"1":{"currentChapter":0}},"currentlyReading":[],"completed":[]}`},
		{"mismatched id", `{"books":{"1":{"bookId":"2","currentChapter":1}},"currentlyReading":[],"completed":[]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeDocument([]byte(tc.raw)); !errors.Is(err, ErrInvalidDocument) {
				t.Fatalf("expected ErrInvalidDocument, got %v", err)
			}
		})
	}
}

func TestDecodeDocumentAcceptsNumericIDs(t *testing.T) {
	raw := `{
		"books": {"7": {"bookId": 7, "currentChapter": 3, "currentPosition": 42.5, "lastReadAt": "2024-01-01T00:00:00Z", "timeSpent": 10, "completed": false}},
		"currentlyReading": [7, 7],
		"completed": [3],
		"lastActivity": "2024-01-01T00:00:00Z"
	}`
	doc, err := DecodeDocument([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Books["7"].BookID != "7" || doc.Books["7"].CurrentPosition != 42.5 {
		t.Fatalf("unexpected book: %+v", doc.Books["7"])
	}
	if !reflect.DeepEqual(doc.CurrentlyReading, []models.BookID{"7"}) {
		t.Fatalf("unexpected currentlyReading: %v", doc.CurrentlyReading)
	}
	if !reflect.DeepEqual(doc.Completed, []models.BookID{"3"}) {
		t.Fatalf("unexpected completed: %v", doc.Completed)
	}
}

func TestNormalizeCompletedAt(t *testing.T) {
	read := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	doc := Normalize(models.ProgressDocument{
		Books: map[string]models.BookProgress{
			"1": {CurrentChapter: 4, Completed: true, LastReadAt: &read},
			"2": {CurrentChapter: 1, CompletedAt: &read},
		},
	})
	if got := doc.Books["1"].CompletedAt; got == nil || !got.Equal(read) {
		t.Fatalf("completed book should get completedAt, got %v", got)
	}
	if doc.Books["2"].CompletedAt != nil {
		t.Fatalf("unfinished book must not carry completedAt")
	}
	if doc.CurrentlyReading == nil || doc.Completed == nil {
		t.Fatalf("lists should be non-nil after normalize")
	}
}

func TestValidatePreferences(t *testing.T) {
	if err := ValidatePreferences(DefaultPreferences()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	p := DefaultPreferences()
	p.Theme = "neon"
	if err := ValidatePreferences(p); !errors.Is(err, ErrInvalidPreferences) {
		t.Fatalf("expected ErrInvalidPreferences, got %v", err)
	}
	p = DefaultPreferences()
	p.ReadingSpeed = 0
	if err := ValidatePreferences(p); !errors.Is(err, ErrInvalidPreferences) {
		t.Fatalf("expected ErrInvalidPreferences for zero speed, got %v", err)
	}
}

func TestNormalizeBookmarks(t *testing.T) {
	out, err := NormalizeBookmarks(models.BookmarkCollection{})
	if err != nil {
		t.Fatalf("empty collection: %v", err)
	}
	if out.Bookmarks == nil || out.Notes == nil || out.Highlights == nil {
		t.Fatalf("expected non-nil lists")
	}
	_, err = NormalizeBookmarks(models.BookmarkCollection{Notes: []models.Note{{BookID: "1"}}})
	if !errors.Is(err, ErrInvalidBookmarks) {
		t.Fatalf("expected ErrInvalidBookmarks, got %v", err)
	}
}
