package progress

import (
	"reflect"
	"testing"
	"time"

	"github.com/kevinaaaquil/readersync/models"
)

func ts(t *testing.T, s string) *time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return &v
}

func ids(v ...string) []models.BookID {
	out := make([]models.BookID, 0, len(v))
	for _, s := range v {
		out = append(out, models.BookID(s))
	}
	return out
}

func TestMergeLatestWinsWholeRecord(t *testing.T) {
	local := models.ProgressDocument{
		Books: map[string]models.BookProgress{
			"7": {BookID: "7", CurrentChapter: 3, LastReadAt: ts(t, "2024-01-01T00:00:00Z"), TimeSpent: 10},
		},
		CurrentlyReading: ids("7"),
		Completed:        ids(),
	}
	remote := models.ProgressDocument{
		Books: map[string]models.BookProgress{
			"7": {BookID: "7", CurrentChapter: 5, LastReadAt: ts(t, "2024-01-02T00:00:00Z"), TimeSpent: 25},
		},
		CurrentlyReading: ids("7"),
		Completed:        ids(),
	}

	merged := Merge(local, remote)
	got := merged.Books["7"]
	if got.CurrentChapter != 5 || got.TimeSpent != 25 {
		t.Fatalf("expected remote record to win whole, got chapter=%d timeSpent=%d", got.CurrentChapter, got.TimeSpent)
	}
	if !reflect.DeepEqual(got, remote.Books["7"]) {
		t.Fatalf("merged book differs from newer record: %+v", got)
	}
}

func TestMergeCompletionTakesPrecedence(t *testing.T) {
	local := models.ProgressDocument{Books: map[string]models.BookProgress{}, CurrentlyReading: ids(), Completed: ids("3")}
	remote := models.ProgressDocument{Books: map[string]models.BookProgress{}, CurrentlyReading: ids("3"), Completed: ids()}

	merged := Merge(local, remote)
	if !reflect.DeepEqual(merged.Completed, ids("3")) {
		t.Fatalf("unexpected completed: %v", merged.Completed)
	}
	if len(merged.CurrentlyReading) != 0 {
		t.Fatalf("expected empty currentlyReading, got %v", merged.CurrentlyReading)
	}
}

func TestMergeNoIDInBothLists(t *testing.T) {
	cases := []struct {
		name          string
		local, remote models.ProgressDocument
	}{
		{
			name:   "both sides overlap",
			local:  models.ProgressDocument{CurrentlyReading: ids("1", "2", "3"), Completed: ids("4")},
			remote: models.ProgressDocument{CurrentlyReading: ids("4", "5"), Completed: ids("2", "5")},
		},
		{
			name:   "duplicates inside one side",
			local:  models.ProgressDocument{CurrentlyReading: ids("9", "9"), Completed: ids("9")},
			remote: models.ProgressDocument{},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			merged := Merge(tc.local, tc.remote)
			done := map[models.BookID]bool{}
			for _, id := range merged.Completed {
				if done[id] {
					t.Fatalf("duplicate id %q in completed", id)
				}
				done[id] = true
			}
			for _, id := range merged.CurrentlyReading {
				if done[id] {
					t.Fatalf("id %q appears in both lists", id)
				}
			}
		})
	}
}

func TestMergeCommutativeWithDistinctTimestamps(t *testing.T) {
	a := models.ProgressDocument{
		Books: map[string]models.BookProgress{
			"1": {BookID: "1", CurrentChapter: 2, LastReadAt: ts(t, "2024-03-01T10:00:00Z"), TimeSpent: 5},
			"2": {BookID: "2", CurrentChapter: 1, LastReadAt: ts(t, "2024-03-05T10:00:00Z")},
		},
		CurrentlyReading: ids("1", "2"),
		Completed:        ids("10"),
		LastActivity:     ts(t, "2024-03-05T10:00:00Z"),
	}
	b := models.ProgressDocument{
		Books: map[string]models.BookProgress{
			"1":  {BookID: "1", CurrentChapter: 4, LastReadAt: ts(t, "2024-03-02T10:00:00Z"), TimeSpent: 15},
			"10": {BookID: "10", CurrentChapter: 9, LastReadAt: ts(t, "2024-02-01T10:00:00Z"), Completed: true},
		},
		CurrentlyReading: ids("10"),
		Completed:        ids("2"),
		LastActivity:     ts(t, "2024-03-02T10:00:00Z"),
	}

	ab := Merge(a, b)
	ba := Merge(b, a)
	if !reflect.DeepEqual(ab, ba) {
		t.Fatalf("merge not commutative:\n ab=%+v\n ba=%+v", ab, ba)
	}
	if ab.Books["1"].CurrentChapter != 4 {
		t.Fatalf("expected newer book 1 record, got chapter %d", ab.Books["1"].CurrentChapter)
	}
	if !ab.LastActivity.Equal(*ts(t, "2024-03-05T10:00:00Z")) {
		t.Fatalf("unexpected lastActivity %v", ab.LastActivity)
	}
}

func TestMergeIdempotent(t *testing.T) {
	a := Normalize(models.ProgressDocument{
		Books: map[string]models.BookProgress{
			"5": {CurrentChapter: 2, LastReadAt: ts(t, "2024-05-01T00:00:00Z"), TimeSpent: 30},
			"6": {CurrentChapter: 7, LastReadAt: ts(t, "2024-05-02T00:00:00Z"), Completed: true},
		},
		CurrentlyReading: ids("5", "6", "5"),
		Completed:        ids("6"),
		LastActivity:     ts(t, "2024-05-02T00:00:00Z"),
	})
	if got := Merge(a, a); !reflect.DeepEqual(got, a) {
		t.Fatalf("merge(a, a) != a:\n got=%+v\n   a=%+v", got, a)
	}
}

func TestMergeMissingTimestampIsOlder(t *testing.T) {
	stamped := models.ProgressDocument{Books: map[string]models.BookProgress{
		"1": {BookID: "1", CurrentChapter: 2, LastReadAt: ts(t, "2020-01-01T00:00:00Z")},
	}}
	bare := models.ProgressDocument{Books: map[string]models.BookProgress{
		"1": {BookID: "1", CurrentChapter: 8},
	}}

	if got := Merge(bare, stamped).Books["1"].CurrentChapter; got != 2 {
		t.Fatalf("stamped remote should beat bare local, got chapter %d", got)
	}
	if got := Merge(stamped, bare).Books["1"].CurrentChapter; got != 2 {
		t.Fatalf("bare remote should not beat stamped local, got chapter %d", got)
	}
	if got := Merge(bare, models.ProgressDocument{Books: map[string]models.BookProgress{
		"1": {BookID: "1", CurrentChapter: 4},
	}}).Books["1"].CurrentChapter; got != 8 {
		t.Fatalf("local should win when neither side has a timestamp, got chapter %d", got)
	}
}

func TestMergeEmptyIsIdentity(t *testing.T) {
	a := Normalize(models.ProgressDocument{
		Books: map[string]models.BookProgress{
			"2": {CurrentChapter: 1, LastReadAt: ts(t, "2024-01-01T00:00:00Z")},
		},
		CurrentlyReading: ids("2"),
	})
	if got := Merge(a, models.ProgressDocument{}); !reflect.DeepEqual(got, a) {
		t.Fatalf("merge with empty changed document: %+v", got)
	}
	if got := Merge(models.ProgressDocument{}, a); !reflect.DeepEqual(got, a) {
		t.Fatalf("merge into empty changed document: %+v", got)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	local := models.ProgressDocument{
		Books: map[string]models.BookProgress{
			"1": {BookID: "1", CurrentChapter: 1, LastReadAt: ts(t, "2024-01-01T00:00:00Z")},
		},
		CurrentlyReading: ids("1", "2"),
		Completed:        ids(),
	}
	remote := models.ProgressDocument{
		Books: map[string]models.BookProgress{
			"1": {BookID: "1", CurrentChapter: 3, LastReadAt: ts(t, "2024-01-02T00:00:00Z")},
		},
		CurrentlyReading: ids(),
		Completed:        ids("2"),
	}

	merged := Merge(local, remote)
	*merged.Books["1"].LastReadAt = time.Time{}
	merged.Books["9"] = models.BookProgress{}

	if local.Books["1"].CurrentChapter != 1 || len(local.Books) != 1 {
		t.Fatalf("local books mutated: %+v", local.Books)
	}
	if remote.Books["1"].LastReadAt.IsZero() {
		t.Fatalf("remote timestamp shared with output")
	}
	if !reflect.DeepEqual(local.CurrentlyReading, ids("1", "2")) {
		t.Fatalf("local list mutated: %v", local.CurrentlyReading)
	}
}

func TestMergeOrdersIDsNaturally(t *testing.T) {
	merged := Merge(
		models.ProgressDocument{CurrentlyReading: ids("10", "abc")},
		models.ProgressDocument{CurrentlyReading: ids("9", "2")},
	)
	if want := ids("2", "9", "10", "abc"); !reflect.DeepEqual(merged.CurrentlyReading, want) {
		t.Fatalf("got %v, want %v", merged.CurrentlyReading, want)
	}
}

func TestMergeBookmarksConcatenates(t *testing.T) {
	a := models.BookmarkCollection{Bookmarks: []models.Bookmark{{ID: "b1", BookID: "1"}}}
	b := models.BookmarkCollection{
		Bookmarks: []models.Bookmark{{ID: "b1", BookID: "1"}},
		Notes:     []models.Note{{ID: "n1", BookID: "2", Content: "hi"}},
	}
	merged := MergeBookmarks(a, b)
	if len(merged.Bookmarks) != 2 {
		t.Fatalf("expected duplicates to be kept, got %d bookmarks", len(merged.Bookmarks))
	}
	if merged.Len() != 3 {
		t.Fatalf("unexpected total %d", merged.Len())
	}
	merged.Bookmarks[0].ID = "changed"
	if a.Bookmarks[0].ID != "b1" {
		t.Fatalf("input collection mutated")
	}
}

func TestPickPreferences(t *testing.T) {
	device := DefaultPreferences()
	device.Theme = models.ThemeDark
	server := DefaultPreferences()
	server.Theme = models.ThemeSepia

	if got := PickPreferences(&device, &server); got.Theme != models.ThemeDark {
		t.Fatalf("device preferences should win, got %q", got.Theme)
	}
	if got := PickPreferences(nil, &server); got.Theme != models.ThemeSepia {
		t.Fatalf("server preferences expected, got %q", got.Theme)
	}
	if got := PickPreferences(nil, nil); !reflect.DeepEqual(got, DefaultPreferences()) {
		t.Fatalf("defaults expected, got %+v", got)
	}
}
