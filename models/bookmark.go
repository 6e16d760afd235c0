package models

import "time"

type Bookmark struct {
	ID        string    `bson:"id" json:"id"`
	BookID    BookID    `bson:"bookId" json:"bookId"`
	ChapterID string    `bson:"chapterId,omitempty" json:"chapterId,omitempty"`
	Position  float64   `bson:"position" json:"position"`
	Title     string    `bson:"title,omitempty" json:"title,omitempty"`
	Note      string    `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type Note struct {
	ID        string    `bson:"id" json:"id"`
	BookID    BookID    `bson:"bookId" json:"bookId"`
	ChapterID string    `bson:"chapterId,omitempty" json:"chapterId,omitempty"`
	Position  float64   `bson:"position" json:"position"`
	Content   string    `bson:"content" json:"content"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type Highlight struct {
	ID        string    `bson:"id" json:"id"`
	BookID    BookID    `bson:"bookId" json:"bookId"`
	ChapterID string    `bson:"chapterId,omitempty" json:"chapterId,omitempty"`
	Position  float64   `bson:"position" json:"position"`
	Text      string    `bson:"text" json:"text"`
	Color     string    `bson:"color,omitempty" json:"color,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// BookmarkCollection groups everything a reader pinned inside books.
type BookmarkCollection struct {
	Bookmarks  []Bookmark  `bson:"bookmarks" json:"bookmarks"`
	Notes      []Note      `bson:"notes" json:"notes"`
	Highlights []Highlight `bson:"highlights" json:"highlights"`
}

// Len is the number of bookmark, note and highlight entries combined.
func (c BookmarkCollection) Len() int {
	return len(c.Bookmarks) + len(c.Notes) + len(c.Highlights)
}
