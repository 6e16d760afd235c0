package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"
)

// BookID identifies a book. Older clients send numeric ids, so JSON decoding
// accepts either a string or a number.
type BookID string

func (id *BookID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = BookID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return errors.New("book id must be a string or a number")
	}
	*id = BookID(n.String())
	return nil
}

// BookProgress is the per-book reading state. It is replaced as a whole when merged.
type BookProgress struct {
	BookID          BookID     `bson:"bookId" json:"bookId"`
	CurrentChapter  int        `bson:"currentChapter" json:"currentChapter"`
	CurrentPosition float64    `bson:"currentPosition" json:"currentPosition"`
	LastReadAt      *time.Time `bson:"lastReadAt,omitempty" json:"lastReadAt,omitempty"`
	TimeSpent       int        `bson:"timeSpent" json:"timeSpent"` // minutes
	Completed       bool       `bson:"completed" json:"completed"`
	StartedAt       *time.Time `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt     *time.Time `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

type ProgressDocument struct {
	Books            map[string]BookProgress `bson:"books" json:"books"`
	CurrentlyReading []BookID                `bson:"currentlyReading" json:"currentlyReading"`
	Completed        []BookID                `bson:"completed" json:"completed"`
	LastActivity     *time.Time              `bson:"lastActivity,omitempty" json:"lastActivity"`
}

// Statistics are derived from a progress document on every write.
type Statistics struct {
	TotalBooksRead      int `bson:"totalBooksRead" json:"totalBooksRead"`
	TotalReadingTime    int `bson:"totalReadingTime" json:"totalReadingTime"`
	AverageReadingSpeed int `bson:"averageReadingSpeed" json:"averageReadingSpeed"`
	LongestStreak       int `bson:"longestStreak" json:"longestStreak"`
	CurrentStreak       int `bson:"currentStreak" json:"currentStreak"`
}
