package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kevinaaaquil/readersync/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Memory is an in-process implementation of every store interface. It is used
// by tests and by STORE_BACKEND=memory for local development; data is lost on
// restart.
type Memory struct {
	mu        sync.Mutex
	records   map[primitive.ObjectID]*models.UserProgressRecord
	tokens    []*models.VerificationToken
	emailLogs []models.EmailLog
	backups   []models.UserBackup
	users     map[string]*models.User
}

var (
	_ RecordStore   = (*Memory)(nil)
	_ TokenStore    = (*Memory)(nil)
	_ EmailLogStore = (*Memory)(nil)
	_ BackupStore   = (*Memory)(nil)
	_ UserStore     = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		records: make(map[primitive.ObjectID]*models.UserProgressRecord),
		users:   make(map[string]*models.User),
	}
}

// Records

func (m *Memory) FindProgressByEmail(_ context.Context, email string) (*models.UserProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(func(r *models.UserProgressRecord) bool { return r.Email == email }), nil
}

func (m *Memory) FindProgressByGuest(_ context.Context, guestID string) (*models.UserProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(func(r *models.UserProgressRecord) bool { return r.GuestID == guestID }), nil
}

func (m *Memory) FindProgressByEmailOrGuest(ctx context.Context, email, guestID string) (*models.UserProgressRecord, error) {
	if email != "" {
		rec, _ := m.FindProgressByEmail(ctx, email)
		if rec != nil {
			return rec, nil
		}
	}
	if guestID == "" {
		return nil, nil
	}
	return m.FindProgressByGuest(ctx, guestID)
}

// findLocked returns a copy of the oldest matching record.
func (m *Memory) findLocked(match func(*models.UserProgressRecord) bool) *models.UserProgressRecord {
	var found *models.UserProgressRecord
	for _, r := range m.records {
		if !match(r) {
			continue
		}
		if found == nil || r.ID.Hex() < found.ID.Hex() {
			found = r
		}
	}
	if found == nil {
		return nil
	}
	return cloneRecord(found)
}

func (m *Memory) CreateProgress(_ context.Context, rec *models.UserProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.Email == rec.Email {
			return ErrDuplicate
		}
	}
	if rec.ID.IsZero() {
		rec.ID = primitive.NewObjectID()
	}
	rec.Revision = 1
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *Memory) ReplaceProgress(_ context.Context, rec *models.UserProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.records[rec.ID]
	if !ok || cur.Revision != rec.Revision {
		return ErrConflict
	}
	for id, r := range m.records {
		if id != rec.ID && r.Email == rec.Email {
			return ErrDuplicate
		}
	}
	rec.Revision++
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (m *Memory) DeleteProgress(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	return nil
}

func cloneRecord(r *models.UserProgressRecord) *models.UserProgressRecord {
	out := *r
	out.Progress.Books = make(map[string]models.BookProgress, len(r.Progress.Books))
	for k, v := range r.Progress.Books {
		out.Progress.Books[k] = v
	}
	out.Progress.CurrentlyReading = cloneSlice(r.Progress.CurrentlyReading)
	out.Progress.Completed = cloneSlice(r.Progress.Completed)
	out.Bookmarks.Bookmarks = cloneSlice(r.Bookmarks.Bookmarks)
	out.Bookmarks.Notes = cloneSlice(r.Bookmarks.Notes)
	out.Bookmarks.Highlights = cloneSlice(r.Bookmarks.Highlights)
	out.SyncHistory = cloneSlice(r.SyncHistory)
	return &out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append(make([]T, 0, len(s)), s...)
}

// Tokens

func (m *Memory) FindActiveToken(_ context.Context, email string, typ models.TokenType, now time.Time) (*models.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.VerificationToken
	for _, t := range m.tokens {
		if t.Email == email && t.Type == typ && t.Active(now) {
			if found == nil || t.CreatedAt.After(found.CreatedAt) {
				found = t
			}
		}
	}
	if found == nil {
		return nil, nil
	}
	c := *found
	return &c, nil
}

func (m *Memory) PurgeStaleTokens(_ context.Context, email string, typ models.TokenType, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeTokensLocked(func(t *models.VerificationToken) bool {
		return t.Email == email && t.Type == typ && !t.IsUsed && !now.Before(t.ExpiresAt)
	})
	return nil
}

func (m *Memory) InsertToken(_ context.Context, tok *models.VerificationToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Token == tok.Token {
			return ErrDuplicate
		}
		if t.IsUsed {
			continue
		}
		if t.Code == tok.Code || (t.Email == tok.Email && t.Type == tok.Type) {
			return ErrDuplicate
		}
	}
	if tok.ID.IsZero() {
		tok.ID = primitive.NewObjectID()
	}
	c := *tok
	m.tokens = append(m.tokens, &c)
	return nil
}

func (m *Memory) ConsumeToken(_ context.Context, code string, typ models.TokenType, now time.Time) (*models.VerificationToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.Code == code && t.Type == typ && t.Active(now) {
			used := now
			t.IsUsed = true
			t.UsedAt = &used
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Memory) RecordTokenAttempt(_ context.Context, code string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var newest *models.VerificationToken
	for _, t := range m.tokens {
		if t.Code == code && (newest == nil || t.CreatedAt.After(newest.CreatedAt)) {
			newest = t
		}
	}
	if newest != nil {
		at := now
		newest.Attempts++
		newest.LastAttemptAt = &at
	}
	return nil
}

func (m *Memory) DeleteExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.removeTokensLocked(func(t *models.VerificationToken) bool { return !now.Before(t.ExpiresAt) })
	return int64(n), nil
}

func (m *Memory) removeTokensLocked(drop func(*models.VerificationToken) bool) int {
	kept := m.tokens[:0]
	removed := 0
	for _, t := range m.tokens {
		if drop(t) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	m.tokens = kept
	return removed
}

func (m *Memory) TokenStats(_ context.Context, now time.Time) (models.TokenStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := models.TokenStatistics{ByType: map[models.TokenType]int64{}}
	for _, t := range m.tokens {
		stats.Total++
		stats.ByType[t.Type]++
		switch {
		case t.IsUsed:
			stats.Used++
		case t.Active(now):
			stats.Active++
		default:
			stats.Expired++
		}
	}
	return stats, nil
}

// Tokens returns copies of every stored token, for inspection in tests.
func (m *Memory) Tokens() []models.VerificationToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.VerificationToken, 0, len(m.tokens))
	for _, t := range m.tokens {
		out = append(out, *t)
	}
	return out
}

// Email logs

func (m *Memory) InsertEmailLog(_ context.Context, log *models.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	m.emailLogs = append(m.emailLogs, *log)
	return nil
}

func (m *Memory) EmailLogs() []models.EmailLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.EmailLog(nil), m.emailLogs...)
}

// Backups

func (m *Memory) InsertBackup(_ context.Context, b *models.UserBackup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	m.backups = append(m.backups, *b)
	return nil
}

func (m *Memory) BackupsByEmail(_ context.Context, email string) ([]models.UserBackup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.UserBackup{}
	for i := len(m.backups) - 1; i >= 0; i-- {
		if m.backups[i].Email == email {
			out = append(out, m.backups[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) BackupByID(_ context.Context, id primitive.ObjectID) (*models.UserBackup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.backups {
		if b.ID == id {
			c := b
			return &c, nil
		}
	}
	return nil, nil
}

func (m *Memory) DeleteBackup(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, b := range m.backups {
		if b.ID == id {
			m.backups = append(m.backups[:i], m.backups[i+1:]...)
			return nil
		}
	}
	return nil
}

// Users

func (m *Memory) UserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *Memory) CreateUser(_ context.Context, user *models.User) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Email]; ok {
		return primitive.NilObjectID, ErrDuplicate
	}
	c := *user
	c.ID = primitive.NewObjectID()
	m.users[user.Email] = &c
	return c.ID, nil
}
