// Package reconcile joins the token lifecycle to the progress record store:
// it sends codes, consumes them to merge a device's guest data into the
// email-keyed record, and applies direct device syncs.
package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/progress"
	"github.com/kevinaaaquil/readersync/store"
	"github.com/kevinaaaquil/readersync/verification"
)

var (
	ErrMissingIdentity = errors.New("email and guest id are required")
	ErrRecordNotFound  = errors.New("progress record not found")
)

// maxWriteAttempts bounds the read-merge-write loop when another writer
// changes the record between read and replace.
const maxWriteAttempts = 3

type State string

const (
	StateIdle          State = "idle"
	StateCodeRequested State = "codeRequested"
	StateCodeVerified  State = "codeVerified"
	StateMerged        State = "merged"
	StatePersisted     State = "persisted"
	StateFailed        State = "failed"
)

type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

type Notifier interface {
	SendCode(ctx context.Context, tok *models.VerificationToken) error
}

type Archiver interface {
	Archive(ctx context.Context, rec *models.UserProgressRecord, syncType models.SyncType) error
}

type Config struct {
	Records  store.RecordStore
	Tokens   *verification.Service
	Notifier Notifier
	Archiver Archiver // optional
	Clock    func() time.Time
}

type Service struct {
	records  store.RecordStore
	tokens   *verification.Service
	notifier Notifier
	archiver Archiver
	now      func() time.Time
}

func New(cfg Config) *Service {
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Service{
		records:  cfg.Records,
		tokens:   cfg.Tokens,
		notifier: cfg.Notifier,
		archiver: cfg.Archiver,
		now:      func() time.Time { return now().UTC() },
	}
}

func trace(flow string, state State, attrs ...any) {
	slog.Debug("reconcile", append([]any{"flow", flow, "state", state}, attrs...)...)
}

// Stats summarises what a reconciliation or sync stored.
type Stats struct {
	BooksCount     int    `json:"booksCount"`
	BookmarksCount int    `json:"bookmarksCount"`
	Action         Action `json:"action"`
}

func statsFor(rec *models.UserProgressRecord, action Action) Stats {
	return Stats{
		BooksCount:     len(rec.Progress.Books),
		BookmarksCount: len(rec.Bookmarks.Bookmarks),
		Action:         action,
	}
}

type SendCodeRequest struct {
	Email     string
	GuestID   string
	Type      models.TokenType
	Metadata  map[string]any
	IPAddress string
	UserAgent string
}

// SendCodeResult never carries the code; it only reaches the reader by email.
type SendCodeResult struct {
	TokenID   string    `json:"tokenId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SendCode issues (or reuses) a token and emails its code. A delivery failure
// is logged and does not fail the request; the reader can ask again.
func (s *Service) SendCode(ctx context.Context, req SendCodeRequest) (*SendCodeResult, error) {
	trace("send-code", StateIdle)
	tok, err := s.tokens.CreateToken(ctx, verification.CreateRequest{
		Email:     req.Email,
		Type:      req.Type,
		GuestID:   strings.TrimSpace(req.GuestID),
		Metadata:  req.Metadata,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
	})
	if err != nil {
		trace("send-code", StateFailed, "error", err)
		return nil, err
	}
	if s.notifier != nil {
		if err := s.notifier.SendCode(ctx, tok); err != nil {
			slog.Error("verification email delivery failed",
				"email", verification.MaskEmail(tok.Email), "type", tok.Type, "error", err)
		}
	}
	trace("send-code", StateCodeRequested, "type", tok.Type)
	return &SendCodeResult{TokenID: tok.Token, ExpiresAt: tok.ExpiresAt}, nil
}

type VerifyRequest struct {
	Code     string
	Type     models.TokenType
	Snapshot *models.GuestSnapshot
}

type VerifyResult struct {
	Email   string           `json:"email"`
	GuestID string           `json:"guestId,omitempty"`
	Type    models.TokenType `json:"type"`
	Stats   *Stats           `json:"syncStats,omitempty"`
	// Record is set for account recovery so the device can restore from it.
	Record *models.UserProgressRecord `json:"record,omitempty"`
}

// VerifyAndReconcile consumes the code and, for backup and recovery tokens,
// merges the submitted guest snapshot into the record for the token's email.
// The token is spent before the record is written; if persisting fails the
// reader has to request a new code.
func (s *Service) VerifyAndReconcile(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	code := strings.TrimSpace(req.Code)
	if !verification.ValidCode(code) {
		return nil, verification.ErrInvalidCode
	}
	typ, err := verification.ParseTokenType(string(req.Type))
	if err != nil {
		return nil, err
	}
	snap, err := cleanSnapshot(req.Snapshot)
	if err != nil {
		return nil, err
	}

	tok, err := s.tokens.VerifyToken(ctx, code, typ)
	if err != nil {
		trace("verify", StateFailed, "error", err)
		if errors.Is(err, verification.ErrNotFoundOrExpired) {
			if aerr := s.tokens.RecordFailedAttempt(ctx, code); aerr != nil {
				slog.Warn("record failed attempt", "error", aerr)
			}
		}
		return nil, err
	}
	trace("verify", StateCodeVerified, "type", tok.Type)

	result := &VerifyResult{Email: tok.Email, GuestID: tok.GuestID, Type: tok.Type}
	if !tok.Type.Reconciles() {
		return result, nil
	}

	syncType := models.SyncBackup
	if tok.Type == models.TokenAccountRecovery {
		syncType = models.SyncRecovery
	}
	rec, action, err := s.reconcileGuest(ctx, tok, snap, syncType)
	if err != nil {
		trace("verify", StateFailed, "error", err)
		return nil, err
	}
	trace("verify", StatePersisted, "action", action, "revision", rec.Revision)
	s.archive(ctx, rec, syncType)

	stats := statsFor(rec, action)
	result.GuestID = rec.GuestID
	result.Stats = &stats
	if tok.Type == models.TokenAccountRecovery {
		result.Record = rec
	}
	return result, nil
}

func (s *Service) reconcileGuest(ctx context.Context, tok *models.VerificationToken, snap models.GuestSnapshot, syncType models.SyncType) (*models.UserProgressRecord, Action, error) {
	size := dataSize(snap.Progress, snap.Bookmarks, snap.Preferences)
	for attempt := 1; ; attempt++ {
		now := s.now()
		rec, err := s.records.FindProgressByEmail(ctx, tok.Email)
		if err != nil {
			return nil, "", fmt.Errorf("find progress record: %w", err)
		}
		action := ActionUpdated
		if rec == nil {
			action = ActionCreated
			guestID := tok.GuestID
			if guestID == "" {
				guestID = generatedGuestID(now)
			}
			rec = newRecord(tok.Email, guestID, now)
		}

		orphan, err := s.guestOrphan(ctx, tok)
		if err != nil {
			return nil, "", err
		}
		if orphan != nil {
			rec.Progress = progress.Merge(rec.Progress, orphan.Progress)
			rec.Bookmarks = progress.MergeBookmarks(rec.Bookmarks, orphan.Bookmarks)
			rec.Preferences = progress.PickPreferences(&orphan.Preferences, &rec.Preferences)
		}
		if snap.Progress != nil {
			rec.Progress = progress.Merge(rec.Progress, *snap.Progress)
		}
		if snap.Bookmarks != nil {
			rec.Bookmarks = progress.MergeBookmarks(rec.Bookmarks, *snap.Bookmarks)
		}
		rec.Preferences = progress.PickPreferences(snap.Preferences, &rec.Preferences)
		if snap.DeviceInfo != nil {
			rec.DeviceInfo = *snap.DeviceInfo
		}
		if tok.GuestID != "" {
			rec.GuestID = tok.GuestID
		}
		rec.Verified = true
		verifiedAt := now
		rec.VerifiedAt = &verifiedAt
		rec.Statistics = progress.RecordStatistics(rec.Progress, rec.Statistics)
		rec.AppendSync(models.SyncEntry{SyncedAt: now, SyncType: syncType, DeviceID: rec.GuestID, DataSize: size})
		rec.LastActivityAt = now
		rec.IsActive = true
		rec.UpdatedAt = now
		trace("verify", StateMerged, "attempt", attempt)

		if action == ActionCreated {
			err = s.records.CreateProgress(ctx, rec)
		} else {
			err = s.records.ReplaceProgress(ctx, rec)
		}
		if err == nil {
			if orphan != nil {
				if derr := s.records.DeleteProgress(ctx, orphan.ID); derr != nil {
					slog.Warn("delete folded guest record failed", "id", orphan.ID.Hex(), "error", derr)
				}
			}
			return rec, action, nil
		}
		retry := errors.Is(err, store.ErrConflict) || (action == ActionCreated && errors.Is(err, store.ErrDuplicate))
		if !retry || attempt >= maxWriteAttempts {
			return nil, "", fmt.Errorf("save progress record: %w", err)
		}
		slog.Debug("progress record changed concurrently, retrying", "attempt", attempt)
	}
}

// guestOrphan returns the unverified record the verifying device synced under
// a different email. Its data is folded into the email's record and the
// orphan removed, so one guest id never backs two records.
func (s *Service) guestOrphan(ctx context.Context, tok *models.VerificationToken) (*models.UserProgressRecord, error) {
	if tok.GuestID == "" {
		return nil, nil
	}
	rec, err := s.records.FindProgressByGuest(ctx, tok.GuestID)
	if err != nil {
		return nil, fmt.Errorf("find guest record: %w", err)
	}
	if rec == nil || rec.Verified || rec.Email == tok.Email {
		return nil, nil
	}
	return rec, nil
}

// linkedDevice reports whether guestID is the record's device or has synced it before.
func linkedDevice(rec *models.UserProgressRecord, guestID string) bool {
	if rec.GuestID == guestID {
		return true
	}
	for _, e := range rec.SyncHistory {
		if e.DeviceID == guestID {
			return true
		}
	}
	return false
}

type SyncRequest struct {
	Email       string
	GuestID     string
	Progress    *models.ProgressDocument
	Bookmarks   *models.BookmarkCollection
	Preferences *models.UserPreferences
	DeviceInfo  *models.DeviceInfo
	// Force stores Progress as given instead of merging it.
	Force bool
}

type SyncResult struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	LastSyncAt time.Time `json:"lastSyncAt"`
	Stats      Stats     `json:"syncStats"`
}

// Sync applies a device's state to the record found by email or guest id,
// creating an unverified record when neither matches. Verified records only
// take syncs from devices already linked to them.
func (s *Service) Sync(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	guestID := strings.TrimSpace(req.GuestID)
	if strings.TrimSpace(req.Email) == "" || guestID == "" {
		return nil, ErrMissingIdentity
	}
	email, err := verification.NormalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	snap, err := cleanSnapshot(&models.GuestSnapshot{
		Progress:    req.Progress,
		Bookmarks:   req.Bookmarks,
		Preferences: req.Preferences,
		DeviceInfo:  req.DeviceInfo,
	})
	if err != nil {
		return nil, err
	}
	size := dataSize(snap.Progress, snap.Bookmarks, snap.Preferences)

	for attempt := 1; ; attempt++ {
		now := s.now()
		rec, err := s.records.FindProgressByEmailOrGuest(ctx, email, guestID)
		if err != nil {
			return nil, fmt.Errorf("find progress record: %w", err)
		}
		action := ActionUpdated
		if rec == nil {
			action = ActionCreated
			rec = newRecord(email, guestID, now)
		} else if rec.Verified && (rec.Email != email || !linkedDevice(rec, guestID)) {
			// a verified record only moves or takes writes from devices it has seen
			trace("sync", StateFailed, "reason", "device not linked")
			return nil, ErrRecordNotFound
		}

		switch {
		case snap.Progress == nil:
		case req.Force:
			rec.Progress = *snap.Progress
		default:
			rec.Progress = progress.Merge(rec.Progress, *snap.Progress)
		}
		if snap.Bookmarks != nil {
			rec.Bookmarks = *snap.Bookmarks
		}
		if snap.Preferences != nil {
			rec.Preferences = *snap.Preferences
		}
		if snap.DeviceInfo != nil {
			rec.DeviceInfo = *snap.DeviceInfo
		}
		rec.Email = email
		rec.GuestID = guestID
		rec.Statistics = progress.RecordStatistics(rec.Progress, rec.Statistics)
		rec.AppendSync(models.SyncEntry{SyncedAt: now, SyncType: models.SyncFull, DeviceID: guestID, DataSize: size})
		rec.LastActivityAt = now
		rec.IsActive = true
		rec.UpdatedAt = now
		trace("sync", StateMerged, "attempt", attempt, "force", req.Force)

		if action == ActionCreated {
			err = s.records.CreateProgress(ctx, rec)
		} else {
			err = s.records.ReplaceProgress(ctx, rec)
		}
		if err == nil {
			trace("sync", StatePersisted, "action", action, "revision", rec.Revision)
			s.archive(ctx, rec, models.SyncFull)
			return &SyncResult{
				ID:         rec.ID.Hex(),
				Email:      rec.Email,
				LastSyncAt: rec.LastSyncAt,
				Stats:      statsFor(rec, action),
			}, nil
		}
		retry := errors.Is(err, store.ErrConflict) || (action == ActionCreated && errors.Is(err, store.ErrDuplicate))
		if !retry || attempt >= maxWriteAttempts {
			trace("sync", StateFailed, "error", err)
			return nil, fmt.Errorf("save progress record: %w", err)
		}
	}
}

// Fetch returns the record for email only if it is also linked to guestID.
func (s *Service) Fetch(ctx context.Context, email, guestID string) (*models.UserProgressRecord, error) {
	guestID = strings.TrimSpace(guestID)
	if strings.TrimSpace(email) == "" || guestID == "" {
		return nil, ErrMissingIdentity
	}
	email, err := verification.NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.FindProgressByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find progress record: %w", err)
	}
	if rec == nil || rec.GuestID != guestID {
		return nil, ErrRecordNotFound
	}
	return rec, nil
}

func (s *Service) archive(ctx context.Context, rec *models.UserProgressRecord, syncType models.SyncType) {
	if s.archiver == nil {
		return
	}
	if err := s.archiver.Archive(ctx, rec, syncType); err != nil {
		slog.Warn("archive progress snapshot failed", "revision", rec.Revision, "error", err)
	}
}

func newRecord(email, guestID string, now time.Time) *models.UserProgressRecord {
	return &models.UserProgressRecord{
		Email:       email,
		GuestID:     guestID,
		Progress:    progress.NewDocument(),
		Bookmarks:   progress.DefaultBookmarks(),
		Preferences: progress.DefaultPreferences(),
		DeviceInfo:  models.DeviceInfo{Platform: models.PlatformWeb, AppVersion: "1.0.0"},
		Statistics:  models.Statistics{AverageReadingSpeed: progress.DefaultReadingSpeed},
		SyncHistory: []models.SyncEntry{},
		IsActive:    true,
		CreatedAt:   now,
	}
}

// cleanSnapshot validates every supplied part and returns normalized copies.
func cleanSnapshot(in *models.GuestSnapshot) (models.GuestSnapshot, error) {
	var out models.GuestSnapshot
	if in == nil {
		return out, nil
	}
	if in.Progress != nil {
		if err := progress.Validate(*in.Progress); err != nil {
			return out, err
		}
		doc := progress.Normalize(*in.Progress)
		out.Progress = &doc
	}
	if in.Bookmarks != nil {
		c, err := progress.NormalizeBookmarks(*in.Bookmarks)
		if err != nil {
			return out, err
		}
		out.Bookmarks = &c
	}
	if in.Preferences != nil {
		if err := progress.ValidatePreferences(*in.Preferences); err != nil {
			return out, err
		}
		p := *in.Preferences
		out.Preferences = &p
	}
	if in.DeviceInfo != nil {
		d := *in.DeviceInfo
		out.DeviceInfo = &d
	}
	return out, nil
}

func dataSize(doc *models.ProgressDocument, bookmarks *models.BookmarkCollection, prefs *models.UserPreferences) int {
	data, err := json.Marshal(struct {
		Progress    *models.ProgressDocument   `json:"progress,omitempty"`
		Bookmarks   *models.BookmarkCollection `json:"bookmarks,omitempty"`
		Preferences *models.UserPreferences    `json:"preferences,omitempty"`
	}{doc, bookmarks, prefs})
	if err != nil {
		return 0
	}
	return len(data)
}

func generatedGuestID(now time.Time) string {
	return "guest_" + strconv.FormatInt(now.UnixMilli(), 10) + "_" + uuid.NewString()[:8]
}
