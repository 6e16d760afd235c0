package verification

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kevinaaaquil/readersync/models"
	"github.com/kevinaaaquil/readersync/store"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *store.Memory, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)}
	mem := store.NewMemory()
	return NewService(mem, WithClock(clock.Now)), mem, clock
}

// countingStore fails the test if the store is reached.
type countingStore struct {
	store.TokenStore
	t *testing.T
}

func (c countingStore) ConsumeToken(context.Context, string, models.TokenType, time.Time) (*models.VerificationToken, error) {
	c.t.Fatalf("store must not be queried for malformed codes")
	return nil, nil
}

func TestCreateTokenShape(t *testing.T) {
	svc, _, clock := newTestService(t)
	tok, err := svc.CreateToken(context.Background(), CreateRequest{
		Email: "  Reader@Example.com ", Type: models.TokenProgressBackup, GuestID: "guest_abc",
		IPAddress: "10.0.0.1", UserAgent: "test",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !ValidCode(tok.Code) {
		t.Fatalf("code %q is not 6 digits", tok.Code)
	}
	if tok.Token == "" || tok.Token == tok.Code {
		t.Fatalf("opaque token id must be distinct from the code: %+v", tok)
	}
	if tok.Email != "reader@example.com" || tok.GuestID != "guest_abc" || tok.IsUsed {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if want := clock.Now().Add(24 * time.Hour); !tok.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", tok.ExpiresAt, want)
	}
}

func TestCreateTokenValidation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	if _, err := svc.CreateToken(ctx, CreateRequest{Email: "not-an-email"}); !errors.Is(err, ErrInvalidEmail) {
		t.Fatalf("expected ErrInvalidEmail, got %v", err)
	}
	if _, err := svc.CreateToken(ctx, CreateRequest{Email: ""}); !errors.Is(err, ErrEmailRequired) {
		t.Fatalf("expected ErrEmailRequired, got %v", err)
	}
	if _, err := svc.CreateToken(ctx, CreateRequest{Email: "a@example.com", Type: "magic-link"}); !errors.Is(err, ErrInvalidTokenType) {
		t.Fatalf("expected ErrInvalidTokenType, got %v", err)
	}
}

func TestCreateTokenReusesPending(t *testing.T) {
	svc, mem, clock := newTestService(t)
	ctx := context.Background()
	req := CreateRequest{Email: "a@example.com", Type: models.TokenProgressBackup}

	first, err := svc.CreateToken(ctx, req)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	clock.Advance(10 * time.Minute)
	second, err := svc.CreateToken(ctx, req)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.Token != second.Token || first.Code != second.Code {
		t.Fatalf("expected the same pending token, got %s and %s", first.Token, second.Token)
	}

	other, err := svc.CreateToken(ctx, CreateRequest{Email: "a@example.com", Type: models.TokenAccountRecovery})
	if err != nil {
		t.Fatalf("create other type: %v", err)
	}
	if other.Token == first.Token {
		t.Fatalf("different types must not share a token")
	}
	if n := len(mem.Tokens()); n != 2 {
		t.Fatalf("expected 2 stored tokens, got %d", n)
	}
}

func TestCreateTokenAfterExpiryReplacesStale(t *testing.T) {
	svc, mem, clock := newTestService(t)
	ctx := context.Background()
	req := CreateRequest{Email: "a@example.com", Type: models.TokenPasswordReset}

	first, _ := svc.CreateToken(ctx, req)
	clock.Advance(time.Hour + time.Second)
	second, err := svc.CreateToken(ctx, req)
	if err != nil {
		t.Fatalf("create after expiry: %v", err)
	}
	if second.Token == first.Token {
		t.Fatalf("expired token must not be reused")
	}
	if n := len(mem.Tokens()); n != 1 {
		t.Fatalf("stale token should be purged, have %d tokens", n)
	}
}

func TestCreateTokenConcurrentCallersShareOneToken(t *testing.T) {
	svc, mem, _ := newTestService(t)
	const workers = 8
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	results := make(chan string, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			tok, err := svc.CreateToken(context.Background(), CreateRequest{Email: "race@example.com", Type: models.TokenProgressBackup})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			results <- tok.Token
		}()
	}
	close(start)
	wg.Wait()
	close(results)

	seen := map[string]bool{}
	for tok := range results {
		seen[tok] = true
	}
	if len(seen) != 1 {
		t.Fatalf("expected all callers to get one token, got %d distinct", len(seen))
	}
	if n := len(mem.Tokens()); n != 1 {
		t.Fatalf("expected 1 stored token, got %d", n)
	}
}

func TestVerifyTokenSingleUse(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	tok, _ := svc.CreateToken(ctx, CreateRequest{Email: "a@example.com", Type: models.TokenProgressBackup})

	got, err := svc.VerifyToken(ctx, tok.Code, models.TokenProgressBackup)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !got.IsUsed || got.UsedAt == nil {
		t.Fatalf("token not marked used: %+v", got)
	}
	if _, err := svc.VerifyToken(ctx, tok.Code, models.TokenProgressBackup); !errors.Is(err, ErrNotFoundOrExpired) {
		t.Fatalf("second verify should fail with ErrNotFoundOrExpired, got %v", err)
	}
}

func TestVerifyTokenConcurrentExactlyOneWins(t *testing.T) {
	svc, _, _ := newTestService(t)
	tok, _ := svc.CreateToken(context.Background(), CreateRequest{Email: "a@example.com", Type: models.TokenAccountRecovery})

	const workers = 2
	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.VerifyToken(context.Background(), tok.Code, models.TokenAccountRecovery)
			errs <- err
		}()
	}
	close(start)
	wg.Wait()
	close(errs)

	var ok, notFound int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNotFoundOrExpired):
			notFound++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || notFound != 1 {
		t.Fatalf("expected one success and one failure, got ok=%d notFound=%d", ok, notFound)
	}
}

func TestVerifyTokenExpiry(t *testing.T) {
	cases := []struct {
		name    string
		typ     models.TokenType
		elapsed time.Duration
		valid   bool
	}{
		{"password reset within the hour", models.TokenPasswordReset, 59 * time.Minute, true},
		{"password reset after an hour", models.TokenPasswordReset, time.Hour + time.Second, false},
		{"backup at 23h59m", models.TokenProgressBackup, 23*time.Hour + 59*time.Minute, true},
		{"backup at 24h01m", models.TokenProgressBackup, 24*time.Hour + time.Minute, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, _, clock := newTestService(t)
			ctx := context.Background()
			tok, err := svc.CreateToken(ctx, CreateRequest{Email: "a@example.com", Type: tc.typ})
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			clock.Advance(tc.elapsed)
			_, err = svc.VerifyToken(ctx, tok.Code, tc.typ)
			if tc.valid && err != nil {
				t.Fatalf("expected valid token, got %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrNotFoundOrExpired) {
				t.Fatalf("expected ErrNotFoundOrExpired, got %v", err)
			}
		})
	}
}

func TestVerifyTokenWrongType(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	tok, _ := svc.CreateToken(ctx, CreateRequest{Email: "a@example.com", Type: models.TokenEmailVerification})
	if _, err := svc.VerifyToken(ctx, tok.Code, models.TokenProgressBackup); !errors.Is(err, ErrNotFoundOrExpired) {
		t.Fatalf("expected ErrNotFoundOrExpired for mismatched type, got %v", err)
	}
	if _, err := svc.VerifyToken(ctx, tok.Code, models.TokenEmailVerification); err != nil {
		t.Fatalf("token should still be usable with its own type: %v", err)
	}
}

func TestVerifyTokenRejectsMalformedCodeLocally(t *testing.T) {
	svc := NewService(countingStore{TokenStore: store.NewMemory(), t: t})
	for _, code := range []string{"", "12345", "1234567", "12a456", "abcdef"} {
		if _, err := svc.VerifyToken(context.Background(), code, models.TokenProgressBackup); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("code %q: expected ErrInvalidCode, got %v", code, err)
		}
	}
}

func TestRecordFailedAttempt(t *testing.T) {
	svc, mem, _ := newTestService(t)
	ctx := context.Background()
	tok, _ := svc.CreateToken(ctx, CreateRequest{Email: "a@example.com", Type: models.TokenProgressBackup})

	if err := svc.RecordFailedAttempt(ctx, tok.Code); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.RecordFailedAttempt(ctx, tok.Code); err != nil {
		t.Fatalf("record: %v", err)
	}
	stored := mem.Tokens()[0]
	if stored.Attempts != 2 || stored.LastAttemptAt == nil || stored.IsUsed {
		t.Fatalf("unexpected token after failed attempts: %+v", stored)
	}
	if _, err := svc.VerifyToken(ctx, tok.Code, models.TokenProgressBackup); err != nil {
		t.Fatalf("attempts must not block verification: %v", err)
	}
}

func TestHasPending(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	pending, err := svc.HasPending(ctx, "a@example.com", models.TokenProgressBackup)
	if err != nil || pending {
		t.Fatalf("expected no pending token, got %v %v", pending, err)
	}
	_, _ = svc.CreateToken(ctx, CreateRequest{Email: "a@example.com", Type: models.TokenProgressBackup})
	if pending, _ = svc.HasPending(ctx, "A@example.com", ""); !pending {
		t.Fatalf("expected pending token")
	}
	clock.Advance(25 * time.Hour)
	if pending, _ = svc.HasPending(ctx, "a@example.com", models.TokenProgressBackup); pending {
		t.Fatalf("expired token should not count as pending")
	}
	if _, err := svc.HasPending(ctx, "bad", models.TokenProgressBackup); !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCleanupAndStatistics(t *testing.T) {
	svc, _, clock := newTestService(t)
	ctx := context.Background()
	_, _ = svc.CreateToken(ctx, CreateRequest{Email: "a@example.com", Type: models.TokenPasswordReset})
	_, _ = svc.CreateToken(ctx, CreateRequest{Email: "b@example.com", Type: models.TokenProgressBackup})
	clock.Advance(2 * time.Hour)

	stats, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 || stats.Active != 1 || stats.Expired != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	n, err := svc.CleanupExpired(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected to remove one token, got %d (%v)", n, err)
	}
}

func TestVerificationURL(t *testing.T) {
	tok := &models.VerificationToken{Code: "123456", Email: "a@example.com", Type: models.TokenAccountRecovery}
	got := VerificationURL("https://books.example.com/", tok)
	if !strings.HasPrefix(got, "https://books.example.com/recover-account?") || !strings.Contains(got, "code=123456") {
		t.Fatalf("unexpected url %q", got)
	}
	if VerificationURL("", tok) != "" {
		t.Fatalf("expected empty url without base")
	}
}

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"reader@example.com": "r***r@example.com",
		"ab@example.com":     "a***@example.com",
		"nonsense":           "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
