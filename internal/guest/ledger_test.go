package guest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/receipt-printer/internal/clock"
	"github.com/iliyamo/receipt-printer/internal/model"
	"github.com/iliyamo/receipt-printer/internal/repository"
)

var zurich = mustLoc("Europe/Zurich")

func mustLoc(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, 2*3600)
	}
	return loc
}

// movable is a clock tests can advance between calls.
type movable struct {
	mu  sync.Mutex
	now time.Time
}

func (m *movable) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *movable) set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

func newFileLedger(t *testing.T, clk clock.Clock) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guest_tokens.json")
	repo, err := repository.OpenGuestFile(path)
	if err != nil {
		t.Fatalf("OpenGuestFile: %v", err)
	}
	return NewLedger(repo, clk), path
}

func TestCreateConsumeUntilExhausted(t *testing.T) {
	ctx := context.Background()
	clk := &movable{now: time.Date(2025, 8, 25, 10, 0, 0, 0, zurich)}
	l, _ := newFileLedger(t, clk)

	tok, err := l.Create(ctx, "Ana", 3)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if len(tok) != 32 {
		t.Fatalf("token length = %d, want 32", len(tok))
	}
	if n, _ := l.RemainingToday(ctx, tok); n != 3 {
		t.Fatalf("remaining = %d, want 3", n)
	}
	for i := 0; i < 3; i++ {
		if _, err := l.Consume(ctx, tok); err != nil {
			t.Fatalf("consume %d: %v", i+1, err)
		}
	}
	if _, err := l.Consume(ctx, tok); !errors.Is(err, ErrQuotaExhausted) || !errors.Is(err, ErrNotPermitted) {
		t.Fatalf("4th consume err = %v, want ErrQuotaExhausted", err)
	}
	if n, _ := l.RemainingToday(ctx, tok); n != 0 {
		t.Fatalf("remaining = %d, want 0", n)
	}

	clk.set(time.Date(2025, 8, 26, 0, 0, 1, 0, zurich))
	if n, _ := l.RemainingToday(ctx, tok); n != 3 {
		t.Fatalf("next day remaining = %d, want 3", n)
	}
	rec, err := l.Consume(ctx, tok)
	if err != nil {
		t.Fatalf("next day consume: %v", err)
	}
	if rec.Used["2025-08-25"] != 3 || rec.Used["2025-08-26"] != 1 {
		t.Fatalf("used = %v", rec.Used)
	}
}

func TestQuotaDayFollowsClockLocation(t *testing.T) {
	ctx := context.Background()
	// 23:30 UTC is already the next day in Zurich.
	clk := clock.Fixed(time.Date(2025, 8, 25, 23, 30, 0, 0, time.UTC).In(zurich))
	l, _ := newFileLedger(t, clk)
	tok, _ := l.Create(ctx, "Ben", 1)
	rec, err := l.Consume(ctx, tok)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if rec.Used["2025-08-26"] != 1 {
		t.Fatalf("used = %v, want bucket 2025-08-26", rec.Used)
	}
}

func TestCreateDefaultsAndValidation(t *testing.T) {
	ctx := context.Background()
	l, _ := newFileLedger(t, clock.Fixed(time.Unix(1_700_000_000, 0)))

	if _, err := l.Create(ctx, "x", 0); !errors.Is(err, ErrInvalidQuota) {
		t.Fatalf("quota 0: err = %v, want ErrInvalidQuota", err)
	}
	tok, err := l.Create(ctx, "   ", 2)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec, ok, err := l.Validate(ctx, tok)
	if err != nil || !ok {
		t.Fatalf("Validate = %v, %v", ok, err)
	}
	if rec.Name != DefaultName || rec.Created != 1_700_000_000 || !rec.Active || rec.QuotaPerDay != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestTokensAreUnique(t *testing.T) {
	ctx := context.Background()
	l, _ := newFileLedger(t, clock.Fixed(time.Now()))
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		tok, err := l.Create(ctx, "", 1)
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	l, _ := newFileLedger(t, clock.Fixed(time.Now()))
	tok, _ := l.Create(ctx, "Cleo", 5)

	for i := 0; i < 2; i++ {
		ok, err := l.Revoke(ctx, tok)
		if err != nil || !ok {
			t.Fatalf("revoke #%d = %v, %v; want true", i+1, ok, err)
		}
	}
	if _, ok, _ := l.Validate(ctx, tok); ok {
		t.Fatalf("revoked token still validates")
	}
	if n, _ := l.RemainingToday(ctx, tok); n != 0 {
		t.Fatalf("revoked remaining = %d", n)
	}
	if _, err := l.Consume(ctx, tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("consume revoked: err = %v, want ErrInvalidToken", err)
	}
	if ok, err := l.Revoke(ctx, "nope"); err != nil || ok {
		t.Fatalf("revoke unknown = %v, %v; want false", ok, err)
	}
}

func TestUnknownTokenIsInvalid(t *testing.T) {
	ctx := context.Background()
	l, _ := newFileLedger(t, clock.Fixed(time.Now()))
	if _, ok, err := l.Validate(ctx, "missing"); ok || err != nil {
		t.Fatalf("Validate = %v, %v", ok, err)
	}
	if _, err := l.Consume(ctx, "missing"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
}

func TestConcurrentConsumeNeverExceedsQuota(t *testing.T) {
	ctx := context.Background()
	l, _ := newFileLedger(t, clock.Fixed(time.Now()))
	const quota, workers = 5, 40
	tok, _ := l.Create(ctx, "Dana", quota)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, deny int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Consume(ctx, tok)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrQuotaExhausted):
				deny++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != quota || deny != workers-quota {
		t.Fatalf("ok=%d deny=%d, want %d/%d", ok, deny, quota, workers-quota)
	}
}

func TestLedgerSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Date(2025, 1, 2, 12, 0, 0, 0, zurich))
	l, path := newFileLedger(t, clk)
	tok, _ := l.Create(ctx, "Eli", 2)
	if _, err := l.Consume(ctx, tok); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	repo, err := repository.OpenGuestFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	again := NewLedger(repo, clk)
	if n, _ := again.RemainingToday(ctx, tok); n != 1 {
		t.Fatalf("remaining after reopen = %d, want 1", n)
	}
}

// brokenStore reads from an inner store but fails every write.
type brokenStore struct{ Store }

var errDisk = errors.New("disk full")

func (b brokenStore) Insert(context.Context, string, model.GuestToken) error { return errDisk }

func (b brokenStore) Update(ctx context.Context, token string, fn func(*model.GuestToken) error) (model.GuestToken, error) {
	rec, err := b.Store.Get(ctx, token)
	if err != nil {
		return model.GuestToken{}, err
	}
	if err := fn(&rec); err != nil {
		return model.GuestToken{}, err
	}
	return model.GuestToken{}, errDisk
}

func TestStorageFailureIsNotABusinessRefusal(t *testing.T) {
	ctx := context.Background()
	clk := clock.Fixed(time.Now())
	l, path := newFileLedger(t, clk)
	tok, _ := l.Create(ctx, "Finn", 1)

	repo, _ := repository.OpenGuestFile(path)
	broken := NewLedger(brokenStore{repo}, clk)

	_, err := broken.Consume(ctx, tok)
	if !errors.Is(err, errDisk) || errors.Is(err, ErrNotPermitted) {
		t.Fatalf("err = %v, want wrapped disk error", err)
	}
	if n, _ := broken.RemainingToday(ctx, tok); n != 1 {
		t.Fatalf("failed consume was counted: remaining %d", n)
	}
	if _, err := broken.Create(ctx, "Gia", 1); !errors.Is(err, errDisk) {
		t.Fatalf("create err = %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	clk := &movable{now: time.Unix(1000, 0)}
	l, _ := newFileLedger(t, clk)
	first, _ := l.Create(ctx, "first", 1)
	clk.set(time.Unix(2000, 0))
	second, _ := l.Create(ctx, "second", 2)
	if _, err := l.Consume(ctx, second); err != nil {
		t.Fatalf("Consume: %v", err)
	}

	entries, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 || entries[0].Token != second || entries[1].Token != first {
		t.Fatalf("order = %+v", entries)
	}
	if entries[0].RemainingToday != 1 || entries[1].RemainingToday != 1 {
		t.Fatalf("remaining = %d/%d", entries[0].RemainingToday, entries[1].RemainingToday)
	}
}
