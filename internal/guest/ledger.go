// Package guest implements the guest quota ledger: opaque link tokens that
// allow a limited number of prints per calendar day.
package guest

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/iliyamo/receipt-printer/internal/clock"
	"github.com/iliyamo/receipt-printer/internal/model"
	"github.com/iliyamo/receipt-printer/internal/repository"
)

// tokenBytes of randomness back every token (192 bits).
const tokenBytes = 24

// DefaultName is used when a guest is created without a display name.
const DefaultName = "Guest"

var (
	// ErrNotPermitted is the common cause of every business refusal.
	// Guest-facing code should only ever test for this one.
	ErrNotPermitted = errors.New("guest: not permitted")
	// ErrInvalidToken covers unknown and revoked tokens alike.
	ErrInvalidToken = fmt.Errorf("%w: invalid or revoked token", ErrNotPermitted)
	// ErrQuotaExhausted means today's prints are used up.
	ErrQuotaExhausted = fmt.Errorf("%w: daily quota exhausted", ErrNotPermitted)
	// ErrInvalidQuota rejects a non-positive quota on create.
	ErrInvalidQuota = errors.New("guest: quota per day must be positive")
)

// Store persists guest tokens. Update must run fn and persist its result
// as one atomic step, and must leave stored state untouched when fn or
// the write fails. Missing tokens are reported as repository.ErrNotFound.
type Store interface {
	Get(ctx context.Context, token string) (model.GuestToken, error)
	List(ctx context.Context) (map[string]model.GuestToken, error)
	Insert(ctx context.Context, token string, rec model.GuestToken) error
	Update(ctx context.Context, token string, fn func(*model.GuestToken) error) (model.GuestToken, error)
}

// Entry is one row of the admin listing.
type Entry struct {
	Token          string
	Record         model.GuestToken
	RemainingToday int
}

// Ledger applies quota rules on top of a Store.
type Ledger struct {
	store Store
	clock clock.Clock
	rand  io.Reader
}

// NewLedger returns a ledger whose quota day follows clk.
func NewLedger(store Store, clk clock.Clock) *Ledger {
	return &Ledger{store: store, clock: clk, rand: rand.Reader}
}

// Today is the current quota day key.
func (l *Ledger) Today() string { return clock.Today(l.clock) }

// Create issues a new active token for name with the given daily quota.
func (l *Ledger) Create(ctx context.Context, name string, quotaPerDay int) (string, error) {
	if quotaPerDay < 1 {
		return "", ErrInvalidQuota
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	token, err := newToken(l.rand)
	if err != nil {
		return "", err
	}
	rec := model.GuestToken{
		Name:        name,
		Created:     l.clock.Now().Unix(),
		Active:      true,
		QuotaPerDay: quotaPerDay,
		Used:        map[string]int{},
	}
	if err := l.store.Insert(ctx, token, rec); err != nil {
		return "", fmt.Errorf("guest: create: %w", err)
	}
	return token, nil
}

// Validate returns the record for an existing, active token. Unknown and
// revoked tokens both report ok=false.
func (l *Ledger) Validate(ctx context.Context, token string) (model.GuestToken, bool, error) {
	rec, err := l.store.Get(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return model.GuestToken{}, false, nil
	}
	if err != nil {
		return model.GuestToken{}, false, fmt.Errorf("guest: validate: %w", err)
	}
	if !rec.Active {
		return model.GuestToken{}, false, nil
	}
	return rec, true, nil
}

// RemainingToday returns the prints left today, 0 for unusable tokens.
func (l *Ledger) RemainingToday(ctx context.Context, token string) (int, error) {
	rec, ok, err := l.Validate(ctx, token)
	if err != nil || !ok {
		return 0, err
	}
	return rec.Remaining(l.Today()), nil
}

// Consume records one print for today. Business refusals return
// ErrInvalidToken or ErrQuotaExhausted; any other error is a storage
// failure and nothing was counted.
func (l *Ledger) Consume(ctx context.Context, token string) (model.GuestToken, error) {
	day := l.Today()
	rec, err := l.store.Update(ctx, token, func(g *model.GuestToken) error {
		if !g.Active {
			return ErrInvalidToken
		}
		if g.UsedOn(day) >= g.QuotaPerDay {
			return ErrQuotaExhausted
		}
		if g.Used == nil {
			g.Used = map[string]int{}
		}
		g.Used[day]++
		return nil
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.GuestToken{}, ErrInvalidToken
	case errors.Is(err, ErrNotPermitted):
		return model.GuestToken{}, err
	case err != nil:
		return model.GuestToken{}, fmt.Errorf("guest: consume: %w", err)
	}
	return rec, nil
}

// Revoke deactivates token permanently. Revoking an inactive token
// succeeds again; unknown tokens report false.
func (l *Ledger) Revoke(ctx context.Context, token string) (bool, error) {
	_, err := l.store.Update(ctx, token, func(g *model.GuestToken) error {
		g.Active = false
		return nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("guest: revoke: %w", err)
	}
	return true, nil
}

// List returns every token, newest first, with today's remaining quota.
func (l *Ledger) List(ctx context.Context) ([]Entry, error) {
	all, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("guest: list: %w", err)
	}
	day := l.Today()
	out := make([]Entry, 0, len(all))
	for tok, rec := range all {
		out = append(out, Entry{Token: tok, Record: rec, RemainingToday: rec.Remaining(day)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Record.Created != out[j].Record.Created {
			return out[i].Record.Created > out[j].Record.Created
		}
		return out[i].Token < out[j].Token
	})
	return out, nil
}

func newToken(r io.Reader) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("guest: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
