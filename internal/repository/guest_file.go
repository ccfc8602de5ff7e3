package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/iliyamo/receipt-printer/internal/model"
	"github.com/iliyamo/receipt-printer/internal/utils"
)

// guestFile is the on-disk document: {"tokens": {"<token>": {...}}}.
type guestFile struct {
	Tokens map[string]model.GuestToken `json:"tokens"`
}

// GuestFileRepo stores guest tokens in a single JSON file. The in-memory
// map mirrors the last durable write; every mutation writes a complete
// new file and renames it over the old one before the mirror changes.
type GuestFileRepo struct {
	path string

	mu     sync.Mutex
	tokens map[string]model.GuestToken

	persist func(path string, data []byte) error
}

// OpenGuestFile loads path. A missing file is an empty store; a file that
// exists but cannot be parsed is an error rather than silently discarded.
func OpenGuestFile(path string) (*GuestFileRepo, error) {
	r := &GuestFileRepo{
		path:    path,
		tokens:  map[string]model.GuestToken{},
		persist: utils.WriteFileAtomic,
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read guest store %s: %w", path, err)
	}
	var doc guestFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse guest store %s: %w", path, err)
	}
	for tok, rec := range doc.Tokens {
		if rec.Used == nil {
			rec.Used = map[string]int{}
		}
		r.tokens[tok] = rec
	}
	return r, nil
}

// Path returns the canonical file location.
func (r *GuestFileRepo) Path() string { return r.path }

func (r *GuestFileRepo) Get(_ context.Context, token string) (model.GuestToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.tokens[token]
	if !ok {
		return model.GuestToken{}, ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *GuestFileRepo) List(_ context.Context) (map[string]model.GuestToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]model.GuestToken, len(r.tokens))
	for tok, rec := range r.tokens {
		out[tok] = rec.Clone()
	}
	return out, nil
}

func (r *GuestFileRepo) Insert(_ context.Context, token string, rec model.GuestToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tokens[token]; exists {
		return ErrConflict
	}
	return r.commit(token, rec.Clone())
}

// Update holds the store lock across read, fn, write and mirror swap, so
// concurrent updates of the same token are serialized.
func (r *GuestFileRepo) Update(_ context.Context, token string, fn func(*model.GuestToken) error) (model.GuestToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.tokens[token]
	if !ok {
		return model.GuestToken{}, ErrNotFound
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return model.GuestToken{}, err
	}
	if err := r.commit(token, next); err != nil {
		return model.GuestToken{}, err
	}
	return next.Clone(), nil
}

// commit writes the store with token set to rec and, only on success,
// installs the new state in memory. Caller holds r.mu.
func (r *GuestFileRepo) commit(token string, rec model.GuestToken) error {
	snapshot := make(map[string]model.GuestToken, len(r.tokens)+1)
	for tok, v := range r.tokens {
		snapshot[tok] = v
	}
	snapshot[token] = rec

	data, err := json.MarshalIndent(guestFile{Tokens: snapshot}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode guest store: %w", err)
	}
	if err := r.persist(r.path, data); err != nil {
		return fmt.Errorf("write guest store %s: %w", r.path, err)
	}
	r.tokens = snapshot
	return nil
}
