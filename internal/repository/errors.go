// Package repository holds the persistent stores behind the guest ledger
// and the sentinel errors they share. Higher layers match these with
// errors.Is; for example ErrNotFound is how the ledger learns that a
// token does not exist, without caring which backend answered.
package repository

import "errors"

// ErrNotFound is returned when the requested token has no record.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert collides with an existing
// token. With 192-bit random tokens this indicates a broken generator.
var ErrConflict = errors.New("conflict")
