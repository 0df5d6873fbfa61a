// Package storage provides the record-store abstraction for encrypted
// mnemonic blobs. One CipherBlob exists per (user ID, vault name).
package storage

import (
	"context"
	"errors"
)

// DefaultVaultName is the only vault name currently used by clients.
const DefaultVaultName = "default"

var (
	// ErrNotFound is returned when no blob exists for the user and vault
	// name. It is an expected outcome on first use, not a failure.
	ErrNotFound = errors.New("vault blob not found")
	// ErrConflict is returned by WriteBlob when a blob already exists,
	// typically because a concurrent caller created it first.
	ErrConflict = errors.New("vault blob already exists")
	// ErrCASFailed is returned by SwapBlob when the stored blob no longer
	// carries the expected salt.
	ErrCASFailed = errors.New("vault blob changed concurrently")
	// ErrUnsupportedVersion is returned when a stored blob has a schema
	// version this build cannot read.
	ErrUnsupportedVersion = errors.New("unsupported vault blob version")
	// ErrMalformedBlob is returned when a blob is missing required fields.
	ErrMalformedBlob = errors.New("malformed vault blob")
)

// Repository reads and writes cipher blobs. Implementations contain no
// business logic and perform no retries.
type Repository interface {
	// ReadBlob returns ErrNotFound when no blob exists. Every other error
	// is a store failure.
	ReadBlob(ctx context.Context, userID, vaultName string) (*CipherBlob, error)
	// WriteBlob inserts a new blob and returns ErrConflict if one exists.
	// It never overwrites.
	WriteBlob(ctx context.Context, userID, vaultName string, blob *CipherBlob) error
	// ReplaceBlob overwrites an existing blob in a single write and returns
	// ErrNotFound if none exists.
	ReplaceBlob(ctx context.Context, userID, vaultName string, blob *CipherBlob) error
}

// Swapper is implemented by repositories that can replace a blob only if
// it has not changed since it was read. A blob gets a fresh salt on every
// rewrite, so the salt identifies the version being replaced.
type Swapper interface {
	// SwapBlob replaces the stored blob only if its salt equals oldSalt.
	// It returns ErrNotFound if no blob exists and ErrCASFailed if the
	// stored salt differs.
	SwapBlob(ctx context.Context, userID, vaultName string, oldSalt []byte, blob *CipherBlob) error
}
