// Package memory provides a thread-safe in-memory implementation of storage.Repository.
package memory

import (
	"bytes"
	"context"
	"sync"

	"github.com/jmcleod/seedvault/storage"
)

// Repository is a thread-safe in-memory implementation of storage.Repository.
// Suitable for testing, demos, and single-process use cases.
type Repository struct {
	mu   sync.RWMutex
	data map[string]map[string]*storage.CipherBlob
}

var (
	_ storage.Repository = (*Repository)(nil)
	_ storage.Swapper    = (*Repository)(nil)
)

// NewRepository creates a new empty in-memory Repository.
func NewRepository() *Repository {
	return &Repository{data: make(map[string]map[string]*storage.CipherBlob)}
}

func (r *Repository) ReadBlob(ctx context.Context, userID, vaultName string) (*storage.CipherBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	blob, ok := r.data[userID][vaultName]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return blob.Clone(), nil
}

func (r *Repository) WriteBlob(ctx context.Context, userID, vaultName string, blob *storage.CipherBlob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[userID][vaultName]; ok {
		return storage.ErrConflict
	}
	if _, ok := r.data[userID]; !ok {
		r.data[userID] = make(map[string]*storage.CipherBlob)
	}
	r.data[userID][vaultName] = blob.Clone()
	return nil
}

func (r *Repository) ReplaceBlob(ctx context.Context, userID, vaultName string, blob *storage.CipherBlob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[userID][vaultName]; !ok {
		return storage.ErrNotFound
	}
	r.data[userID][vaultName] = blob.Clone()
	return nil
}

func (r *Repository) SwapBlob(ctx context.Context, userID, vaultName string, oldSalt []byte, blob *storage.CipherBlob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.data[userID][vaultName]
	if !ok {
		return storage.ErrNotFound
	}
	if !bytes.Equal(current.Salt, oldSalt) {
		return storage.ErrCASFailed
	}
	r.data[userID][vaultName] = blob.Clone()
	return nil
}

// Len returns the number of stored blobs.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, vaults := range r.data {
		n += len(vaults)
	}
	return n
}
