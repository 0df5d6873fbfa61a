// Package bbolt provides a BBolt-backed storage repository.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmcleod/seedvault/internal/util"
	"github.com/jmcleod/seedvault/storage"
	"go.etcd.io/bbolt"
)

var rootBucket = []byte("vault_blobs")

// Store implements storage.Repository backed by a BBolt database. Each user
// gets a nested bucket keyed by vault name; values are JSON storage.Records.
type Store struct {
	db *bbolt.DB
}

var (
	_ storage.Repository = (*Store)(nil)
	_ storage.Swapper    = (*Store)(nil)
)

// NewRepository returns a Repository backed by the given BBolt database.
func NewRepository(db *bbolt.DB) *Store {
	return &Store{db: db}
}

// NewRepositoryFromFile opens a BBolt database at the given path and returns a new Repository.
func NewRepositoryFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewRepository(db), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func userBucket(tx *bbolt.Tx, userID string) *bbolt.Bucket {
	root := tx.Bucket(rootBucket)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(userID))
}

func (s *Store) ReadBlob(ctx context.Context, userID, vaultName string) (*storage.CipherBlob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec storage.Record
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := userBucket(tx, userID)
		if b == nil {
			return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrNotFound)
		}
		data := b.Get([]byte(vaultName))
		if data == nil {
			return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrNotFound)
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.Blob()
}

func (s *Store) WriteBlob(ctx context.Context, userID, vaultName string, blob *storage.CipherBlob) error {
	return s.put(ctx, userID, vaultName, blob, putCreate, nil)
}

func (s *Store) ReplaceBlob(ctx context.Context, userID, vaultName string, blob *storage.CipherBlob) error {
	return s.put(ctx, userID, vaultName, blob, putReplace, nil)
}

func (s *Store) SwapBlob(ctx context.Context, userID, vaultName string, oldSalt []byte, blob *storage.CipherBlob) error {
	return s.put(ctx, userID, vaultName, blob, putSwap, oldSalt)
}

type putMode int

const (
	putCreate putMode = iota
	putReplace
	putSwap
)

func (s *Store) put(ctx context.Context, userID, vaultName string, blob *storage.CipherBlob, mode putMode, oldSalt []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := blob.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(blob.Record())
	if err != nil {
		return err
	}
	// bbolt serializes writers, so the checks and the put below cannot
	// interleave with another writer.
	return s.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(rootBucket)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists([]byte(userID))
		if err != nil {
			return err
		}
		existing := b.Get([]byte(vaultName))
		switch {
		case mode == putCreate && existing != nil:
			return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrConflict)
		case mode != putCreate && existing == nil:
			return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrNotFound)
		case mode == putSwap:
			var rec storage.Record
			if err := json.Unmarshal(existing, &rec); err != nil {
				return err
			}
			if rec.Salt != util.Base64Encode(oldSalt) {
				return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrCASFailed)
			}
		}
		return b.Put([]byte(vaultName), data)
	})
}
