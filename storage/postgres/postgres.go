// Package postgres implements storage.Repository backed by PostgreSQL.
//
// The vault_blobs table has one row per (user_id, vault_name). All record
// fields live in one row, so a blob is always written and read as a unit.
// Binary fields are stored as base64 text, matching storage.Record.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jmcleod/seedvault/internal/util"
	"github.com/jmcleod/seedvault/storage"
)

// Store implements storage.Repository backed by PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ storage.Repository = (*Store)(nil)
	_ storage.Swapper    = (*Store)(nil)
)

// NewRepository returns a Repository backed by the given pgx connection pool.
func NewRepository(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NewRepositoryFromDSN creates a connection pool from a DSN string, ensures
// the schema exists, and returns a new Repository.
func NewRepositoryFromDSN(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return NewRepository(pool), nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) ReadBlob(ctx context.Context, userID, vaultName string) (*storage.CipherBlob, error) {
	var rec storage.Record
	err := s.pool.QueryRow(ctx,
		`SELECT version, scrypt_n, scrypt_r, scrypt_p, salt, iv, ciphertext
		 FROM vault_blobs WHERE user_id = $1 AND vault_name = $2`,
		userID, vaultName).Scan(
		&rec.Version, &rec.N, &rec.R, &rec.P, &rec.Salt, &rec.IV, &rec.Ciphertext)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return rec.Blob()
}

// WriteBlob relies on the primary key: a concurrent insert of the same
// (user_id, vault_name) affects zero rows and is reported as ErrConflict.
func (s *Store) WriteBlob(ctx context.Context, userID, vaultName string, blob *storage.CipherBlob) error {
	if err := blob.Validate(); err != nil {
		return err
	}
	rec := blob.Record()
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO vault_blobs (user_id, vault_name, version, scrypt_n, scrypt_r, scrypt_p, salt, iv, ciphertext)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (user_id, vault_name) DO NOTHING`,
		userID, vaultName, rec.Version, rec.N, rec.R, rec.P, rec.Salt, rec.IV, rec.Ciphertext)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrConflict)
	}
	return nil
}

func (s *Store) ReplaceBlob(ctx context.Context, userID, vaultName string, blob *storage.CipherBlob) error {
	if err := blob.Validate(); err != nil {
		return err
	}
	rec := blob.Record()
	tag, err := s.pool.Exec(ctx,
		`UPDATE vault_blobs
		 SET version = $3, scrypt_n = $4, scrypt_r = $5, scrypt_p = $6,
		     salt = $7, iv = $8, ciphertext = $9, updated_at = now()
		 WHERE user_id = $1 AND vault_name = $2`,
		userID, vaultName, rec.Version, rec.N, rec.R, rec.P, rec.Salt, rec.IV, rec.Ciphertext)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrNotFound)
	}
	return nil
}

// SwapBlob locks the row, compares its salt and updates it in one
// transaction.
func (s *Store) SwapBlob(ctx context.Context, userID, vaultName string, oldSalt []byte, blob *storage.CipherBlob) error {
	if err := blob.Validate(); err != nil {
		return err
	}
	rec := blob.Record()
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var salt string
		err := tx.QueryRow(ctx,
			`SELECT salt FROM vault_blobs WHERE user_id = $1 AND vault_name = $2 FOR UPDATE`,
			userID, vaultName).Scan(&salt)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if salt != util.Base64Encode(oldSalt) {
			return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrCASFailed)
		}
		_, err = tx.Exec(ctx,
			`UPDATE vault_blobs
			 SET version = $3, scrypt_n = $4, scrypt_r = $5, scrypt_p = $6,
			     salt = $7, iv = $8, ciphertext = $9, updated_at = now()
			 WHERE user_id = $1 AND vault_name = $2`,
			userID, vaultName, rec.Version, rec.N, rec.R, rec.P, rec.Salt, rec.IV, rec.Ciphertext)
		return err
	})
}
