// Package sqlite implements storage.Repository on a local SQLite database
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jmcleod/seedvault/internal/util"
	"github.com/jmcleod/seedvault/storage"
)

const createVaultBlobsTable = `
CREATE TABLE IF NOT EXISTS vault_blobs (
	user_id    TEXT     NOT NULL,
	vault_name TEXT     NOT NULL,
	version    INTEGER  NOT NULL,
	scrypt_n   INTEGER  NOT NULL,
	scrypt_r   INTEGER  NOT NULL,
	scrypt_p   INTEGER  NOT NULL,
	salt       TEXT     NOT NULL,
	iv         TEXT     NOT NULL,
	ciphertext TEXT     NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(user_id, vault_name)
);
`

// Store implements storage.Repository backed by SQLite.
type Store struct {
	db *sql.DB
}

var (
	_ storage.Repository = (*Store)(nil)
	_ storage.Swapper    = (*Store)(nil)
)

// Open initialises a SQLite database at path, applies the schema and
// returns a Store.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers inside this process.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if runtime.GOOS != "windows" {
		if err := os.Chmod(path, 0o600); err != nil && !os.IsNotExist(err) {
			db.Close()
			return nil, fmt.Errorf("chmod database: %w", err)
		}
	}
	if _, err := db.Exec(createVaultBlobsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ReadBlob(ctx context.Context, userID, vaultName string) (*storage.CipherBlob, error) {
	var rec storage.Record
	err := s.db.QueryRowContext(ctx,
		`SELECT version, scrypt_n, scrypt_r, scrypt_p, salt, iv, ciphertext
		 FROM vault_blobs WHERE user_id = ? AND vault_name = ?`,
		userID, vaultName).Scan(
		&rec.Version, &rec.N, &rec.R, &rec.P, &rec.Salt, &rec.IV, &rec.Ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read vault blob: %w", err)
	}
	return rec.Blob()
}

func (s *Store) WriteBlob(ctx context.Context, userID, vaultName string, blob *storage.CipherBlob) error {
	if err := blob.Validate(); err != nil {
		return err
	}
	rec := blob.Record()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_blobs (user_id, vault_name, version, scrypt_n, scrypt_r, scrypt_p, salt, iv, ciphertext)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, vault_name) DO NOTHING`,
		userID, vaultName, rec.Version, rec.N, rec.R, rec.P, rec.Salt, rec.IV, rec.Ciphertext)
	if err != nil {
		return fmt.Errorf("insert vault blob: %w", err)
	}
	return checkAffected(res, userID, vaultName, storage.ErrConflict)
}

func (s *Store) ReplaceBlob(ctx context.Context, userID, vaultName string, blob *storage.CipherBlob) error {
	if err := blob.Validate(); err != nil {
		return err
	}
	rec := blob.Record()
	res, err := s.db.ExecContext(ctx,
		`UPDATE vault_blobs
		 SET version = ?, scrypt_n = ?, scrypt_r = ?, scrypt_p = ?,
		     salt = ?, iv = ?, ciphertext = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND vault_name = ?`,
		rec.Version, rec.N, rec.R, rec.P, rec.Salt, rec.IV, rec.Ciphertext, userID, vaultName)
	if err != nil {
		return fmt.Errorf("update vault blob: %w", err)
	}
	return checkAffected(res, userID, vaultName, storage.ErrNotFound)
}

// SwapBlob conditions the update on the stored salt. When no row matches,
// a follow-up lookup tells a missing blob from a changed one.
func (s *Store) SwapBlob(ctx context.Context, userID, vaultName string, oldSalt []byte, blob *storage.CipherBlob) error {
	if err := blob.Validate(); err != nil {
		return err
	}
	rec := blob.Record()
	res, err := s.db.ExecContext(ctx,
		`UPDATE vault_blobs
		 SET version = ?, scrypt_n = ?, scrypt_r = ?, scrypt_p = ?,
		     salt = ?, iv = ?, ciphertext = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ? AND vault_name = ? AND salt = ?`,
		rec.Version, rec.N, rec.R, rec.P, rec.Salt, rec.IV, rec.Ciphertext,
		userID, vaultName, util.Base64Encode(oldSalt))
	if err != nil {
		return fmt.Errorf("swap vault blob: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	err = s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vault_blobs WHERE user_id = ? AND vault_name = ?)`,
		userID, vaultName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check vault blob: %w", err)
	}
	if !exists {
		return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrNotFound)
	}
	return fmt.Errorf("%s/%s: %w", userID, vaultName, storage.ErrCASFailed)
}

func checkAffected(res sql.Result, userID, vaultName string, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", userID, vaultName, none)
	}
	return nil
}
