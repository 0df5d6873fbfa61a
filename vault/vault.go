// Package vault manages the lifecycle of a passphrase-protected mnemonic:
// first-time creation, unlocking, and passphrase rotation.
//
// The key protecting a vault is derived in two stages. The passphrase is
// stretched with scrypt under a per-vault salt, and the result is combined
// with a server-held pepper through HKDF. Only the salt, cost parameters,
// IV and ciphertext are persisted.
package vault

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmcleod/seedvault/crypto"
	"github.com/jmcleod/seedvault/internal/util"
	"github.com/jmcleod/seedvault/internal/uuid"
	"github.com/jmcleod/seedvault/pepper"
	"github.com/jmcleod/seedvault/storage"
)

// MnemonicFactory produces a new mnemonic. It is called only when a vault
// is being created; the manager never generates mnemonics itself.
type MnemonicFactory func() (string, error)

// StaticMnemonic returns a factory that always yields mnemonic.
func StaticMnemonic(mnemonic string) MnemonicFactory {
	return func() (string, error) {
		return mnemonic, nil
	}
}

// Result is returned by CreateOrUnlockVault.
type Result struct {
	Mnemonic string
	// Created is true when this call created the vault.
	Created bool
}

// Manager creates, unlocks and re-keys vaults held in a storage.Repository.
// It keeps no state between calls and holds no locks; concurrent creation
// of the same vault is resolved by the repository's conflict detection.
type Manager struct {
	repo      storage.Repository
	peppers   pepper.Provider
	params    crypto.ScryptParams
	vaultName string
	policy    PassphrasePolicy
	logger    *slog.Logger
}

// New returns a Manager storing blobs in repo and obtaining peppers from peppers.
func New(repo storage.Repository, peppers pepper.Provider, opts ...Option) *Manager {
	m := &Manager{
		repo:      repo,
		peppers:   peppers,
		params:    crypto.DefaultScryptParams(),
		vaultName: storage.DefaultVaultName,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// VaultName returns the name of the vault the manager operates on.
func (m *Manager) VaultName() string {
	return m.vaultName
}

// CreateOrUnlockVault returns the user's mnemonic, creating the vault with
// a mnemonic from factory if none exists yet. factory is only required on
// the create path.
//
// If another caller creates the same vault concurrently, the freshly
// generated mnemonic is discarded and the stored vault is unlocked with
// passphrase instead. A wrong passphrase yields an error matching both
// ErrUnlockFailed and crypto.ErrAuthenticationFailed.
func (m *Manager) CreateOrUnlockVault(ctx context.Context, userID, passphrase string, factory MnemonicFactory) (*Result, error) {
	if err := validateUserID(userID); err != nil {
		return nil, err
	}
	log := newOpLogger(m.logger, uuid.New(), userID, m.vaultName)

	blob, err := m.repo.ReadBlob(ctx, userID, m.vaultName)
	if err == nil {
		return m.unlock(ctx, log, passphrase, blob)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("reading vault: %w", err)
	}

	if factory == nil {
		return nil, fmt.Errorf("%w: no mnemonic factory", ErrInvalidMnemonic)
	}
	if err := m.checkPassphrase(passphrase); err != nil {
		log.failure(ctx, EventPassphraseRefused, err)
		return nil, err
	}
	mnemonic, err := factory()
	if err != nil {
		return nil, fmt.Errorf("generating mnemonic: %w", err)
	}
	if mnemonic == "" {
		return nil, fmt.Errorf("%w: factory returned an empty mnemonic", ErrInvalidMnemonic)
	}

	blob, err = m.seal(ctx, passphrase, mnemonic, m.params)
	if err != nil {
		return nil, err
	}
	err = m.repo.WriteBlob(ctx, userID, m.vaultName, blob)
	if errors.Is(err, storage.ErrConflict) {
		log.event(ctx, EventCreateConflict)
		blob, err = m.repo.ReadBlob(ctx, userID, m.vaultName)
		if err != nil {
			return nil, fmt.Errorf("reading vault after conflict: %w", err)
		}
		return m.unlock(ctx, log, passphrase, blob)
	}
	if err != nil {
		return nil, fmt.Errorf("writing vault: %w", err)
	}

	log.event(ctx, EventVaultCreated, paramAttrs(blob.Params)...)
	return &Result{Mnemonic: mnemonic, Created: true}, nil
}

// ChangePassphrase re-encrypts the user's mnemonic under newPassphrase
// with a fresh salt, a fresh IV and the manager's current cost parameters.
// The stored blob is replaced only after the new blob has been built and
// verified in memory; on any earlier failure the old passphrase keeps
// working. If the repository supports it, the replace only succeeds when
// the stored blob is still the one that was opened, and a concurrent
// rotation yields ErrConcurrentChange.
func (m *Manager) ChangePassphrase(ctx context.Context, userID, oldPassphrase, newPassphrase string) error {
	if err := validateUserID(userID); err != nil {
		return err
	}
	log := newOpLogger(m.logger, uuid.New(), userID, m.vaultName)

	old, err := m.repo.ReadBlob(ctx, userID, m.vaultName)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoVault
	}
	if err != nil {
		return fmt.Errorf("reading vault: %w", err)
	}

	if err := m.checkPassphrase(newPassphrase); err != nil {
		log.failure(ctx, EventPassphraseRefused, err)
		return err
	}

	mnemonic, err := m.open(ctx, log, oldPassphrase, old)
	if err != nil {
		return err
	}

	blob, err := m.seal(ctx, newPassphrase, mnemonic, m.params)
	if err != nil {
		return err
	}
	err = m.replace(ctx, userID, old, blob)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoVault
	}
	if errors.Is(err, storage.ErrCASFailed) {
		log.event(ctx, EventChangeConflict)
		return ErrConcurrentChange
	}
	if err != nil {
		return fmt.Errorf("replacing vault: %w", err)
	}

	log.event(ctx, EventPassphraseChanged, paramAttrs(blob.Params)...)
	return nil
}

// replace writes blob over old, refusing if the stored blob is no longer
// old when the repository can tell.
func (m *Manager) replace(ctx context.Context, userID string, old, blob *storage.CipherBlob) error {
	if swapper, ok := m.repo.(storage.Swapper); ok {
		return swapper.SwapBlob(ctx, userID, m.vaultName, old.Salt, blob)
	}
	return m.repo.ReplaceBlob(ctx, userID, m.vaultName, blob)
}

func (m *Manager) unlock(ctx context.Context, log *opLogger, passphrase string, blob *storage.CipherBlob) (*Result, error) {
	mnemonic, err := m.open(ctx, log, passphrase, blob)
	if err != nil {
		return nil, err
	}
	log.event(ctx, EventVaultUnlocked)
	return &Result{Mnemonic: mnemonic, Created: false}, nil
}

// open decrypts blob with the stored salt and parameters.
func (m *Manager) open(ctx context.Context, log *opLogger, passphrase string, blob *storage.CipherBlob) (string, error) {
	if err := blob.Validate(); err != nil {
		return "", fmt.Errorf("stored vault: %w", err)
	}
	key, err := m.deriveKey(ctx, passphrase, blob.Salt, blob.Params)
	if err != nil {
		return "", err
	}
	defer key.Destroy()

	plaintext, err := crypto.Decrypt(key, blob.IV, blob.Ciphertext)
	if err != nil {
		log.failure(ctx, EventUnlockFailed, err)
		return "", fmt.Errorf("%w: %w", ErrUnlockFailed, err)
	}
	defer util.WipeBytes(plaintext)
	return string(plaintext), nil
}

// seal encrypts mnemonic under a key derived from passphrase, a new salt
// and params, then checks the result decrypts back to mnemonic.
func (m *Manager) seal(ctx context.Context, passphrase, mnemonic string, params crypto.ScryptParams) (*storage.CipherBlob, error) {
	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	key, err := m.deriveKey(ctx, passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	plaintext := []byte(mnemonic)
	defer util.WipeBytes(plaintext)

	iv, ciphertext, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return nil, err
	}
	check, err := crypto.Decrypt(key, iv, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("verifying new vault: %w", err)
	}
	defer util.WipeBytes(check)
	if subtle.ConstantTimeCompare(check, plaintext) != 1 {
		return nil, fmt.Errorf("verifying new vault: %w", crypto.ErrAuthenticationFailed)
	}

	return &storage.CipherBlob{
		Version:    storage.CurrentBlobVersion,
		Params:     params,
		Salt:       salt,
		IV:         iv,
		Ciphertext: ciphertext,
	}, nil
}

func (m *Manager) deriveKey(ctx context.Context, passphrase string, salt []byte, params crypto.ScryptParams) (*crypto.Key, error) {
	pep, err := m.peppers.Pepper(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining pepper: %w", err)
	}
	defer util.WipeBytes(pep)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hardened, err := crypto.DeriveHardenedKey(passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(hardened)

	return crypto.DeriveEncryptionKey(hardened, pep, crypto.MnemonicKeyInfo)
}

func paramAttrs(p crypto.ScryptParams) []slog.Attr {
	return []slog.Attr{
		slog.Int("scrypt_n", p.N),
		slog.Int("scrypt_r", p.R),
		slog.Int("scrypt_p", p.P),
	}
}
