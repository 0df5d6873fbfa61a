package vault

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmcleod/seedvault/internal/util"
	"github.com/jmcleod/seedvault/keystore"
)

// Keystore keys used by TempPassphrase.
const (
	TempPassphraseKey       = "seedvault.temp_passphrase"
	TempPassphraseActiveKey = "seedvault.temp_passphrase_active"
)

// Values of TempPassphraseActiveKey. A missing flag means no temporary
// passphrase has been issued yet.
const (
	tempFlagActive  = "true"
	tempFlagUserSet = "false"
)

// tempPassphraseBytes is the entropy of a generated temporary passphrase.
const tempPassphraseBytes = 32

// ErrUserPassphraseSet is returned by GetOrCreate once the user has chosen
// their own passphrase. A temporary passphrase is never issued again.
var ErrUserPassphraseSet = errors.New("vault: passphrase already chosen by the user")

// TempPassphrase manages a device-generated passphrase used until the user
// chooses their own. It only touches the local keystore, never the vault
// repository.
type TempPassphrase struct {
	store keystore.Store
}

func NewTempPassphrase(store keystore.Store) *TempPassphrase {
	return &TempPassphrase{store: store}
}

// GetOrCreate returns the stored temporary passphrase, generating and
// storing a new one (64 hex characters) if none exists. The flag is
// written before the passphrase, so a stored passphrase is always flagged
// as temporary. After MarkUserSet it returns ErrUserPassphraseSet.
func (t *TempPassphrase) GetOrCreate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	flag, err := t.flag()
	if err != nil {
		return "", err
	}
	if flag == tempFlagUserSet {
		return "", ErrUserPassphraseSet
	}

	existing, err := t.store.Get(TempPassphraseKey)
	switch {
	case err == nil:
		if flag != tempFlagActive {
			// A passphrase is never stored unflagged; restore the flag.
			if err := t.store.Set(TempPassphraseActiveKey, tempFlagActive); err != nil {
				return "", fmt.Errorf("flagging temporary passphrase: %w", err)
			}
		}
		return existing, nil
	case !errors.Is(err, keystore.ErrNotFound):
		return "", fmt.Errorf("reading temporary passphrase: %w", err)
	}

	passphrase, err := util.RandomHex(tempPassphraseBytes)
	if err != nil {
		return "", err
	}
	if err := t.store.Set(TempPassphraseActiveKey, tempFlagActive); err != nil {
		return "", fmt.Errorf("flagging temporary passphrase: %w", err)
	}
	if err := t.store.Set(TempPassphraseKey, passphrase); err != nil {
		return "", fmt.Errorf("storing temporary passphrase: %w", err)
	}
	return passphrase, nil
}

// IsTemporary reports whether the current passphrase is the generated one.
func (t *TempPassphrase) IsTemporary(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	flag, err := t.flag()
	if err != nil {
		return false, err
	}
	return flag == tempFlagActive, nil
}

// MarkUserSet records that the user has chosen a passphrase and removes
// the temporary one. The user-set state persists; it is written before the
// passphrase is removed so an interrupted call never reverts to temporary.
func (t *TempPassphrase) MarkUserSet(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.store.Set(TempPassphraseActiveKey, tempFlagUserSet); err != nil {
		return fmt.Errorf("clearing temporary passphrase flag: %w", err)
	}
	if err := t.store.Delete(TempPassphraseKey); err != nil {
		return fmt.Errorf("removing temporary passphrase: %w", err)
	}
	return nil
}

// flag returns the stored flag, or "" if none has been written.
func (t *TempPassphrase) flag() (string, error) {
	flag, err := t.store.Get(TempPassphraseActiveKey)
	if errors.Is(err, keystore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading temporary passphrase flag: %w", err)
	}
	return flag, nil
}
