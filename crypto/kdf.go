package crypto

import (
	"fmt"

	"github.com/jmcleod/seedvault/internal/util"
)

const (
	// SaltSize is the required length of the passphrase salt.
	SaltSize = 16
	// HardenedKeySize is the length of DeriveHardenedKey output.
	HardenedKeySize = util.ScryptKeyLen
)

// ScryptParams are the scrypt cost parameters (N, r, p). They are persisted
// next to every ciphertext and never re-derived.
type ScryptParams = util.ScryptParams

// DefaultScryptParams returns the cost parameters used for new vaults.
func DefaultScryptParams() ScryptParams {
	return util.DefaultScryptParams()
}

// ValidateScryptParams reports whether p is acceptable to DeriveHardenedKey.
func ValidateScryptParams(p ScryptParams) error {
	if err := util.ValidateScryptParams(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}
	return nil
}

// NewSalt returns SaltSize fresh random bytes.
func NewSalt() ([]byte, error) {
	return util.RandomBytes(SaltSize)
}

// DeriveHardenedKey stretches passphrase into HardenedKeySize bytes of key
// material with scrypt. The passphrase is NFKD-normalized first.
//
// The call is CPU and memory bound for the duration set by params; it does
// not hold any locks, so concurrent callers only compete for CPU.
func DeriveHardenedKey(passphrase string, salt []byte, params ScryptParams) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("%w: passphrase must not be empty", ErrInvalidParameter)
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: salt must be %d bytes, got %d", ErrInvalidParameter, SaltSize, len(salt))
	}
	if err := ValidateScryptParams(params); err != nil {
		return nil, err
	}
	key, err := util.DeriveScryptKey(passphrase, salt, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDerivationFailed, err)
	}
	return key, nil
}
