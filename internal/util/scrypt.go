package util

import (
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const ScryptKeyLen = 32

type ScryptParams struct {
	N int `json:"n" yaml:"n"`
	R int `json:"r" yaml:"r"`
	P int `json:"p" yaml:"p"`
}

// DefaultScryptParams returns the cost used for new vaults. Stored blobs
// carry their own parameters, so changing these never breaks old data.
func DefaultScryptParams() ScryptParams {
	return ScryptParams{N: 1 << 15, R: 8, P: 1}
}

func ValidateScryptParams(p ScryptParams) error {
	if p.N < 2 || p.N&(p.N-1) != 0 {
		return fmt.Errorf("scrypt N=%d must be a power of two greater than 1", p.N)
	}
	if p.R < 1 {
		return fmt.Errorf("scrypt r=%d must be at least 1", p.R)
	}
	if p.P < 1 {
		return fmt.Errorf("scrypt p=%d must be at least 1", p.P)
	}
	if uint64(p.R)*uint64(p.P) >= 1<<30 {
		return fmt.Errorf("scrypt r*p must be less than 2^30")
	}
	return nil
}

func DeriveScryptKey(passphrase string, salt []byte, params ScryptParams) ([]byte, error) {
	return scrypt.Key([]byte(Normalize(passphrase)), salt, params.N, params.R, params.P, ScryptKeyLen)
}
