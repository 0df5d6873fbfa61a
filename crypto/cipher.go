package crypto

import (
	"fmt"

	"github.com/jmcleod/seedvault/internal/util"
)

// IVSize is the AES-GCM nonce length.
const IVSize = util.GCMNonceSize

// Encrypt seals plaintext under key with AES-256-GCM. A fresh random IV is
// drawn for every call; the authentication tag is appended to ciphertext.
func Encrypt(key *Key, plaintext []byte) (iv, ciphertext []byte, err error) {
	buf, err := key.open()
	if err != nil {
		return nil, nil, err
	}
	defer buf.Destroy()

	iv, ciphertext, err = util.SealAESGCM(plaintext, buf.Bytes(), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypting: %w", err)
	}
	return iv, ciphertext, nil
}

// Decrypt opens ciphertext sealed by Encrypt. Any failure returns
// ErrAuthenticationFailed and no plaintext.
func Decrypt(key *Key, iv, ciphertext []byte) ([]byte, error) {
	buf, err := key.open()
	if err != nil {
		return nil, err
	}
	defer buf.Destroy()

	plaintext, err := util.OpenAESGCM(iv, ciphertext, buf.Bytes(), nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
