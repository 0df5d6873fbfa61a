package crypto

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/awnumar/memguard"
	"github.com/jmcleod/seedvault/internal/util"
)

const (
	// KeySize is the length of the symmetric encryption key.
	KeySize = util.AESKeySize
	// PepperSize is the required length of the server-held pepper.
	PepperSize = 32

	// MnemonicKeyInfo domain-separates the key that protects a mnemonic.
	MnemonicKeyInfo = "seedvault:mnemonic:v1"
)

const redacted = "crypto.Key{REDACTED}"

// Key is an opaque AES-256 key handle. The raw bytes live in a memguard
// Enclave and are only decrypted inside Encrypt and Decrypt; nothing in the
// public API returns them, and every formatting or marshaling path prints a
// placeholder or fails.
type Key struct {
	enclave *memguard.Enclave
}

// DeriveEncryptionKey expands the hardened key material ikm into an
// encryption key, using pepper as the HKDF salt and info as the context
// string. A different info yields an unrelated key; it is not an error.
func DeriveEncryptionKey(ikm, pepper []byte, info string) (*Key, error) {
	if len(ikm) != HardenedKeySize {
		return nil, fmt.Errorf("%w: ikm must be %d bytes, got %d", ErrInvalidKeyMaterial, HardenedKeySize, len(ikm))
	}
	if len(pepper) != PepperSize {
		return nil, fmt.Errorf("%w: pepper must be %d bytes, got %d", ErrInvalidKeyMaterial, PepperSize, len(pepper))
	}
	raw, err := util.HKDF(ikm, pepper, []byte(info))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	// NewEnclave wipes raw.
	return &Key{enclave: memguard.NewEnclave(raw)}, nil
}

// Destroy drops the enclave. A destroyed key fails every operation with
// ErrInvalidKeyMaterial. Destroy must not race with Encrypt or Decrypt.
func (k *Key) Destroy() {
	if k != nil {
		k.enclave = nil
	}
}

func (k *Key) open() (*memguard.LockedBuffer, error) {
	if k == nil || k.enclave == nil {
		return nil, ErrInvalidKeyMaterial
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: opening enclave: %v", ErrInvalidKeyMaterial, err)
	}
	return buf, nil
}

func (k *Key) String() string   { return redacted }
func (k *Key) GoString() string { return redacted }

func (k *Key) Format(f fmt.State, _ rune) {
	io.WriteString(f, redacted) //nolint:errcheck
}

func (k *Key) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (k *Key) MarshalJSON() ([]byte, error) { return nil, ErrKeyNotExportable }
func (k *Key) MarshalText() ([]byte, error) { return nil, ErrKeyNotExportable }
