package crypto

import "errors"

var (
	// ErrInvalidParameter indicates a malformed salt, cost parameter or
	// passphrase. It is always a caller bug.
	ErrInvalidParameter = errors.New("crypto: invalid parameter")
	// ErrDerivationFailed indicates the password-hardening primitive aborted.
	ErrDerivationFailed = errors.New("crypto: key derivation failed")
	// ErrInvalidKeyMaterial indicates key material of the wrong length, or a
	// nil or destroyed key handle.
	ErrInvalidKeyMaterial = errors.New("crypto: invalid key material")
	// ErrAuthenticationFailed is the single outcome of every failed decryption:
	// wrong key, wrong IV and tampered ciphertext are indistinguishable.
	ErrAuthenticationFailed = errors.New("crypto: authentication failed")
	// ErrKeyNotExportable is returned when a Key is asked to serialize itself.
	ErrKeyNotExportable = errors.New("crypto: key is not exportable")
)
