package vault

import (
	"errors"
	"fmt"
)

var (
	// ErrUnlockFailed is returned when a stored vault cannot be opened. It
	// does not distinguish a wrong passphrase from a wrong pepper or a
	// tampered blob. Errors carrying it also match crypto.ErrAuthenticationFailed.
	ErrUnlockFailed = errors.New("vault: could not unlock")
	// ErrNoVault indicates ChangePassphrase was called for a user without a vault.
	ErrNoVault = errors.New("vault: no vault for user")
	// ErrInvalidUserID indicates an empty or malformed user ID.
	ErrInvalidUserID = errors.New("vault: invalid user id")
	// ErrInvalidMnemonic indicates a missing mnemonic factory or an empty mnemonic.
	ErrInvalidMnemonic = errors.New("vault: invalid mnemonic")
	// ErrWeakPassphrase indicates a new passphrase rejected by the passphrase policy.
	ErrWeakPassphrase = errors.New("vault: passphrase rejected by policy")
	// ErrConcurrentChange indicates the vault was rewritten by another
	// ChangePassphrase between reading and replacing it. The other change
	// stands; the caller may retry with the passphrase now in effect.
	ErrConcurrentChange = errors.New("vault: changed concurrently")
)

func userIDErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidUserID, fmt.Sprintf(format, args...))
}
