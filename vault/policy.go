package vault

import (
	"fmt"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

// PassphrasePolicy checks a passphrase before it is used to protect a new
// blob. It is not applied when unlocking an existing vault.
type PassphrasePolicy func(passphrase string) error

// MinLength rejects passphrases shorter than n characters.
func MinLength(n int) PassphrasePolicy {
	return func(passphrase string) error {
		if utf8.RuneCountInString(passphrase) < n {
			return fmt.Errorf("%w: must be at least %d characters", ErrWeakPassphrase, n)
		}
		return nil
	}
}

// MinStrength rejects passphrases whose zxcvbn score (0-4) is below score.
func MinStrength(score int) PassphrasePolicy {
	return func(passphrase string) error {
		if got := zxcvbn.PasswordStrength(passphrase, nil).Score; got < score {
			return fmt.Errorf("%w: strength %d, need %d", ErrWeakPassphrase, got, score)
		}
		return nil
	}
}

// AllOf combines policies; the first failure wins.
func AllOf(policies ...PassphrasePolicy) PassphrasePolicy {
	return func(passphrase string) error {
		for _, p := range policies {
			if p == nil {
				continue
			}
			if err := p(passphrase); err != nil {
				return err
			}
		}
		return nil
	}
}

func (m *Manager) checkPassphrase(passphrase string) error {
	if passphrase == "" {
		return fmt.Errorf("%w: must not be empty", ErrWeakPassphrase)
	}
	if m.policy == nil {
		return nil
	}
	return m.policy(passphrase)
}
