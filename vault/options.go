package vault

import (
	"log/slog"

	"github.com/jmcleod/seedvault/crypto"
)

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for lifecycle events. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithScryptParams sets the cost parameters used for new vaults and for
// every passphrase change. Existing vaults keep their stored parameters
// until the next change.
func WithScryptParams(params crypto.ScryptParams) Option {
	return func(m *Manager) {
		m.params = params
	}
}

// WithVaultName sets the vault name the manager reads and writes.
// Default: storage.DefaultVaultName.
func WithVaultName(name string) Option {
	return func(m *Manager) {
		m.vaultName = name
	}
}

// WithPassphrasePolicy sets the policy applied to passphrases that will
// protect a newly written blob.
func WithPassphrasePolicy(policy PassphrasePolicy) Option {
	return func(m *Manager) {
		m.policy = policy
	}
}
