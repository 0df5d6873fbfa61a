package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jmcleod/seedvault/internal/config"
	"github.com/jmcleod/seedvault/keystore"
	"github.com/jmcleod/seedvault/pepper"
	"github.com/jmcleod/seedvault/storage"
	bboltstorage "github.com/jmcleod/seedvault/storage/bbolt"
	"github.com/jmcleod/seedvault/storage/memory"
	"github.com/jmcleod/seedvault/storage/postgres"
	"github.com/jmcleod/seedvault/storage/sqlite"
	"github.com/jmcleod/seedvault/vault"
)

func openRepository(ctx context.Context, c config.StorageConfig) (storage.Repository, func(), error) {
	switch c.Driver {
	case config.DriverMemory:
		return memory.NewRepository(), func() {}, nil
	case config.DriverBolt:
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(c.Path, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open vault storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case config.DriverSQLite:
		repo, err := sqlite.Open(c.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open vault storage: %w", err)
		}
		return repo, func() { repo.Close() }, nil
	case config.DriverPostgres:
		repo, err := postgres.NewRepositoryFromDSN(ctx, c.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open vault storage: %w", err)
		}
		return repo, repo.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", c.Driver)
	}
}

func openKeystore(c config.KeystoreConfig) (keystore.Store, func(), error) {
	driver := c.Driver
	if driver == config.KeystoreAuto {
		if _, err := keystore.NewKeychain(c.Service); err == nil {
			driver = config.KeystoreKeychain
		} else {
			driver = config.KeystoreBolt
		}
	}
	switch driver {
	case config.KeystoreKeychain:
		kc, err := keystore.NewKeychain(c.Service)
		if err != nil {
			return nil, nil, err
		}
		return kc, func() {}, nil
	case config.KeystoreBolt:
		if err := os.MkdirAll(filepath.Dir(c.Path), 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		b, err := keystore.OpenBolt(c.Path)
		if err != nil {
			return nil, nil, err
		}
		return b, func() { b.Close() }, nil
	case config.KeystoreMemory:
		return keystore.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported keystore driver %q", c.Driver)
	}
}

// pepperProvider returns the remote provider wrapped in the development
// fallback. Without a configured URL the remote always fails, which a
// production build reports and a development build papers over.
func pepperProvider(c config.PepperConfig) pepper.Provider {
	var session pepper.SessionSource
	if c.URL != "" {
		session = pepper.StaticToken(c.Token)
	}
	remote := pepper.NewRemoteProvider(c.URL, session,
		pepper.WithHTTPClient(&http.Client{Timeout: c.Timeout}))
	return pepper.NewFallbackProvider(remote, pepper.WithFallbackLogger(logger))
}

func passphrasePolicy(c config.VaultConfig) vault.PassphrasePolicy {
	var policies []vault.PassphrasePolicy
	if c.MinLength > 0 {
		policies = append(policies, vault.MinLength(c.MinLength))
	}
	if c.MinStrength > 0 {
		policies = append(policies, vault.MinStrength(c.MinStrength))
	}
	if len(policies) == 0 {
		return nil
	}
	return vault.AllOf(policies...)
}

// withManager opens the configured repository and runs fn with a Manager.
func withManager(ctx context.Context, fn func(*vault.Manager) error) error {
	if userID == "" {
		return fmt.Errorf("--user is required")
	}
	repo, closeRepo, err := openRepository(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeRepo()

	m := vault.New(repo, pepperProvider(cfg.Pepper),
		vault.WithLogger(logger),
		vault.WithScryptParams(cfg.Vault.Scrypt),
		vault.WithVaultName(cfg.Vault.Name),
		vault.WithPassphrasePolicy(passphrasePolicy(cfg.Vault)),
	)
	return fn(m)
}

// withTempPassphrase opens the configured keystore and runs fn with a
// TempPassphrase helper.
func withTempPassphrase(fn func(*vault.TempPassphrase) error) error {
	store, closeStore, err := openKeystore(cfg.Keystore)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(vault.NewTempPassphrase(store))
}
