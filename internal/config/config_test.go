package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/seedvault/crypto"
)

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o600))
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DriverBolt, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(dir, "vault.db"), cfg.Storage.Path)
	assert.Equal(t, KeystoreAuto, cfg.Keystore.Driver)
	assert.Equal(t, "default", cfg.Vault.Name)
	assert.Equal(t, crypto.DefaultScryptParams(), cfg.Vault.Scrypt)
	assert.Equal(t, 10*time.Second, cfg.Pepper.Timeout)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
log:
  level: debug
  format: json
storage:
  driver: sqlite
  path: /var/lib/seedvault/vault.sqlite
pepper:
  url: https://pepper.example.com
  timeout: 3s
vault:
  name: primary
  scrypt: {n: 1024, r: 8, p: 2}
  min_length: 12
server:
  tokens: [a, b]
`)
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/seedvault/vault.sqlite", cfg.Storage.Path)
	assert.Equal(t, "https://pepper.example.com", cfg.Pepper.URL)
	assert.Equal(t, 3*time.Second, cfg.Pepper.Timeout)
	assert.Equal(t, "primary", cfg.Vault.Name)
	assert.Equal(t, crypto.ScryptParams{N: 1024, R: 8, P: 2}, cfg.Vault.Scrypt)
	assert.Equal(t, 12, cfg.Vault.MinLength)
	assert.Equal(t, []string{"a", "b"}, cfg.Server.Tokens)
	// Untouched sections keep their defaults.
	assert.Equal(t, KeystoreAuto, cfg.Keystore.Driver)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "storage:\n  driver: sqlite\n  path: /tmp/x.db\n")
	t.Setenv("SEEDVAULT_STORAGE_DRIVER", "postgres")
	t.Setenv("SEEDVAULT_STORAGE_DSN", "postgres://localhost/seedvault")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/seedvault", cfg.Storage.DSN)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SEEDVAULT_SCRYPT_N":       "2048",
		"SEEDVAULT_PEPPER_TIMEOUT": "250ms",
		"SEEDVAULT_SERVER_TOKENS":  " one, two ,,",
		"SEEDVAULT_LOG_LEVEL":      "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default(t.TempDir())
	require.NoError(t, cfg.applyEnv(lookup))
	assert.Equal(t, 2048, cfg.Vault.Scrypt.N)
	assert.Equal(t, 250*time.Millisecond, cfg.Pepper.Timeout)
	assert.Equal(t, []string{"one", "two"}, cfg.Server.Tokens)
	assert.Equal(t, "warn", cfg.Log.Level)

	env["SEEDVAULT_SCRYPT_R"] = "eight"
	assert.Error(t, Default(t.TempDir()).applyEnv(lookup))
}

func TestLoadFile_Required(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFile(filepath.Join(dir, "missing.yaml"), dir, false)
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad yaml", "log: [unclosed"},
		{"log level", "log:\n  level: loud\n"},
		{"log format", "log:\n  format: xml\n"},
		{"storage driver", "storage:\n  driver: mysql\n"},
		{"postgres without dsn", "storage:\n  driver: postgres\n"},
		{"keystore driver", "keystore:\n  driver: usb\n"},
		{"scrypt n", "vault:\n  scrypt: {n: 1000, r: 8, p: 1}\n"},
		{"min strength", "vault:\n  min_strength: 5\n"},
		{"empty name", "vault:\n  name: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.body)
			_, err := Load(dir)
			assert.Error(t, err)
		})
	}
}

func TestLogConfig_Logger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
}
