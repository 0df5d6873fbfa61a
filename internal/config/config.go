// Package config loads seedvault settings from a YAML file with
// SEEDVAULT_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmcleod/seedvault/crypto"
)

// FileName is the config file looked up in the data directory.
const FileName = "config.yaml"

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverBolt     = "bbolt"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Keystore drivers. KeystoreAuto picks the OS keychain where available and
// a bbolt file otherwise.
const (
	KeystoreAuto     = "auto"
	KeystoreKeychain = "keychain"
	KeystoreBolt     = "bolt"
	KeystoreMemory   = "memory"
)

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Storage  StorageConfig  `yaml:"storage"`
	Keystore KeystoreConfig `yaml:"keystore"`
	Pepper   PepperConfig   `yaml:"pepper"`
	Vault    VaultConfig    `yaml:"vault"`
	Server   ServerConfig   `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

type KeystoreConfig struct {
	Driver  string `yaml:"driver"`
	Path    string `yaml:"path"`
	Service string `yaml:"service"`
}

type PepperConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type VaultConfig struct {
	Name        string              `yaml:"name"`
	Scrypt      crypto.ScryptParams `yaml:"scrypt"`
	MinLength   int                 `yaml:"min_length"`
	MinStrength int                 `yaml:"min_strength"`
}

// ServerConfig configures the pepper server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// SecretFile holds the base64-encoded server secret.
	SecretFile string   `yaml:"secret_file"`
	Tokens     []string `yaml:"tokens"`
	TLSCert    string   `yaml:"tls_cert"`
	TLSKey     string   `yaml:"tls_key"`
}

// DefaultDir returns ~/.seedvault.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".seedvault"
	}
	return filepath.Join(home, ".seedvault")
}

// Default returns the built-in configuration rooted at dir.
func Default(dir string) *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{
			Driver: DriverBolt,
			Path:   filepath.Join(dir, "vault.db"),
		},
		Keystore: KeystoreConfig{
			Driver:  KeystoreAuto,
			Path:    filepath.Join(dir, "keystore.db"),
			Service: "com.seedvault",
		},
		Pepper: PepperConfig{Timeout: 10 * time.Second},
		Vault: VaultConfig{
			Name:   "default",
			Scrypt: crypto.DefaultScryptParams(),
		},
		Server: ServerConfig{Addr: ":8443"},
	}
}

// Load reads dir/config.yaml over the defaults, applies environment
// overrides and validates the result. A missing file is not an error.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, FileName), dir, true)
}

// LoadFile reads the YAML file at path over Default(dir). If optional is
// false a missing file is an error.
func LoadFile(path, dir string, optional bool) (*Config, error) {
	cfg := Default(dir)

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SEEDVAULT_LOG_LEVEL":          &c.Log.Level,
		"SEEDVAULT_LOG_FORMAT":         &c.Log.Format,
		"SEEDVAULT_STORAGE_DRIVER":     &c.Storage.Driver,
		"SEEDVAULT_STORAGE_PATH":       &c.Storage.Path,
		"SEEDVAULT_STORAGE_DSN":        &c.Storage.DSN,
		"SEEDVAULT_KEYSTORE_DRIVER":    &c.Keystore.Driver,
		"SEEDVAULT_KEYSTORE_PATH":      &c.Keystore.Path,
		"SEEDVAULT_PEPPER_URL":         &c.Pepper.URL,
		"SEEDVAULT_PEPPER_TOKEN":       &c.Pepper.Token,
		"SEEDVAULT_VAULT_NAME":         &c.Vault.Name,
		"SEEDVAULT_SERVER_ADDR":        &c.Server.Addr,
		"SEEDVAULT_SERVER_SECRET_FILE": &c.Server.SecretFile,
	}
	for name, dst := range strs {
		if v, ok := lookup(name); ok {
			*dst = v
		}
	}

	if v, ok := lookup("SEEDVAULT_PEPPER_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SEEDVAULT_PEPPER_TIMEOUT: %w", err)
		}
		c.Pepper.Timeout = d
	}
	if v, ok := lookup("SEEDVAULT_SERVER_TOKENS"); ok {
		c.Server.Tokens = splitList(v)
	}

	ints := map[string]*int{
		"SEEDVAULT_SCRYPT_N":           &c.Vault.Scrypt.N,
		"SEEDVAULT_SCRYPT_R":           &c.Vault.Scrypt.R,
		"SEEDVAULT_SCRYPT_P":           &c.Vault.Scrypt.P,
		"SEEDVAULT_VAULT_MIN_LENGTH":   &c.Vault.MinLength,
		"SEEDVAULT_VAULT_MIN_STRENGTH": &c.Vault.MinStrength,
	}
	for name, dst := range ints {
		v, ok := lookup(name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = n
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, err := c.Log.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", c.Log.Format)
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverBolt, DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage driver %s requires a path", c.Storage.Driver)
		}
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage driver postgres requires a dsn")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	switch c.Keystore.Driver {
	case KeystoreAuto, KeystoreKeychain, KeystoreBolt, KeystoreMemory:
	default:
		return fmt.Errorf("unsupported keystore driver %q", c.Keystore.Driver)
	}

	if c.Vault.Name == "" {
		return fmt.Errorf("vault name must not be empty")
	}
	if err := crypto.ValidateScryptParams(c.Vault.Scrypt); err != nil {
		return fmt.Errorf("vault scrypt parameters: %w", err)
	}
	if c.Vault.MinStrength < 0 || c.Vault.MinStrength > 4 {
		return fmt.Errorf("vault min_strength must be between 0 and 4")
	}
	if c.Pepper.Timeout <= 0 {
		return fmt.Errorf("pepper timeout must be positive")
	}
	return nil
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// Logger builds a slog.Logger writing to w.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	level, err := l.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
