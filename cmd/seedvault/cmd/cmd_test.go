package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/seedvault/internal/config"
	"github.com/jmcleod/seedvault/internal/util"
	"github.com/jmcleod/seedvault/vault"
)

func TestBip39Factory(t *testing.T) {
	for _, words := range []int{12, 24} {
		factory, err := bip39Factory(words)
		require.NoError(t, err)
		m, err := factory()
		require.NoError(t, err)
		assert.Len(t, strings.Fields(m), words)
	}

	_, err := bip39Factory(13)
	assert.Error(t, err)
}

func TestParseTokens(t *testing.T) {
	tokens, err := parseTokens([]string{"tok-a=alice", "tok-b=bob"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tok-a": "alice", "tok-b": "bob"}, tokens)

	for _, bad := range [][]string{nil, {"nouser"}, {"=alice"}, {"tok="}, {"t=a", "t=b"}} {
		_, err := parseTokens(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestReadServerSecret(t *testing.T) {
	dir := t.TempDir()
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	path := filepath.Join(dir, "secret")
	require.NoError(t, os.WriteFile(path, []byte(util.Base64Encode(secret)+"\n"), 0o600))

	got, err := readServerSecret(path)
	require.NoError(t, err)
	assert.Equal(t, secret, got)

	_, err = readServerSecret("")
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("%%%"), 0o600))
	_, err = readServerSecret(path)
	assert.Error(t, err)
}

func TestPassphrasePolicy(t *testing.T) {
	assert.Nil(t, passphrasePolicy(vaultConfig(0, 0)))

	p := passphrasePolicy(vaultConfig(10, 0))
	require.NotNil(t, p)
	assert.ErrorIs(t, p("short"), vault.ErrWeakPassphrase)
	assert.NoError(t, p("long enough"))
}

func vaultConfig(minLength, minStrength int) config.VaultConfig {
	return config.VaultConfig{MinLength: minLength, MinStrength: minStrength}
}
