package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = ScryptParams{N: 1 << 10, R: 8, P: 1}

func testSalt(b byte) []byte {
	return bytes.Repeat([]byte{b}, SaltSize)
}

func testKey(t *testing.T, passphrase string, pepper []byte) *Key {
	t.Helper()
	ikm, err := DeriveHardenedKey(passphrase, testSalt(1), testParams)
	require.NoError(t, err)
	key, err := DeriveEncryptionKey(ikm, pepper, MnemonicKeyInfo)
	require.NoError(t, err)
	return key
}

func TestDeriveHardenedKey(t *testing.T) {
	t.Run("Deterministic", func(t *testing.T) {
		k1, err := DeriveHardenedKey("pass-123", testSalt(1), testParams)
		require.NoError(t, err)
		k2, err := DeriveHardenedKey("pass-123", testSalt(1), testParams)
		require.NoError(t, err)
		assert.Len(t, k1, HardenedKeySize)
		assert.Equal(t, k1, k2)
	})

	t.Run("SaltSensitive", func(t *testing.T) {
		k1, _ := DeriveHardenedKey("pass-123", testSalt(1), testParams)
		k2, _ := DeriveHardenedKey("pass-123", testSalt(2), testParams)
		assert.NotEqual(t, k1, k2)
	})

	t.Run("PassphraseSensitive", func(t *testing.T) {
		k1, _ := DeriveHardenedKey("pass-123", testSalt(1), testParams)
		k2, _ := DeriveHardenedKey("pass-124", testSalt(1), testParams)
		assert.NotEqual(t, k1, k2)
	})

	t.Run("ParamsSensitive", func(t *testing.T) {
		k1, _ := DeriveHardenedKey("pass-123", testSalt(1), testParams)
		k2, _ := DeriveHardenedKey("pass-123", testSalt(1), ScryptParams{N: 1 << 11, R: 8, P: 1})
		assert.NotEqual(t, k1, k2)
	})
}

func TestDeriveHardenedKey_InvalidParameter(t *testing.T) {
	tests := []struct {
		name       string
		passphrase string
		salt       []byte
		params     ScryptParams
	}{
		{"EmptyPassphrase", "", testSalt(1), testParams},
		{"ShortSalt", "pass", make([]byte, 15), testParams},
		{"LongSalt", "pass", make([]byte, 17), testParams},
		{"NilSalt", "pass", nil, testParams},
		{"NNotPowerOfTwo", "pass", testSalt(1), ScryptParams{N: 1000, R: 8, P: 1}},
		{"NZero", "pass", testSalt(1), ScryptParams{N: 0, R: 8, P: 1}},
		{"RZero", "pass", testSalt(1), ScryptParams{N: 1024, R: 0, P: 1}},
		{"PZero", "pass", testSalt(1), ScryptParams{N: 1024, R: 8, P: 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DeriveHardenedKey(tc.passphrase, tc.salt, tc.params)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}
}

func TestDeriveEncryptionKey_InvalidKeyMaterial(t *testing.T) {
	good := bytes.Repeat([]byte{7}, 32)

	_, err := DeriveEncryptionKey(good[:31], good, MnemonicKeyInfo)
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)

	_, err = DeriveEncryptionKey(good, append(good, 0), MnemonicKeyInfo)
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)

	_, err = DeriveEncryptionKey(nil, nil, MnemonicKeyInfo)
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := testKey(t, "pass-123", bytes.Repeat([]byte{9}, PepperSize))

	for _, msg := range [][]byte{
		[]byte("twelve word phrase abandon ability able about above absent absorb abstract"),
		{},
		bytes.Repeat([]byte{0xAB}, 4096),
	} {
		iv, ct, err := Encrypt(key, msg)
		require.NoError(t, err)
		assert.Len(t, iv, IVSize)

		pt, err := Decrypt(key, iv, ct)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(msg, pt))
	}
}

func TestEncrypt_Randomized(t *testing.T) {
	key := testKey(t, "pass-123", bytes.Repeat([]byte{9}, PepperSize))
	msg := []byte("same plaintext")

	iv1, ct1, err := Encrypt(key, msg)
	require.NoError(t, err)
	iv2, ct2, err := Encrypt(key, msg)
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
	assert.NotEqual(t, ct1, ct2)

	pt1, err := Decrypt(key, iv1, ct1)
	require.NoError(t, err)
	pt2, err := Decrypt(key, iv2, ct2)
	require.NoError(t, err)
	assert.Equal(t, msg, pt1)
	assert.Equal(t, msg, pt2)
}

func TestDecrypt_TamperRejection(t *testing.T) {
	pepper := bytes.Repeat([]byte{9}, PepperSize)
	key := testKey(t, "pass-123", pepper)
	msg := []byte("secret mnemonic")
	iv, ct, err := Encrypt(key, msg)
	require.NoError(t, err)

	t.Run("WrongKey", func(t *testing.T) {
		other := testKey(t, "pass-456", pepper)
		pt, err := Decrypt(other, iv, ct)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.Nil(t, pt)
	})

	t.Run("WrongPepper", func(t *testing.T) {
		other := testKey(t, "pass-123", bytes.Repeat([]byte{8}, PepperSize))
		pt, err := Decrypt(other, iv, ct)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.Nil(t, pt)
	})

	t.Run("WrongInfo", func(t *testing.T) {
		ikm, _ := DeriveHardenedKey("pass-123", testSalt(1), testParams)
		other, err := DeriveEncryptionKey(ikm, pepper, "some:other:context")
		require.NoError(t, err)
		_, err = Decrypt(other, iv, ct)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("WrongIV", func(t *testing.T) {
		badIV := append([]byte(nil), iv...)
		badIV[0] ^= 0x01
		pt, err := Decrypt(key, badIV, ct)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
		assert.Nil(t, pt)
	})

	t.Run("ShortIV", func(t *testing.T) {
		_, err := Decrypt(key, iv[:8], ct)
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})

	t.Run("BitFlip", func(t *testing.T) {
		for i := range ct {
			bad := append([]byte(nil), ct...)
			bad[i] ^= 0x80
			pt, err := Decrypt(key, iv, bad)
			assert.ErrorIs(t, err, ErrAuthenticationFailed)
			assert.Nil(t, pt)
		}
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := Decrypt(key, iv, ct[:4])
		assert.ErrorIs(t, err, ErrAuthenticationFailed)
	})
}

func TestPepperSensitivity(t *testing.T) {
	k1 := testKey(t, "pass-123", bytes.Repeat([]byte{1}, PepperSize))
	k2 := testKey(t, "pass-123", bytes.Repeat([]byte{2}, PepperSize))
	msg := []byte("identical plaintext")

	iv, ct1, err := Encrypt(k1, msg)
	require.NoError(t, err)
	_, err = Decrypt(k2, iv, ct1)
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestKey_NotExportable(t *testing.T) {
	key := testKey(t, "pass-123", bytes.Repeat([]byte{3}, PepperSize))

	for _, s := range []string{
		fmt.Sprint(key),
		fmt.Sprintf("%v", key),
		fmt.Sprintf("%+v", key),
		fmt.Sprintf("%#v", key),
		fmt.Sprintf("%x", key),
		key.String(),
	} {
		assert.Equal(t, redacted, s)
	}

	_, err := json.Marshal(key)
	assert.True(t, errors.Is(err, ErrKeyNotExportable))
	_, err = key.MarshalText()
	assert.ErrorIs(t, err, ErrKeyNotExportable)
}

func TestKey_Destroyed(t *testing.T) {
	key := testKey(t, "pass-123", bytes.Repeat([]byte{3}, PepperSize))
	iv, ct, err := Encrypt(key, []byte("x"))
	require.NoError(t, err)

	key.Destroy()
	_, _, err = Encrypt(key, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
	_, err = Decrypt(key, iv, ct)
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)

	var nilKey *Key
	_, _, err = Encrypt(nilKey, []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
}
