// Package storagetest is a conformance suite shared by every
// storage.Repository backend.
package storagetest

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/seedvault/crypto"
	"github.com/jmcleod/seedvault/storage"
)

// Blob returns a structurally valid blob whose bytes are derived from seed.
func Blob(seed byte) *storage.CipherBlob {
	return &storage.CipherBlob{
		Version:    storage.CurrentBlobVersion,
		Params:     crypto.ScryptParams{N: 1 << 10, R: 8, P: 1},
		Salt:       bytes.Repeat([]byte{seed}, crypto.SaltSize),
		IV:         bytes.Repeat([]byte{seed + 1}, crypto.IVSize),
		Ciphertext: bytes.Repeat([]byte{seed + 2}, 48),
	}
}

// Run exercises repo. newRepo must return an empty repository.
func Run(t *testing.T, newRepo func(t *testing.T) storage.Repository) {
	t.Run("ReadMissing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.ReadBlob(t.Context(), "user-1", storage.DefaultVaultName)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("WriteRead", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		want := Blob(1)
		require.NoError(t, repo.WriteBlob(ctx, "user-1", storage.DefaultVaultName, want))

		got, err := repo.ReadBlob(ctx, "user-1", storage.DefaultVaultName)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("WriteConflict", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		require.NoError(t, repo.WriteBlob(ctx, "user-1", storage.DefaultVaultName, Blob(1)))

		err := repo.WriteBlob(ctx, "user-1", storage.DefaultVaultName, Blob(5))
		assert.ErrorIs(t, err, storage.ErrConflict)

		got, err := repo.ReadBlob(ctx, "user-1", storage.DefaultVaultName)
		require.NoError(t, err)
		assert.Equal(t, Blob(1), got, "conflicting write must not overwrite")
	})

	t.Run("Replace", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		require.NoError(t, repo.WriteBlob(ctx, "user-1", storage.DefaultVaultName, Blob(1)))
		require.NoError(t, repo.ReplaceBlob(ctx, "user-1", storage.DefaultVaultName, Blob(7)))

		got, err := repo.ReadBlob(ctx, "user-1", storage.DefaultVaultName)
		require.NoError(t, err)
		assert.Equal(t, Blob(7), got)
	})

	t.Run("ReplaceMissing", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.ReplaceBlob(t.Context(), "user-1", storage.DefaultVaultName, Blob(1))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		_, err = repo.ReadBlob(t.Context(), "user-1", storage.DefaultVaultName)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Swap", func(t *testing.T) {
		repo := newRepo(t)
		swapper, ok := repo.(storage.Swapper)
		if !ok {
			t.Skip("repository does not implement storage.Swapper")
		}
		ctx := t.Context()

		err := swapper.SwapBlob(ctx, "user-1", storage.DefaultVaultName, Blob(1).Salt, Blob(7))
		assert.ErrorIs(t, err, storage.ErrNotFound)

		require.NoError(t, repo.WriteBlob(ctx, "user-1", storage.DefaultVaultName, Blob(1)))
		require.NoError(t, swapper.SwapBlob(ctx, "user-1", storage.DefaultVaultName, Blob(1).Salt, Blob(7)))

		// The first swap replaced the salt, so a second swap from the same
		// starting point must lose.
		err = swapper.SwapBlob(ctx, "user-1", storage.DefaultVaultName, Blob(1).Salt, Blob(13))
		assert.ErrorIs(t, err, storage.ErrCASFailed)

		got, err := repo.ReadBlob(ctx, "user-1", storage.DefaultVaultName)
		require.NoError(t, err)
		assert.Equal(t, Blob(7), got)
	})

	t.Run("Isolation", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		require.NoError(t, repo.WriteBlob(ctx, "user-1", storage.DefaultVaultName, Blob(1)))
		require.NoError(t, repo.WriteBlob(ctx, "user-2", storage.DefaultVaultName, Blob(2)))
		require.NoError(t, repo.WriteBlob(ctx, "user-1", "secondary", Blob(3)))

		for _, tc := range []struct {
			user, name string
			seed       byte
		}{
			{"user-1", storage.DefaultVaultName, 1},
			{"user-2", storage.DefaultVaultName, 2},
			{"user-1", "secondary", 3},
		} {
			got, err := repo.ReadBlob(ctx, tc.user, tc.name)
			require.NoError(t, err)
			assert.Equal(t, Blob(tc.seed), got)
		}

		_, err := repo.ReadBlob(ctx, "user-2", "secondary")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("RejectsMalformed", func(t *testing.T) {
		repo := newRepo(t)
		bad := Blob(1)
		bad.IV = bad.IV[:4]
		err := repo.WriteBlob(t.Context(), "user-1", storage.DefaultVaultName, bad)
		assert.ErrorIs(t, err, storage.ErrMalformedBlob)
	})

	t.Run("ConcurrentCreate", func(t *testing.T) {
		repo := newRepo(t)
		ctx := t.Context()
		const writers = 8

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
		)
		for i := range writers {
			wg.Add(1)
			go func(seed byte) {
				defer wg.Done()
				err := repo.WriteBlob(ctx, "racer", storage.DefaultVaultName, Blob(seed))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case assert.ErrorIs(t, err, storage.ErrConflict):
					conflicts++
				}
			}(byte(10 + i*3))
		}
		wg.Wait()

		assert.Equal(t, 1, succeeded, "exactly one creator must win")
		assert.Equal(t, writers-1, conflicts)
	})
}
