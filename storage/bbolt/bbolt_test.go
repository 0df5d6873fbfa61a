package bbolt

import (
	"path/filepath"
	"testing"

	"github.com/jmcleod/seedvault/storage"
	"github.com/jmcleod/seedvault/storage/storagetest"
	"go.etcd.io/bbolt"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewRepositoryFromFile(filepath.Join(t.TempDir(), "vault.db"), nil)
	if err != nil {
		t.Fatalf("could not open db: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBBoltStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository {
		return newTestStore(t)
	})
}

func TestBBoltStorage_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	ctx := t.Context()

	s, err := NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := s.WriteBlob(ctx, "user-1", storage.DefaultVaultName, storagetest.Blob(4)); err != nil {
		t.Fatalf("WriteBlob failed: %v", err)
	}
	s.Close()

	s, err = NewRepositoryFromFile(path, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.ReadBlob(ctx, "user-1", storage.DefaultVaultName)
	if err != nil {
		t.Fatalf("ReadBlob failed: %v", err)
	}
	if string(got.Ciphertext) != string(storagetest.Blob(4).Ciphertext) {
		t.Error("blob did not survive reopen")
	}
}

func TestBBoltStorage_CorruptRecord(t *testing.T) {
	s := newTestStore(t)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(rootBucket)
		if err != nil {
			return err
		}
		b, err := root.CreateBucketIfNotExists([]byte("user-1"))
		if err != nil {
			return err
		}
		return b.Put([]byte(storage.DefaultVaultName), []byte(`{"version":1,"n":1024,"r":8,"p":1,"salt":"AQID","iv":"","ciphertext":""}`))
	})
	if err != nil {
		t.Fatalf("seeding corrupt record failed: %v", err)
	}

	if _, err := s.ReadBlob(t.Context(), "user-1", storage.DefaultVaultName); err == nil {
		t.Error("expected error reading corrupt record")
	}
}
