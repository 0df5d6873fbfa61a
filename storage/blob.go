package storage

import (
	"fmt"

	"github.com/jmcleod/seedvault/crypto"
	"github.com/jmcleod/seedvault/internal/util"
)

// CurrentBlobVersion is the schema version written by this build.
const CurrentBlobVersion = 1

// CipherBlob is the persisted unit protecting one mnemonic. Params and Salt
// are needed to re-derive the key and always travel with the ciphertext.
// Ciphertext carries the GCM tag.
type CipherBlob struct {
	Version    int
	Params     crypto.ScryptParams
	Salt       []byte
	IV         []byte
	Ciphertext []byte
}

// Validate checks the blob's shape. It does not authenticate it.
func (b *CipherBlob) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil blob", ErrMalformedBlob)
	}
	if b.Version != CurrentBlobVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, b.Version)
	}
	if err := crypto.ValidateScryptParams(b.Params); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBlob, err)
	}
	if len(b.Salt) != crypto.SaltSize {
		return fmt.Errorf("%w: salt is %d bytes", ErrMalformedBlob, len(b.Salt))
	}
	if len(b.IV) != crypto.IVSize {
		return fmt.Errorf("%w: iv is %d bytes", ErrMalformedBlob, len(b.IV))
	}
	if len(b.Ciphertext) == 0 {
		return fmt.Errorf("%w: empty ciphertext", ErrMalformedBlob)
	}
	return nil
}

// Clone returns a deep copy.
func (b *CipherBlob) Clone() *CipherBlob {
	if b == nil {
		return nil
	}
	return &CipherBlob{
		Version:    b.Version,
		Params:     b.Params,
		Salt:       util.CopyBytes(b.Salt),
		IV:         util.CopyBytes(b.IV),
		Ciphertext: util.CopyBytes(b.Ciphertext),
	}
}

// Record is the text-encoded row shape handed to record stores. Binary
// fields are standard base64.
type Record struct {
	Version    int    `json:"version"`
	N          int    `json:"n"`
	R          int    `json:"r"`
	P          int    `json:"p"`
	Salt       string `json:"salt"`
	IV         string `json:"iv"`
	Ciphertext string `json:"ciphertext"`
}

// Record encodes the blob for storage.
func (b *CipherBlob) Record() Record {
	return Record{
		Version:    b.Version,
		N:          b.Params.N,
		R:          b.Params.R,
		P:          b.Params.P,
		Salt:       util.Base64Encode(b.Salt),
		IV:         util.Base64Encode(b.IV),
		Ciphertext: util.Base64Encode(b.Ciphertext),
	}
}

// Blob decodes and validates a stored record.
func (r Record) Blob() (*CipherBlob, error) {
	salt, err := util.Base64Decode(r.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: salt: %v", ErrMalformedBlob, err)
	}
	iv, err := util.Base64Decode(r.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrMalformedBlob, err)
	}
	ct, err := util.Base64Decode(r.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrMalformedBlob, err)
	}
	b := &CipherBlob{
		Version:    r.Version,
		Params:     crypto.ScryptParams{N: r.N, R: r.R, P: r.P},
		Salt:       salt,
		IV:         iv,
		Ciphertext: ct,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}
