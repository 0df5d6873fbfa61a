//go:build !darwin

package keystore

// Keychain is unavailable on non-macOS platforms.
type Keychain struct{}

var _ Store = (*Keychain)(nil)

// NewKeychain always fails with ErrUnsupported on this platform.
func NewKeychain(string) (*Keychain, error) {
	return nil, ErrUnsupported
}

func (*Keychain) Get(string) (string, error) { return "", ErrUnsupported }
func (*Keychain) Set(string, string) error   { return ErrUnsupported }
func (*Keychain) Delete(string) error        { return ErrUnsupported }
