// Package pepper supplies the server-held secret that is mixed into every
// vault key. A device that only holds the stored ciphertext and the user's
// passphrase cannot decrypt the vault without also obtaining the pepper.
package pepper

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmcleod/seedvault/internal/util"
)

// Size is the length of a pepper in bytes.
const Size = 32

var (
	// ErrNoSession is returned when no authenticated session is available
	// to fetch the pepper with.
	ErrNoSession = errors.New("pepper: no authenticated session")
	// ErrFetchFailed is returned when the remote party could not be reached
	// or refused the request.
	ErrFetchFailed = errors.New("pepper: fetch failed")
	// ErrInvalidPepper is returned when the remote party answered with
	// something that is not a Size-byte pepper.
	ErrInvalidPepper = errors.New("pepper: invalid pepper")
)

// DevPepper is the publicly known pepper used by development builds when
// the remote party is unreachable. It provides no secrecy.
var DevPepper = []byte("dev-pepper-do-not-use-in-prod!!!")

// Provider returns the Size-byte pepper for the current session. Callers
// receive their own copy and may wipe it.
type Provider interface {
	Pepper(ctx context.Context) ([]byte, error)
}

// SessionSource returns the bearer token of the current session, or
// ok=false when the caller is not signed in.
type SessionSource func(ctx context.Context) (token string, ok bool)

// StaticToken returns a SessionSource that always yields token. An empty
// token behaves as an absent session.
func StaticToken(token string) SessionSource {
	return func(context.Context) (string, bool) {
		return token, token != ""
	}
}

type staticProvider struct {
	pepper []byte
}

// Static returns a Provider that always hands out a copy of p.
func Static(p []byte) (Provider, error) {
	if len(p) != Size {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPepper, len(p), Size)
	}
	return &staticProvider{pepper: util.CopyBytes(p)}, nil
}

func (s *staticProvider) Pepper(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return util.CopyBytes(s.pepper), nil
}
