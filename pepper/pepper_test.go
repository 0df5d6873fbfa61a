package pepper

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/seedvault/build"
)

// withDeployment pins the deployment a FallbackProvider acts on, so both
// branches run regardless of build tags.
func withDeployment(d build.DeploymentType) FallbackOption {
	return func(p *FallbackProvider) {
		p.deployment = d
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	srv, err := NewServer(bytes.Repeat([]byte{0x42}, 32), StaticTokens(map[string]string{
		"token-alice": "user-1",
		"token-bob":   "user-2",
	}), WithServerLogger(quietLogger()))
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Router())
	t.Cleanup(hs.Close)
	return srv, hs
}

func TestRemoteProvider_FetchesPepper(t *testing.T) {
	srv, hs := newTestServer(t)
	ctx := t.Context()

	alice := NewRemoteProvider(hs.URL, StaticToken("token-alice"))
	p1, err := alice.Pepper(ctx)
	require.NoError(t, err)
	assert.Len(t, p1, Size)

	p2, err := alice.Pepper(ctx)
	require.NoError(t, err)
	assert.Equal(t, p1, p2, "pepper must be stable per user")

	want, err := srv.PepperFor("user-1")
	require.NoError(t, err)
	assert.Equal(t, want, p1)

	bob := NewRemoteProvider(hs.URL+"/", StaticToken("token-bob"))
	p3, err := bob.Pepper(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, p1, p3, "different users must get different peppers")
}

func TestRemoteProvider_NoSession(t *testing.T) {
	_, hs := newTestServer(t)

	_, err := NewRemoteProvider(hs.URL, StaticToken("")).Pepper(t.Context())
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = NewRemoteProvider(hs.URL, nil).Pepper(t.Context())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRemoteProvider_Unauthorized(t *testing.T) {
	_, hs := newTestServer(t)

	_, err := NewRemoteProvider(hs.URL, StaticToken("token-mallory")).Pepper(t.Context())
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestRemoteProvider_Unreachable(t *testing.T) {
	_, hs := newTestServer(t)
	url := hs.URL
	hs.Close()

	_, err := NewRemoteProvider(url, StaticToken("token-alice")).Pepper(t.Context())
	assert.ErrorIs(t, err, ErrFetchFailed)
}

func TestRemoteProvider_InvalidPepper(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"ShortPepper", `{"pepper":"c2hvcnQ="}`},
		{"NotBase64", `{"pepper":"!!!"}`},
		{"NotJSON", `pepper`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, tc.body) //nolint:errcheck
			}))
			defer hs.Close()

			_, err := NewRemoteProvider(hs.URL, StaticToken("t"), WithHTTPClient(hs.Client())).Pepper(t.Context())
			assert.ErrorIs(t, err, ErrInvalidPepper)
		})
	}
}

type failingProvider struct {
	err error
}

func (f failingProvider) Pepper(context.Context) ([]byte, error) {
	return nil, f.err
}

func TestFallbackProvider(t *testing.T) {
	ctx := t.Context()
	primaryErr := errors.New("network down")

	t.Run("DevelopmentFallsBack", func(t *testing.T) {
		p := NewFallbackProvider(failingProvider{err: primaryErr},
			withDeployment(build.Development), WithFallbackLogger(quietLogger()))
		got, err := p.Pepper(ctx)
		require.NoError(t, err)
		assert.Equal(t, DevPepper, got)

		// Callers get a copy they may wipe.
		got[0] ^= 0xFF
		assert.NotEqual(t, DevPepper[0], got[0])
	})

	t.Run("DevelopmentNoSessionFallsBack", func(t *testing.T) {
		p := NewFallbackProvider(NewRemoteProvider("http://127.0.0.1:0", StaticToken("")),
			withDeployment(build.Development), WithFallbackLogger(quietLogger()))
		got, err := p.Pepper(ctx)
		require.NoError(t, err)
		assert.Equal(t, DevPepper, got)
	})

	t.Run("ProductionPropagates", func(t *testing.T) {
		p := NewFallbackProvider(failingProvider{err: primaryErr}, withDeployment(build.Production))
		got, err := p.Pepper(ctx)
		assert.ErrorIs(t, err, primaryErr)
		assert.Nil(t, got)
	})

	t.Run("ProductionNoSessionPropagates", func(t *testing.T) {
		p := NewFallbackProvider(NewRemoteProvider("http://127.0.0.1:0", StaticToken("")),
			withDeployment(build.Production))
		_, err := p.Pepper(ctx)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("PrimarySucceeds", func(t *testing.T) {
		want := bytes.Repeat([]byte{5}, Size)
		static, err := Static(want)
		require.NoError(t, err)
		p := NewFallbackProvider(static, withDeployment(build.Development))
		got, err := p.Pepper(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("CanceledContextPropagates", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		p := NewFallbackProvider(failingProvider{err: context.Canceled},
			withDeployment(build.Development), WithFallbackLogger(quietLogger()))
		_, err := p.Pepper(cctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestFallbackProvider_UsesCompiledDeployment(t *testing.T) {
	p := NewFallbackProvider(failingProvider{err: errors.New("down")}, WithFallbackLogger(quietLogger()))
	assert.Equal(t, build.Deployment, p.deployment)

	_, err := p.Pepper(t.Context())
	if build.Deployment == build.Production {
		assert.Error(t, err)
	} else {
		assert.NoError(t, err)
	}
}

func TestStatic(t *testing.T) {
	_, err := Static([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidPepper)

	assert.Len(t, DevPepper, Size)
}

func TestServer_Validation(t *testing.T) {
	_, err := NewServer(make([]byte, 16), StaticTokens(nil))
	assert.Error(t, err)

	_, err = NewServer(make([]byte, 32), nil)
	assert.Error(t, err)
}

func TestServer_Routes(t *testing.T) {
	_, hs := newTestServer(t)

	resp, err := http.Get(hs.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(hs.URL + PepperPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
