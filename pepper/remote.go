package pepper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jmcleod/seedvault/internal/util"
)

// PepperPath is the route served by Server and requested by RemoteProvider.
const PepperPath = "/v1/pepper"

const maxResponseBytes = 1 << 16

// PepperResponse is the JSON body returned by the pepper endpoint.
type PepperResponse struct {
	Pepper string `json:"pepper"`
}

// RemoteProvider fetches the pepper from a Server over HTTPS, authenticated
// with the bearer token of the current session.
type RemoteProvider struct {
	baseURL string
	session SessionSource
	client  *http.Client
}

var _ Provider = (*RemoteProvider)(nil)

// RemoteOption configures a RemoteProvider.
type RemoteOption func(*RemoteProvider)

// WithHTTPClient sets the HTTP client used for pepper requests.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(p *RemoteProvider) {
		p.client = c
	}
}

// NewRemoteProvider returns a provider that requests baseURL + PepperPath.
func NewRemoteProvider(baseURL string, session SessionSource, opts ...RemoteOption) *RemoteProvider {
	p := &RemoteProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		session: session,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *RemoteProvider) Pepper(ctx context.Context) ([]byte, error) {
	if p.session == nil {
		return nil, ErrNoSession
	}
	token, ok := p.session(ctx)
	if !ok || token == "" {
		return nil, ErrNoSession
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+PepperPath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes)) //nolint:errcheck
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	var body PepperResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrInvalidPepper, err)
	}
	pepper, err := util.Base64Decode(body.Pepper)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding pepper: %v", ErrInvalidPepper, err)
	}
	if len(pepper) != Size {
		util.WipeBytes(pepper)
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidPepper, len(pepper), Size)
	}
	return pepper, nil
}
