package pepper

import (
	"context"
	"log/slog"

	"github.com/jmcleod/seedvault/build"
	"github.com/jmcleod/seedvault/internal/util"
)

// FallbackProvider wraps a primary provider. When the primary fails in a
// development build it hands out DevPepper so the app stays usable offline.
// In a production build every primary failure is returned unchanged. The
// deployment is always the compiled-in build.Deployment.
type FallbackProvider struct {
	primary    Provider
	deployment build.DeploymentType
	logger     *slog.Logger
}

var _ Provider = (*FallbackProvider)(nil)

// FallbackOption configures a FallbackProvider.
type FallbackOption func(*FallbackProvider)

// WithFallbackLogger sets the logger used to report fallbacks.
func WithFallbackLogger(logger *slog.Logger) FallbackOption {
	return func(p *FallbackProvider) {
		p.logger = logger
	}
}

// NewFallbackProvider wraps primary.
func NewFallbackProvider(primary Provider, opts ...FallbackOption) *FallbackProvider {
	p := &FallbackProvider{
		primary:    primary,
		deployment: build.Deployment,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *FallbackProvider) Pepper(ctx context.Context) ([]byte, error) {
	pepper, err := p.primary.Pepper(ctx)
	if err == nil {
		return pepper, nil
	}
	if p.deployment != build.Development || ctx.Err() != nil {
		return nil, err
	}
	p.logger.Warn("pepper unavailable, using development fallback pepper",
		slog.String("deployment", p.deployment.String()),
		slog.Any("error", err))
	return util.CopyBytes(DevPepper), nil
}
