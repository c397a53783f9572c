package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitedProvider wraps a Provider with a token-bucket limiter. The
// consensus orchestrator fans out many concurrent generations; the limiter
// keeps the aggregate request rate within what the upstream tolerates.
// Waiting respects the caller's context, so cancellation releases queued
// requests promptly.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRateLimitedProvider wraps inner with a limiter of rps requests per
// second and the given burst. A non-positive rps disables limiting.
func NewRateLimitedProvider(inner Provider, rps float64, burst int, logger *zap.Logger) *RateLimitedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if rps > 0 {
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: limiter,
		logger:  logger.With(zap.String("component", "rate_limited_provider")),
	}
}

// Generate waits for limiter capacity, then delegates to the inner provider.
func (p *RateLimitedProvider) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return p.inner.Generate(ctx, req)
}

// Name returns the inner provider's name.
func (p *RateLimitedProvider) Name() string { return p.inner.Name() }
