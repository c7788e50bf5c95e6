package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitedProvider gates requests through a token-bucket limiter so a
// busy session cannot exceed the upstream's allowed request rate.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ Provider = (*RateLimitedProvider)(nil)

// NewRateLimitedProvider wraps inner with an rps limit and burst size.
func NewRateLimitedProvider(inner Provider, rps float64, burst int, logger *zap.Logger) *RateLimitedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:  logger.With(zap.String("component", "ratelimit_provider"), zap.String("provider", inner.Name())),
	}
}

func (p *RateLimitedProvider) Name() string { return p.inner.Name() }

// HealthCheck bypasses the limiter; probes must not dry up the bucket.
func (p *RateLimitedProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

func (p *RateLimitedProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Completion(ctx, req)
}

func (p *RateLimitedProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.inner.Stream(ctx, req)
}
