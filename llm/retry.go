package llm

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/types"
)

// RetryConfig tunes the exponential-backoff wrapper.
type RetryConfig struct {
	MaxRetries    int           `json:"max_retries"`
	InitialDelay  time.Duration `json:"initial_delay"`
	MaxDelay      time.Duration `json:"max_delay"`
	BackoffFactor float64       `json:"backoff_factor"`
	RetryableOnly bool          `json:"retryable_only"` // only retry errors marked Retryable
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
		RetryableOnly: true,
	}
}

// RetryProvider wraps a Provider with exponential-backoff retries.
type RetryProvider struct {
	inner  Provider
	cfg    RetryConfig
	logger *zap.Logger
}

var _ Provider = (*RetryProvider)(nil)

// NewRetryProvider creates a retrying wrapper around inner.
func NewRetryProvider(inner Provider, cfg RetryConfig, logger *zap.Logger) *RetryProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryProvider{
		inner:  inner,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "retry_provider"), zap.String("provider", inner.Name())),
	}
}

func (p *RetryProvider) Name() string { return p.inner.Name() }

func (p *RetryProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

// Completion retries transient failures with exponential backoff.
func (p *RetryProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt)
			p.logger.Debug("retrying completion",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := p.inner.Completion(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if p.cfg.RetryableOnly && !types.IsRetryable(err) {
			return nil, err
		}
		p.logger.Warn("completion failed, will retry",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, fmt.Errorf("completion failed after %d retries: %w", p.cfg.MaxRetries, lastErr)
}

// Stream retries only connection establishment; mid-stream errors are not
// retried.
func (p *RetryProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := p.delay(attempt)
			p.logger.Debug("retrying stream",
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		ch, err := p.inner.Stream(ctx, req)
		if err == nil {
			return ch, nil
		}
		lastErr = err

		if p.cfg.RetryableOnly && !types.IsRetryable(err) {
			return nil, err
		}
		p.logger.Warn("stream connection failed, will retry",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return nil, fmt.Errorf("stream failed after %d retries: %w", p.cfg.MaxRetries, lastErr)
}

func (p *RetryProvider) delay(attempt int) time.Duration {
	d := float64(p.cfg.InitialDelay) * math.Pow(p.cfg.BackoffFactor, float64(attempt-1))
	if d > float64(p.cfg.MaxDelay) {
		d = float64(p.cfg.MaxDelay)
	}
	return time.Duration(d)
}
