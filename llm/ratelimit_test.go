package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitedProvider_AllowsWithinBurst(t *testing.T) {
	t.Parallel()

	inner := &fakeProvider{name: "fake", resp: &ChatResponse{Model: "m"}}
	p := NewRateLimitedProvider(inner, 1, 3, nil)

	for i := 0; i < 3; i++ {
		_, err := p.Completion(context.Background(), &ChatRequest{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, inner.calls)
}

func TestRateLimitedProvider_BlocksOverLimit(t *testing.T) {
	t.Parallel()

	inner := &fakeProvider{name: "fake", resp: &ChatResponse{Model: "m"}}
	p := NewRateLimitedProvider(inner, 0.001, 1, nil) // one request, then ~forever

	_, err := p.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Completion(ctx, &ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls, "second call must be held back by the limiter")
}

func TestRateLimitedProvider_HealthCheckBypassesLimiter(t *testing.T) {
	t.Parallel()

	inner := &fakeProvider{name: "fake", resp: &ChatResponse{Model: "m"}}
	p := NewRateLimitedProvider(inner, 0.001, 1, nil)

	_, err := p.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
