package llm

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerastion/trioflow/types"
)

// fakeProvider scripts a sequence of completion results.
type fakeProvider struct {
	name     string
	calls    int
	errs     []error // errs[i] returned on call i; nil means success
	resp     *ChatResponse
	streamFn func(ctx context.Context) (<-chan StreamChunk, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	return f.resp, nil
}

func (f *fakeProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	if f.streamFn != nil {
		return f.streamFn(ctx)
	}
	ch := make(chan StreamChunk)
	close(ch)
	return ch, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	return &HealthStatus{Healthy: true}, nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      5 * time.Millisecond,
		BackoffFactor: 2.0,
		RetryableOnly: true,
	}
}

func TestRetryProvider_RecoversFromTransientError(t *testing.T) {
	t.Parallel()

	transient := types.NewError(types.ErrUpstreamError, "flaky").
		WithHTTPStatus(http.StatusBadGateway).WithRetryable(true)
	inner := &fakeProvider{
		name: "fake",
		errs: []error{transient, transient, nil},
		resp: &ChatResponse{Model: "m", Choices: []ChatChoice{{Message: Message{Content: "ok"}}}},
	}
	p := NewRetryProvider(inner, fastRetryConfig(), nil)

	resp, err := p.Completion(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, 3, inner.calls)
}

func TestRetryProvider_NonRetryableFailsFast(t *testing.T) {
	t.Parallel()

	fatal := types.NewError(types.ErrUnauthorized, "bad key").
		WithHTTPStatus(http.StatusUnauthorized)
	inner := &fakeProvider{name: "fake", errs: []error{fatal, nil}}
	p := NewRetryProvider(inner, fastRetryConfig(), nil)

	_, err := p.Completion(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
	assert.Equal(t, 1, inner.calls, "non-retryable error must not be retried")
}

func TestRetryProvider_ExhaustsRetries(t *testing.T) {
	t.Parallel()

	transient := types.NewError(types.ErrUpstreamError, "down").WithRetryable(true)
	inner := &fakeProvider{name: "fake", errs: []error{transient, transient, transient, transient, transient}}
	p := NewRetryProvider(inner, fastRetryConfig(), nil)

	_, err := p.Completion(context.Background(), &ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 4, inner.calls, "initial attempt plus MaxRetries")
}

func TestRetryProvider_ContextCancelStopsBackoff(t *testing.T) {
	t.Parallel()

	transient := types.NewError(types.ErrUpstreamError, "down").WithRetryable(true)
	inner := &fakeProvider{name: "fake", errs: []error{transient, transient, transient, transient}}
	cfg := fastRetryConfig()
	cfg.InitialDelay = time.Minute // force a long second-attempt wait
	cfg.MaxDelay = time.Minute

	p := NewRetryProvider(inner, cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.Completion(ctx, &ChatRequest{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.calls)
}

func TestCollectStream(t *testing.T) {
	t.Parallel()

	t.Run("concatenates deltas in order", func(t *testing.T) {
		ch := make(chan StreamChunk, 4)
		ch <- StreamChunk{Delta: "Hel"}
		ch <- StreamChunk{Delta: "lo "}
		ch <- StreamChunk{Delta: "world", Usage: &ChatUsage{TotalTokens: 7}}
		close(ch)

		text, usage, err := CollectStream(context.Background(), ch)
		require.NoError(t, err)
		assert.Equal(t, "Hello world", text)
		require.NotNil(t, usage)
		assert.Equal(t, 7, usage.TotalTokens)
	})

	t.Run("chunk error aborts", func(t *testing.T) {
		ch := make(chan StreamChunk, 2)
		ch <- StreamChunk{Delta: "partial"}
		ch <- StreamChunk{Err: types.NewError(types.ErrUpstreamError, "cut off")}
		close(ch)

		text, _, err := CollectStream(context.Background(), ch)
		require.Error(t, err)
		assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
		assert.Equal(t, "partial", text)
	})

	t.Run("cancellation abandons stream", func(t *testing.T) {
		ch := make(chan StreamChunk)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := CollectStream(ctx, ch)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
