package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerastion/trioflow/llm"
	"github.com/Kerastion/trioflow/types"
)

func testProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{
		ProviderName: "compat-test",
		APIKey:       "test-key",
		BaseURL:      server.URL,
		DefaultModel: "default-model",
	}, nil)
}

func TestCompletion(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody wireRequest
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wireResponse{
			ID:    "cmpl-1",
			Model: gotBody.Model,
			Choices: []wireChoice{{
				Index:        0,
				FinishReason: "stop",
				Message:      wireMessage{Role: "assistant", Content: "a dry reply"},
			}},
			Usage:   &wireUsage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
			Created: 1700000000,
		})
	})

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "say something"}},
		Temperature: 0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "default-model", gotBody.Model, "empty request model falls back to the default")
	assert.False(t, gotBody.Stream)
	assert.Equal(t, "a dry reply", resp.Text())
	assert.Equal(t, "compat-test", resp.Provider)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestCompletion_RequestModelWins(t *testing.T) {
	t.Parallel()

	var gotBody wireRequest
	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(wireResponse{Model: gotBody.Model})
	})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "special"})
	require.NoError(t, err)
	assert.Equal(t, "special", gotBody.Model)
}

func TestCompletion_MapsUpstreamErrors(t *testing.T) {
	t.Parallel()

	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"rate limit reached"}}`))
	})

	_, err := p.Completion(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
}

func TestStream_ConcatenatesDeltas(t *testing.T) {
	t.Parallel()

	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var body wireRequest
		json.NewDecoder(r.Body).Decode(&body)
		assert.True(t, body.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{"A ", "fridge ", "hums."}
		for _, c := range chunks {
			wire, _ := json.Marshal(wireResponse{
				ID:      "cmpl-2",
				Model:   "default-model",
				Choices: []wireChoice{{Delta: &wireMessage{Content: c}}},
			})
			w.Write([]byte("data: "))
			w.Write(wire)
			w.Write([]byte("\n\n"))
		}
		w.Write([]byte("data: [DONE]\n\n"))
	})

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{})
	require.NoError(t, err)

	text, _, err := llm.CollectStream(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "A fridge hums.", text)
}

func TestStream_ErrorStatusBeforeBody(t *testing.T) {
	t.Parallel()

	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	})

	_, err := p.Stream(context.Background(), &llm.ChatRequest{})
	require.Error(t, err)
	assert.Equal(t, types.ErrUnauthorized, types.GetErrorCode(err))
}

func TestStream_MalformedChunkSurfacesError(t *testing.T) {
	t.Parallel()

	p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte("data: {not json}\n\n"))
	})

	ch, err := p.Stream(context.Background(), &llm.ChatRequest{})
	require.NoError(t, err)

	_, _, err = llm.CollectStream(context.Background(), ch)
	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	t.Run("healthy", func(t *testing.T) {
		p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/models", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		})
		status, err := p.HealthCheck(context.Background())
		require.NoError(t, err)
		assert.True(t, status.Healthy)
	})

	t.Run("unhealthy", func(t *testing.T) {
		p := testProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
		status, err := p.HealthCheck(context.Background())
		require.Error(t, err)
		assert.False(t, status.Healthy)
	})
}
