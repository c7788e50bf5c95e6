package llm

import (
	"context"
	"strings"
	"time"

	"github.com/Kerastion/trioflow/types"
)

// MessageRole labels a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one chat turn in a completion request.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// ChatRequest is the unified completion request passed to any Provider.
type ChatRequest struct {
	Provider          string        `json:"provider,omitempty"`
	Model             string        `json:"model"`
	Messages          []Message     `json:"messages"`
	MaxTokens         int           `json:"max_tokens,omitempty"`
	Temperature       float32       `json:"temperature,omitempty"`
	TopP              float32       `json:"top_p,omitempty"`
	RepetitionPenalty float32       `json:"repetition_penalty,omitempty"`
	Stop              []string      `json:"stop,omitempty"`
	Stream            bool          `json:"stream,omitempty"`
	Timeout           time.Duration `json:"timeout,omitempty"`
}

// ChatUsage reports upstream token accounting.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatChoice is one completion alternative.
type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

// ChatResponse is the unified completion response.
type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// Text returns the content of the first choice, "" when empty.
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// StreamChunk is one SSE delta. The final chunk may carry Usage. A transport
// failure mid-stream surfaces as a chunk with Err set, then channel close.
type StreamChunk struct {
	ID           string       `json:"id,omitempty"`
	Provider     string       `json:"provider,omitempty"`
	Model        string       `json:"model,omitempty"`
	Delta        string       `json:"delta"`
	FinishReason string       `json:"finish_reason,omitempty"`
	Usage        *ChatUsage   `json:"usage,omitempty"`
	Err          *types.Error `json:"error,omitempty"`
}

// HealthStatus is the result of a provider liveness probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider is the unified LLM adapter contract.
type Provider interface {
	// Completion performs a synchronous chat request.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream performs a streaming chat request. The returned channel closes
	// when the stream ends; errors after connection arrive as chunk Err.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck probes upstream availability.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's unique identifier.
	Name() string
}

// CollectStream drains a stream channel and concatenates deltas in arrival
// order. The first chunk error aborts and is returned; context cancellation
// abandons the remainder of the stream.
func CollectStream(ctx context.Context, ch <-chan StreamChunk) (string, *ChatUsage, error) {
	var sb strings.Builder
	var usage *ChatUsage
	for {
		select {
		case <-ctx.Done():
			return sb.String(), usage, ctx.Err()
		case chunk, ok := <-ch:
			if !ok {
				return sb.String(), usage, nil
			}
			if chunk.Err != nil {
				return sb.String(), usage, chunk.Err
			}
			sb.WriteString(chunk.Delta)
			if chunk.Usage != nil {
				usage = chunk.Usage
			}
		}
	}
}
