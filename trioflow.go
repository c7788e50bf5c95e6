// Package trioflow provides a top-level convenience entry point for running
// three-role conversations with minimal boilerplate.
//
// Usage:
//
//	import "github.com/Kerastion/trioflow"
//
//	sess, err := trioflow.New(trioflow.WithOpenAI("gpt-4o-mini"),
//		trioflow.WithTopic("the future of public libraries"))
//	view, err := sess.Step(ctx)
//
// This is a thin wrapper around [orchestrator.NewSession]; use the
// orchestrator package directly when you need stores, metrics, or observers.
package trioflow

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Kerastion/trioflow/llm"
	"github.com/Kerastion/trioflow/llm/openaicompat"
	"github.com/Kerastion/trioflow/orchestrator"
	"github.com/Kerastion/trioflow/policy"
)

// Option configures the session created by [New].
type Option func(*options)

type options struct {
	topic    string
	model    string
	maxTurns int
	strategy policy.Strategy
	provider llm.Provider
	logger   *zap.Logger

	// Provider shortcut fields, used when provider is nil.
	providerName string
	baseURL      string
	apiKey       string
}

// WithProvider sets a pre-built LLM provider.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithOpenAI targets the OpenAI API with the given model.
// API key is read from the OPENAI_API_KEY environment variable.
func WithOpenAI(model string) Option {
	return func(o *options) {
		o.providerName = "openai"
		o.baseURL = "https://api.openai.com"
		o.model = model
		if o.apiKey == "" {
			o.apiKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}

// WithDeepSeek targets the DeepSeek API with the given model.
// API key is read from the DEEPSEEK_API_KEY environment variable.
func WithDeepSeek(model string) Option {
	return func(o *options) {
		o.providerName = "deepseek"
		o.baseURL = "https://api.deepseek.com"
		o.model = model
		if o.apiKey == "" {
			o.apiKey = os.Getenv("DEEPSEEK_API_KEY")
		}
	}
}

// WithOpenAICompatible targets any OpenAI-compatible endpoint, e.g. a local
// Ollama or vLLM server.
func WithOpenAICompatible(name, baseURL, model string) Option {
	return func(o *options) {
		o.providerName = name
		o.baseURL = baseURL
		o.model = model
	}
}

// WithAPIKey overrides the API key for provider shortcuts.
func WithAPIKey(key string) Option {
	return func(o *options) { o.apiKey = key }
}

// WithModel overrides the model set by provider shortcuts.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithTopic sets the conversation topic.
func WithTopic(topic string) Option {
	return func(o *options) { o.topic = topic }
}

// WithMaxTurns caps the conversation length.
func WithMaxTurns(n int) Option {
	return func(o *options) { o.maxTurns = n }
}

// WithStrategy selects the speaker policy. Defaults to reactive.
func WithStrategy(s policy.Strategy) Option {
	return func(o *options) { o.strategy = s }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a conversation session with minimal configuration. A provider
// must be specified via [WithProvider], [WithOpenAI], [WithDeepSeek], or
// [WithOpenAICompatible].
func New(opts ...Option) (*orchestrator.Session, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	p := o.provider
	if p == nil {
		if o.providerName == "" {
			return nil, fmt.Errorf("provider is required: use WithProvider, WithOpenAI, or WithOpenAICompatible")
		}
		if o.apiKey == "" && o.providerName != "local" {
			o.logger.Warn("no API key configured", zap.String("provider", o.providerName))
		}
		p = llm.NewRetryProvider(openaicompat.New(openaicompat.Config{
			ProviderName: o.providerName,
			APIKey:       o.apiKey,
			BaseURL:      o.baseURL,
			DefaultModel: o.model,
		}, o.logger), llm.DefaultRetryConfig(), o.logger)
	}

	cfg := orchestrator.DefaultConfig()
	if o.topic != "" {
		cfg.Topic = o.topic
	}
	if o.model != "" {
		cfg.Model = o.model
	}
	if o.maxTurns > 0 {
		cfg.MaxTurns = o.maxTurns
	}
	if o.strategy != "" {
		cfg.Strategy = o.strategy
	}

	return orchestrator.NewSession(cfg, p, orchestrator.WithLogger(o.logger))
}
