package orchestrator

import (
	"github.com/Kerastion/trioflow/evolution"
	"github.com/Kerastion/trioflow/policy"
	"github.com/Kerastion/trioflow/types"
)

// Config tunes one conversation session.
type Config struct {
	// Topic is the conversation subject; topic keywords anchor the drift
	// and relevance metrics.
	Topic string `yaml:"topic" json:"topic"`

	// MaxTurns bounds the conversation and drives phase progression.
	MaxTurns int `yaml:"max_turns" json:"max_turns"`

	// Model is the default model name passed to the provider.
	Model string `yaml:"model" json:"model"`

	// Strategy selects the speaker policy. Defaults to reactive.
	Strategy policy.Strategy `yaml:"strategy" json:"strategy"`

	// Stream toggles SSE streaming; deltas are concatenated either way.
	Stream bool `yaml:"stream" json:"stream"`

	// HistoryWindow caps how many trailing utterances go into the prompt.
	HistoryWindow int `yaml:"history_window" json:"history_window"`

	// MaxTokens caps each completion.
	MaxTokens int `yaml:"max_tokens" json:"max_tokens"`

	// ContextWindow is the model's context size in tokens. When set, the
	// completion cap shrinks so prompt plus reply fit inside it. 0 skips
	// the check.
	ContextWindow int `yaml:"context_window" json:"context_window"`

	// AutosaveEvery persists a population snapshot every N steps when a
	// store is attached. 0 disables autosave.
	AutosaveEvery int `yaml:"autosave_every" json:"autosave_every"`

	// Evolution tunes the per-role variant populations.
	Evolution evolution.Config `yaml:"evolution" json:"evolution"`

	// Baselines seed each role's population. Roles left out get the
	// built-in persona defaults.
	Baselines map[types.Role]evolution.PromptConfig `yaml:"-" json:"-"`
}

// DefaultConfig returns a session config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		Topic:         "an open conversation",
		MaxTurns:      30,
		Strategy:      policy.StrategyReactive,
		HistoryWindow: 12,
		MaxTokens:     512,
		ContextWindow: 8192,
		AutosaveEvery: 10,
		Evolution:     evolution.DefaultConfig(),
	}
}

// defaultBaselines are the built-in persona prompts per role.
func defaultBaselines() map[types.Role]evolution.PromptConfig {
	return map[types.Role]evolution.PromptConfig{
		types.RoleInitiator: {
			SystemText:  "You are the initiator. Open threads of conversation, bring fresh angles on the topic and keep the energy up.",
			StyleText:   "Curious, playful, concise.",
			Temperature: 0.8,
		},
		types.RoleReactor: {
			SystemText:  "You are the reactor. Respond to the last speaker's point directly: build on it, push back or twist it.",
			StyleText:   "Sharp, engaged, a little contrarian.",
			Temperature: 0.7,
		},
		types.RoleModerator: {
			SystemText:  "You are the moderator. Keep the conversation on topic, cool down friction and hand the floor back quickly.",
			StyleText:   "Calm, brief, even-handed.",
			Temperature: 0.5,
		},
	}
}
