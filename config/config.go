package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Kerastion/trioflow/evolution"
	"github.com/Kerastion/trioflow/store"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig      `yaml:"server" env:"SERVER"`
	Session   SessionConfig     `yaml:"session" env:"SESSION"`
	Evolution evolution.Config  `yaml:"evolution" env:"-"`
	LLM       LLMConfig         `yaml:"llm" env:"LLM"`
	Store     StoreConfig       `yaml:"store" env:"STORE"`
	Redis     store.RedisConfig `yaml:"redis" env:"-"`
	Log       LogConfig         `yaml:"log" env:"LOG"`
}

// ServerConfig holds the HTTP surface settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// JWTSecret signs bearer tokens; an empty secret disables auth.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// WSBuffer is the per-client step buffer; the oldest view is dropped
	// when a slow client falls behind.
	WSBuffer int `yaml:"ws_buffer" env:"WS_BUFFER"`
}

// SessionConfig seeds new conversation sessions.
type SessionConfig struct {
	Topic         string `yaml:"topic" env:"TOPIC"`
	MaxTurns      int    `yaml:"max_turns" env:"MAX_TURNS"`
	Model         string `yaml:"model" env:"MODEL"`
	Strategy      string `yaml:"strategy" env:"STRATEGY"`
	Stream        bool   `yaml:"stream" env:"STREAM"`
	HistoryWindow int    `yaml:"history_window" env:"HISTORY_WINDOW"`
	MaxTokens     int    `yaml:"max_tokens" env:"MAX_TOKENS"`
	ContextWindow int    `yaml:"context_window" env:"CONTEXT_WINDOW"`
	AutosaveEvery int    `yaml:"autosave_every" env:"AUTOSAVE_EVERY"`
}

// LLMConfig points at the upstream chat-completions endpoint.
type LLMConfig struct {
	Provider   string        `yaml:"provider" env:"PROVIDER"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" env:"MAX_RETRIES"`
	// RequestsPerSecond caps the upstream call rate; 0 disables limiting.
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	Burst             int     `yaml:"burst" env:"BURST"`
}

// StoreConfig selects the persistence backend.
type StoreConfig struct {
	// Backend is one of sqlite, redis, none.
	Backend string `yaml:"backend" env:"BACKEND"`
	// DSN is the sqlite file path, or ":memory:".
	DSN string `yaml:"dsn" env:"DSN"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL"`
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			WSBuffer:        32,
		},
		Session: SessionConfig{
			Topic:         "an open conversation",
			MaxTurns:      30,
			Model:         "gpt-4o-mini",
			Strategy:      "reactive",
			HistoryWindow: 12,
			MaxTokens:     512,
			ContextWindow: 8192,
			AutosaveEvery: 10,
		},
		Evolution: evolution.DefaultConfig(),
		LLM: LLMConfig{
			Provider:   "openai",
			BaseURL:    "https://api.openai.com",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Store: StoreConfig{
			Backend: "sqlite",
			DSN:     "trioflow.db",
		},
		Redis: store.RedisConfig{
			Addr: "localhost:6379",
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
	}
}

// Validate rejects configurations the process cannot start with.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Session.MaxTurns <= 0 {
		errs = append(errs, "max_turns must be positive")
	}
	if c.Session.HistoryWindow <= 0 {
		errs = append(errs, "history_window must be positive")
	}
	if c.Session.ContextWindow < 0 {
		errs = append(errs, "context_window must not be negative")
	}
	switch c.Session.Strategy {
	case "round_robin", "balanced", "reactive":
	default:
		errs = append(errs, fmt.Sprintf("unknown strategy %q", c.Session.Strategy))
	}
	switch c.Store.Backend {
	case "sqlite", "redis", "none":
	default:
		errs = append(errs, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
	}
	if c.Evolution.MaxVariants <= 0 {
		errs = append(errs, "max_variants must be positive")
	}
	if c.Evolution.ExplorationRate < 0 || c.Evolution.ExplorationRate > 1 {
		errs = append(errs, "exploration_rate must be within [0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
