// Package llm provides the LLM adapter: a minimal completion interface over
// pluggable hosted and local providers.
//
// # Implementations
//
//   - [Anthropic] — Claude via the Anthropic API
//   - [OpenAI] — GPT via the OpenAI API (or any OpenAI-compatible endpoint)
//   - [Gemini] — Gemini via the Google GenAI API
//   - [Ollama] — local models over plain HTTP
//
// Each call is a single round trip; there is no streaming. Extraction
// callers should keep temperature at 0 (the default) so the structured
// JSON contract stays stable. Retries are the caller's responsibility.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrUnknownProvider is returned by New for an unrecognized provider.
	ErrUnknownProvider = errors.New("llm: unknown provider")

	// ErrMissingAPIKey is returned when a hosted provider has no API key.
	ErrMissingAPIKey = errors.New("llm: missing api key")
)

// Role identifies who produced a chat message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Client is the interface to a text completion provider.
type Client interface {
	// Complete sends a single prompt and returns the completion text.
	// system may be empty; providers substitute a neutral default.
	Complete(ctx context.Context, prompt, system string) (string, error)

	// Chat sends a multi-turn conversation and returns the reply text.
	Chat(ctx context.Context, messages []Message, system string) (string, error)
}

// Provider names accepted by [New].
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
)

// Config selects and parameterizes a provider.
type Config struct {
	// Provider is one of the Provider* constants.
	Provider string `yaml:"provider"`

	// APIKey authenticates hosted providers. Ignored by ollama.
	APIKey string `yaml:"api_key"`

	// Model overrides the provider's default model.
	Model string `yaml:"model"`

	// BaseURL overrides the provider endpoint (ollama, OpenAI-compatible).
	BaseURL string `yaml:"base_url"`
}

// Default system prompts.
const (
	defaultExtractionSystem = "You are a knowledge extraction assistant."
	defaultChatSystem       = "You are a helpful assistant."
)

// New creates a Client for the configured provider.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: provider %s", ErrMissingAPIKey, cfg.Provider)
		}
		return NewAnthropic(cfg.APIKey, WithModel(cfg.Model)), nil
	case ProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: provider %s", ErrMissingAPIKey, cfg.Provider)
		}
		return NewOpenAI(cfg.APIKey, WithModel(cfg.Model), WithBaseURL(cfg.BaseURL)), nil
	case ProviderGemini:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("%w: provider %s", ErrMissingAPIKey, cfg.Provider)
		}
		return NewGemini(ctx, cfg.APIKey, WithModel(cfg.Model))
	case ProviderOllama:
		return NewOllama(WithModel(cfg.Model), WithBaseURL(cfg.BaseURL)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// orDefault returns s, or def when s is empty.
func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
