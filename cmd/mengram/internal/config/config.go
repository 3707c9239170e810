// Package config loads the engine configuration for the mengram CLI.
//
// The config file is YAML with the engine's keys:
//
//	vault_path: ./vault
//	llm:
//	  provider: anthropic
//	  model: claude-sonnet-4-20250514
//	embeddings:
//	  provider: openai
//	retrieval:
//	  top_k: 5
//	  min_score: 0.15
//	  graph_depth: 1
//	extraction:
//	  chunk_size: 500
//	  rate_per_minute: 100
//
// API keys may be omitted from the file; they fall back to the provider's
// conventional environment variable (ANTHROPIC_API_KEY, OPENAI_API_KEY,
// GEMINI_API_KEY, DASHSCOPE_API_KEY).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"

	"github.com/alibaizhanov/mengram/pkg/llm"
	"github.com/alibaizhanov/mengram/pkg/mengram"
)

// DefaultVaultPath is used when no config file sets vault_path.
const DefaultVaultPath = "./vault"

// fileName is the config file searched in the working directory and under
// os.UserConfigDir()/mengram/.
const fileName = "mengram.yaml"

// Load reads the configuration. An explicit path must exist; an empty
// path searches $MENGRAM_CONFIG, ./mengram.yaml, and the user config
// directory, falling back to pure defaults when nothing is found.
func Load(path string) (*mengram.Config, error) {
	cfg := &mengram.Config{}

	data, err := read(path)
	if err != nil {
		return nil, err
	}
	if data != nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}

	applyEnv(cfg)
	if cfg.VaultPath == "" {
		cfg.VaultPath = DefaultVaultPath
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = llm.ProviderAnthropic
	}
	return cfg, nil
}

func read(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return data, nil
	}

	candidates := []string{os.Getenv("MENGRAM_CONFIG"), fileName}
	if base, err := os.UserConfigDir(); err == nil {
		candidates = append(candidates, filepath.Join(base, "mengram", "config.yaml"))
	}
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if data, err := os.ReadFile(c); err == nil {
			return data, nil
		}
	}
	return nil, nil
}

// applyEnv fills credentials and the vault path from the environment when
// the file leaves them empty.
func applyEnv(cfg *mengram.Config) {
	if v := os.Getenv("MENGRAM_VAULT_PATH"); v != "" {
		cfg.VaultPath = v
	}

	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case llm.ProviderOpenAI:
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case llm.ProviderGemini:
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		}
	}

	if cfg.Embeddings.APIKey == "" {
		switch cfg.Embeddings.Provider {
		case mengram.EmbeddingsDashScope:
			cfg.Embeddings.APIKey = os.Getenv("DASHSCOPE_API_KEY")
		default:
			cfg.Embeddings.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
}
