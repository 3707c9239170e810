package mengram

import (
	"errors"
	"fmt"

	"github.com/alibaizhanov/mengram/pkg/embed"
	"github.com/alibaizhanov/mengram/pkg/llm"
	"github.com/alibaizhanov/mengram/pkg/note"
	"github.com/alibaizhanov/mengram/pkg/retrieve"
)

// Configuration errors.
var (
	// ErrMissingVaultPath is returned by New when vault_path is empty.
	ErrMissingVaultPath = errors.New("mengram: vault_path is required")

	// ErrUnknownEmbeddings is returned by New for an unrecognized
	// embeddings provider.
	ErrUnknownEmbeddings = errors.New("mengram: unknown embeddings provider")
)

// Embeddings provider names.
const (
	EmbeddingsOpenAI    = "openai"
	EmbeddingsDashScope = "dashscope"
)

// DefaultRatePerMinute caps shared upstream requests per minute.
const DefaultRatePerMinute = 100

// Config is the full engine configuration, unmarshalable from YAML.
type Config struct {
	// VaultPath is the root directory; each user gets a subdirectory.
	VaultPath string `yaml:"vault_path"`

	LLM        llm.Config       `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Extraction ExtractionConfig `yaml:"extraction"`
}

// EmbeddingsConfig selects and parameterizes the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	BaseURL    string `yaml:"base_url"`
}

// RetrievalConfig sets the default hybrid search parameters.
type RetrievalConfig struct {
	TopK       int     `yaml:"top_k"`
	MinScore   float32 `yaml:"min_score"`
	GraphDepth int     `yaml:"graph_depth"`
}

// ExtractionConfig tunes the ingestion pipeline.
type ExtractionConfig struct {
	ChunkSize     int `yaml:"chunk_size"`
	RatePerMinute int `yaml:"rate_per_minute"`
}

func (c *Config) withDefaults() {
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = retrieve.DefaultTopK
	}
	if c.Retrieval.MinScore <= 0 {
		c.Retrieval.MinScore = retrieve.DefaultMinScore
	}
	if c.Retrieval.GraphDepth <= 0 {
		c.Retrieval.GraphDepth = retrieve.DefaultGraphDepth
	}
	if c.Extraction.ChunkSize <= 0 {
		c.Extraction.ChunkSize = note.DefaultChunkSize
	}
	if c.Extraction.RatePerMinute <= 0 {
		c.Extraction.RatePerMinute = DefaultRatePerMinute
	}
}

// newEmbedder builds the raw provider from config. Callers wrap it with
// embed.Pipeline.
func newEmbedder(cfg EmbeddingsConfig) (embed.Embedder, error) {
	var opts []embed.Option
	if cfg.Model != "" {
		opts = append(opts, embed.WithModel(cfg.Model))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, embed.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Dimensions > 0 {
		opts = append(opts, embed.WithDimension(cfg.Dimensions))
	}
	switch cfg.Provider {
	case EmbeddingsOpenAI, "":
		return embed.NewOpenAI(cfg.APIKey, opts...), nil
	case EmbeddingsDashScope:
		return embed.NewDashScope(cfg.APIKey, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEmbeddings, cfg.Provider)
	}
}
