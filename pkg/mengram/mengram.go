// Package mengram is the embeddable SDK surface of the memory engine.
// A Memory hosts many tenants: each user ID owns an isolated vault
// subdirectory with its own brain, while the LLM client, embedder, and
// upstream rate limiter are shared across all of them.
//
// Memory is safe for concurrent use. Multiple goroutines can call any
// method simultaneously for the same or different user IDs.
package mengram

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/alibaizhanov/mengram/pkg/brain"
	"github.com/alibaizhanov/mengram/pkg/embed"
	"github.com/alibaizhanov/mengram/pkg/extract"
	"github.com/alibaizhanov/mengram/pkg/graph"
	"github.com/alibaizhanov/mengram/pkg/llm"
	"github.com/alibaizhanov/mengram/pkg/retrieve"
	"github.com/alibaizhanov/mengram/pkg/vault"
)

// ErrNotFound is returned when a named entity does not exist for a user.
var ErrNotFound = brain.ErrNotFound

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("mengram: memory is closed")

// DefaultUser is the tenant used when a caller passes an empty user ID.
const DefaultUser = "default"

// Memory is the multi-tenant entry point.
type Memory struct {
	cfg       Config
	client    llm.Client
	embedder  embed.Embedder
	extractor *extract.Extractor
	logger    *slog.Logger

	mu     sync.Mutex
	brains map[string]*brain.Brain
}

// Option configures a Memory.
type Option func(*Memory)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) { m.logger = logger }
}

// WithLLM injects an LLM client, bypassing the config factory.
func WithLLM(client llm.Client) Option {
	return func(m *Memory) { m.client = client }
}

// WithEmbedder injects an embedder, bypassing the config factory. The
// embedder is used as given, without the production pipeline wrappers.
func WithEmbedder(e embed.Embedder) Option {
	return func(m *Memory) { m.embedder = e }
}

// New creates a Memory from config. The vault root is created lazily,
// one subdirectory per user, on first use.
func New(ctx context.Context, cfg Config, opts ...Option) (*Memory, error) {
	if cfg.VaultPath == "" {
		return nil, ErrMissingVaultPath
	}
	cfg.withDefaults()

	m := &Memory{
		cfg:    cfg,
		logger: slog.Default(),
		brains: make(map[string]*brain.Brain),
	}
	for _, opt := range opts {
		opt(m)
	}

	// One token bucket for both extraction and embedding traffic.
	limiter := rate.NewLimiter(
		rate.Every(time.Minute/time.Duration(cfg.Extraction.RatePerMinute)),
		cfg.Extraction.RatePerMinute,
	)

	if m.client == nil {
		client, err := llm.New(ctx, cfg.LLM)
		if err != nil {
			return nil, err
		}
		m.client = client
	}
	if m.embedder == nil {
		provider, err := newEmbedder(cfg.Embeddings)
		if err != nil {
			return nil, err
		}
		m.embedder = embed.Pipeline(provider, limiter)
	}
	m.extractor = extract.New(m.client,
		extract.WithLimiter(limiter),
		extract.WithLogger(m.logger),
	)
	return m, nil
}

// open returns the brain for a user, creating it and its vault directory
// on first use.
func (m *Memory) open(user string) (*brain.Brain, error) {
	if user == "" {
		user = DefaultUser
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.brains == nil {
		return nil, ErrClosed
	}
	if b, ok := m.brains[user]; ok {
		return b, nil
	}

	store, err := vault.Open(filepath.Join(m.cfg.VaultPath, vault.Sanitize(user)))
	if err != nil {
		return nil, err
	}
	b := brain.New(store, m.extractor, m.embedder,
		brain.WithLogger(m.logger.With(slog.String("user", user))),
		brain.WithChunkSize(m.cfg.Extraction.ChunkSize),
		brain.WithRetrieval(retrieve.Options{
			TopK:       m.cfg.Retrieval.TopK,
			MinScore:   m.cfg.Retrieval.MinScore,
			GraphDepth: m.cfg.Retrieval.GraphDepth,
		}),
	)
	m.brains[user] = b
	return b, nil
}

// Add ingests free text into a user's memory.
func (m *Memory) Add(ctx context.Context, user, text string) (*brain.RememberResult, error) {
	b, err := m.open(user)
	if err != nil {
		return nil, err
	}
	return b.RememberText(ctx, text)
}

// AddMessages ingests a multi-turn conversation into a user's memory.
func (m *Memory) AddMessages(ctx context.Context, user string, messages []llm.Message) (*brain.RememberResult, error) {
	b, err := m.open(user)
	if err != nil {
		return nil, err
	}
	return b.Remember(ctx, messages)
}

// Search returns structured rows for the entities matching a query.
func (m *Memory) Search(ctx context.Context, user, query string, topK int) ([]brain.SearchRow, error) {
	b, err := m.open(user)
	if err != nil {
		return nil, err
	}
	return b.Search(ctx, query, retrieve.Options{TopK: topK})
}

// Recall returns the assembled context block for a query, ready to be
// pasted into an agent prompt.
func (m *Memory) Recall(ctx context.Context, user, query string, topK int) (string, error) {
	b, err := m.open(user)
	if err != nil {
		return "", err
	}
	return b.Recall(ctx, query, retrieve.Options{TopK: topK})
}

// EntityContext returns the assembled context anchored on one entity:
// its note chunks plus its graph neighborhood expanded depth levels.
// depth <= 0 uses the default expansion depth.
func (m *Memory) EntityContext(ctx context.Context, user, name string, depth int) (string, error) {
	b, err := m.open(user)
	if err != nil {
		return "", err
	}
	return b.EntityContext(ctx, name, depth)
}

// Get returns a single entity by name.
func (m *Memory) Get(ctx context.Context, user, name string) (*brain.Item, error) {
	b, err := m.open(user)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, name)
}

// GetAll returns every entity in a user's vault, sorted by name.
func (m *Memory) GetAll(ctx context.Context, user string) ([]*brain.Item, error) {
	b, err := m.open(user)
	if err != nil {
		return nil, err
	}
	return b.GetAll(ctx)
}

// Delete removes an entity's note from a user's vault.
func (m *Memory) Delete(user, name string) error {
	b, err := m.open(user)
	if err != nil {
		return err
	}
	return b.Delete(name)
}

// Stats returns vault, graph, and index statistics for a user.
func (m *Memory) Stats(ctx context.Context, user string) (*brain.Stats, error) {
	b, err := m.open(user)
	if err != nil {
		return nil, err
	}
	return b.Stats(ctx)
}

// Subgraph returns the neighborhood of an entity for visualization.
func (m *Memory) Subgraph(ctx context.Context, user, name string, depth int) (*graph.Subgraph, error) {
	b, err := m.open(user)
	if err != nil {
		return nil, err
	}
	return b.Subgraph(ctx, name, depth)
}

// Close releases all per-user state. Subsequent operations return
// ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.brains = nil
	return nil
}
