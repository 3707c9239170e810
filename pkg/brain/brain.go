// Package brain coordinates one tenant's memory: it owns the vault store,
// the extraction pipeline, and lazily rebuilt graph and vector views over
// the vault. All public operations are safe for concurrent use; writes
// within a tenant are serialized by the vault, and view rebuilds are
// guarded so concurrent readers never double-build.
package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/alibaizhanov/mengram/pkg/embed"
	"github.com/alibaizhanov/mengram/pkg/extract"
	"github.com/alibaizhanov/mengram/pkg/graph"
	"github.com/alibaizhanov/mengram/pkg/llm"
	"github.com/alibaizhanov/mengram/pkg/note"
	"github.com/alibaizhanov/mengram/pkg/retrieve"
	"github.com/alibaizhanov/mengram/pkg/vault"
	"github.com/alibaizhanov/mengram/pkg/vecindex"
)

// ErrNotFound is returned when a named entity is absent.
var ErrNotFound = errors.New("brain: entity not found")

// Limits on the existing-context block handed to the extractor.
const (
	contextMaxFacts   = 5
	contextMaxFactLen = 100
)

// Brain is the per-tenant memory coordinator.
type Brain struct {
	store     *vault.Store
	extractor *extract.Extractor
	embedder  embed.Embedder
	logger    *slog.Logger
	retrieval retrieve.Options
	chunkSize int

	mu    sync.RWMutex
	cache *views
}

// views is one consistent snapshot of the derived state, tagged with the
// vault generation it was built from.
type views struct {
	gen       uint64
	notes     []*note.ParsedNote
	graph     *graph.Graph
	index     *vecindex.Index
	retriever *retrieve.Retriever
}

// Option configures a Brain.
type Option func(*Brain)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Brain) { b.logger = logger }
}

// WithRetrieval sets default retrieval options for Recall and Search.
func WithRetrieval(opts retrieve.Options) Option {
	return func(b *Brain) { b.retrieval = opts }
}

// WithChunkSize overrides the chunk size used when notes are split for
// the vector index. Zero keeps note.DefaultChunkSize.
func WithChunkSize(size int) Option {
	return func(b *Brain) { b.chunkSize = size }
}

// New creates a Brain over a vault store, extractor, and embedder.
func New(store *vault.Store, extractor *extract.Extractor, embedder embed.Embedder, opts ...Option) *Brain {
	b := &Brain{
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Vault exposes the underlying store.
func (b *Brain) Vault() *vault.Store { return b.store }

// snapshot returns derived views consistent with the current vault
// generation, rebuilding them under the writer lock when stale. The
// generation is re-checked after lock acquisition so two readers that
// both observed a stale cache build only once.
func (b *Brain) snapshot(ctx context.Context) (*views, error) {
	gen := b.store.Generation()

	b.mu.RLock()
	v := b.cache
	b.mu.RUnlock()
	if v != nil && v.gen == gen {
		return v, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	gen = b.store.Generation()
	if b.cache != nil && b.cache.gen == gen {
		return b.cache, nil
	}

	notes, err := b.store.Notes()
	if err != nil {
		return nil, err
	}
	if b.chunkSize > 0 && b.chunkSize != note.DefaultChunkSize {
		for _, n := range notes {
			n.Chunks = note.BuildChunks(n.Sections, b.chunkSize)
		}
	}
	g := graph.Build(notes)
	idx, err := vecindex.Build(ctx, b.embedder, notes)
	if err != nil {
		return nil, fmt.Errorf("brain: rebuild vector index: %w", err)
	}
	b.cache = &views{
		gen:       gen,
		notes:     notes,
		graph:     g,
		index:     idx,
		retriever: retrieve.New(g, idx),
	}
	b.logger.Debug("derived views rebuilt",
		"generation", gen, "notes", len(notes), "chunks", idx.Len())
	return b.cache, nil
}

// RememberResult reports what one ingestion changed.
type RememberResult struct {
	Created        []string
	Updated        []string
	KnowledgeCount int
}

// Remember extracts knowledge from a conversation and merges it into the
// vault. The tenant's known entities are summarized into the extraction
// prompt so the model reuses canonical names and skips stored facts.
func (b *Brain) Remember(ctx context.Context, conversation []llm.Message) (*RememberResult, error) {
	existing, err := b.existingContext()
	if err != nil {
		return nil, err
	}
	res, err := b.extractor.Extract(ctx, conversation, existing)
	if err != nil {
		return nil, err
	}
	if res.Empty() {
		return &RememberResult{}, nil
	}
	ar, err := b.store.Apply(res)
	if err != nil {
		return nil, err
	}
	return &RememberResult{
		Created:        ar.Created,
		Updated:        ar.Updated,
		KnowledgeCount: len(res.Knowledge),
	}, nil
}

// RememberText ingests free text as a single user message.
func (b *Brain) RememberText(ctx context.Context, text string) (*RememberResult, error) {
	return b.Remember(ctx, []llm.Message{{Role: llm.RoleUser, Content: text}})
}

// existingContext lists known entities with a few of their facts, for the
// extraction prompt.
func (b *Brain) existingContext() (string, error) {
	notes, err := b.store.Notes()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, n := range notes {
		facts := noteFacts(n)
		if len(facts) > contextMaxFacts {
			facts = facts[:contextMaxFacts]
		}
		for i, f := range facts {
			facts[i] = truncate(f, contextMaxFactLen)
		}
		typ := n.FrontMatter.Type
		if typ == "" {
			typ = graph.TypeConcept
		}
		fmt.Fprintf(&sb, "- %s (%s): %s\n", n.Name, typ, strings.Join(facts, "; "))
	}
	return sb.String(), nil
}

// Recall returns the assembled natural-language context for a query.
func (b *Brain) Recall(ctx context.Context, query string, opts retrieve.Options) (string, error) {
	v, err := b.snapshot(ctx)
	if err != nil {
		return "", err
	}
	opts = b.mergeOpts(opts)
	res, err := v.retriever.Query(ctx, query, opts)
	if err != nil {
		return "", err
	}
	return res.AssembledContext, nil
}

// EntityContext returns the assembled context anchored on a single
// entity: all of its note chunks plus its graph neighborhood expanded
// depth levels. depth <= 0 takes retrieve.DefaultEntityDepth.
func (b *Brain) EntityContext(ctx context.Context, name string, depth int) (string, error) {
	v, err := b.snapshot(ctx)
	if err != nil {
		return "", err
	}
	res, err := v.retriever.EntityContext(name, depth)
	if err != nil {
		if errors.Is(err, retrieve.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", err
	}
	return res.AssembledContext, nil
}

// SearchRow is one structured search result: the best-scoring entity
// joined with its full note data and direct relations.
type SearchRow struct {
	Entity    string
	Type      string
	Score     float32
	Facts     []string
	Relations []Relation
	Knowledge []string
}

// Relation is an entity's direct connection as seen from its side.
type Relation struct {
	Type       string
	Target     string
	TargetType string
}

// Search runs a semantic query and returns one row per matched entity,
// best score first.
func (b *Brain) Search(ctx context.Context, query string, opts retrieve.Options) ([]SearchRow, error) {
	v, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	opts = b.mergeOpts(opts)
	matches, err := v.index.Search(ctx, query, opts.TopK, opts.MinScore)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*note.ParsedNote, len(v.notes))
	for _, n := range v.notes {
		byName[strings.ToLower(n.Name)] = n
	}

	var rows []SearchRow
	seen := make(map[string]bool)
	for _, m := range matches {
		key := strings.ToLower(m.EntityID)
		if seen[key] {
			continue
		}
		seen[key] = true

		row := SearchRow{Entity: m.EntityID, Type: "unknown", Score: m.Score}
		if n, ok := byName[key]; ok {
			row.Type = n.FrontMatter.Type
			row.Facts = noteFacts(n)
			row.Knowledge = noteKnowledgeTitles(n)
		}
		row.Relations = entityRelations(v.graph, m.EntityID)
		rows = append(rows, row)
	}
	return rows, nil
}

// mergeOpts layers per-call options over the Brain's configured defaults,
// then floors anything still unset with the package defaults so Search and
// Recall apply the same thresholds on a bare Brain.
func (b *Brain) mergeOpts(opts retrieve.Options) retrieve.Options {
	if opts.TopK <= 0 {
		opts.TopK = b.retrieval.TopK
	}
	if opts.GraphDepth <= 0 {
		opts.GraphDepth = b.retrieval.GraphDepth
	}
	if opts.MinScore <= 0 {
		opts.MinScore = b.retrieval.MinScore
	}
	if opts.TopK <= 0 {
		opts.TopK = retrieve.DefaultTopK
	}
	if opts.GraphDepth <= 0 {
		opts.GraphDepth = retrieve.DefaultGraphDepth
	}
	if opts.MinScore <= 0 {
		opts.MinScore = retrieve.DefaultMinScore
	}
	return opts
}

// Stats aggregates the vault and its derived views.
type Stats struct {
	Vault vault.Stats
	Graph graph.Stats
	Chunks int
}

// Stats returns vault, graph, and index statistics.
func (b *Brain) Stats(ctx context.Context) (*Stats, error) {
	v, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	vs, err := b.store.Stats()
	if err != nil {
		return nil, err
	}
	return &Stats{Vault: *vs, Graph: v.graph.Stats(), Chunks: v.index.Len()}, nil
}

// Delete removes an entity's note. Derived views rebuild on next read.
func (b *Brain) Delete(name string) error {
	if err := b.store.Delete(name); err != nil {
		if errors.Is(err, vault.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return err
	}
	return nil
}

// truncate shortens s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// noteFacts returns the bulleted fact lines of a note's Facts section,
// with wiki links stripped.
func noteFacts(n *note.ParsedNote) []string {
	var facts []string
	for _, sec := range n.Sections {
		if sec.Title != note.SectionFacts {
			continue
		}
		for _, line := range strings.Split(sec.Content, "\n") {
			line = strings.TrimSpace(line)
			if !strings.HasPrefix(line, "- ") {
				continue
			}
			facts = append(facts, note.StripWikiLinks(line[2:]))
		}
	}
	return facts
}

// noteKnowledgeTitles returns the bold entry titles of a note's Knowledge
// section.
func noteKnowledgeTitles(n *note.ParsedNote) []string {
	var titles []string
	for _, sec := range n.Sections {
		if sec.Title != note.SectionKnowledge {
			continue
		}
		for t := range note.BoldEntryTitles(sec.Content) {
			titles = append(titles, t)
		}
	}
	sort.Strings(titles)
	return titles
}

// entityRelations lists an entity's depth-1 neighbors, tags excluded.
func entityRelations(g *graph.Graph, entityID string) []Relation {
	var rels []Relation
	for _, nb := range g.Neighbors(entityID, 1) {
		if nb.Node.Type == graph.TypeTag {
			continue
		}
		rels = append(rels, Relation{
			Type:       nb.RelType,
			Target:     nb.Node.Name,
			TargetType: nb.Node.Type,
		})
	}
	return rels
}
