// Package vecindex holds an in-memory vector index over note chunks.
// Construction embeds every chunk through the embedding adapter; search
// scores the query against all entries with a dot product, which equals
// cosine similarity because the adapter returns unit-norm vectors.
//
// Like the graph, the index is a derived view rebuilt from the vault.
package vecindex

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alibaizhanov/mengram/pkg/embed"
	"github.com/alibaizhanov/mengram/pkg/note"
)

// Search defaults.
const (
	DefaultTopK     = 5
	DefaultMinScore = 0.15
)

// embedBatchSize is how many chunks go into one upstream embedding call.
const embedBatchSize = 64

// maxConcurrentBatches bounds parallel embedding requests during a build.
const maxConcurrentBatches = 4

// Entry is one embedded chunk.
type Entry struct {
	ChunkID    string
	EntityID   string // note stem
	EntityName string // note title
	Section    string
	Content    string
	Vector     []float32
}

// Match is an entry with its similarity to a query.
type Match struct {
	Entry
	Score float32
}

// Index is an immutable snapshot built from one parse of the vault.
type Index struct {
	embedder embed.Embedder
	entries  []Entry
}

// Build embeds all chunks of the given notes. Chunks are batched and
// batches embedded in parallel; a failed batch fails the whole build.
func Build(ctx context.Context, embedder embed.Embedder, notes []*note.ParsedNote) (*Index, error) {
	idx := &Index{embedder: embedder}
	for _, n := range notes {
		for _, c := range n.Chunks {
			idx.entries = append(idx.entries, Entry{
				ChunkID:    uuid.NewString(),
				EntityID:   n.Name,
				EntityName: n.Title,
				Section:    c.Section,
				Content:    c.Content,
			})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)
	for start := 0; start < len(idx.entries); start += embedBatchSize {
		batch := idx.entries[start:min(start+embedBatchSize, len(idx.entries))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, e := range batch {
				texts[i] = e.Content
			}
			vecs, err := embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return err
			}
			for i := range batch {
				batch[i].Vector = vecs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int { return len(idx.entries) }

// Search embeds the query and returns the top-K entries with similarity
// at or above minScore, ordered by descending score.
func (idx *Index) Search(ctx context.Context, query string, topK int, minScore float32) ([]Match, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	qv, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(idx.entries))
	for _, e := range idx.entries {
		score := dot(qv, e.Vector)
		if score < minScore {
			continue
		}
		matches = append(matches, Match{Entry: e, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// SearchByEntity returns every entry of the named entity with score 1.0.
// The match is by entity ID, case-insensitive.
func (idx *Index) SearchByEntity(entityID string) []Match {
	var matches []Match
	for _, e := range idx.entries {
		if strings.EqualFold(e.EntityID, entityID) {
			matches = append(matches, Match{Entry: e, Score: 1.0})
		}
	}
	return matches
}

func dot(a, b []float32) float32 {
	n := min(len(a), len(b))
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
