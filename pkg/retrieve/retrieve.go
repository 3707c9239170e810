// Package retrieve combines vector search with graph traversal: the
// vector index finds semantically similar note chunks, the knowledge
// graph expands from the matched entities through their relations, and
// the two are assembled into a context block an agent prompt can consume.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alibaizhanov/mengram/pkg/graph"
	"github.com/alibaizhanov/mengram/pkg/vecindex"
)

// ErrNotFound is returned when an entity-anchored lookup misses.
var ErrNotFound = errors.New("retrieve: entity not found")

// Defaults for query options.
const (
	DefaultTopK       = vecindex.DefaultTopK
	DefaultMinScore   = vecindex.DefaultMinScore
	DefaultGraphDepth = 1

	// DefaultEntityDepth is the graph expansion depth for
	// entity-anchored retrieval.
	DefaultEntityDepth = 2
)

// Options tune a hybrid query. Zero values take the defaults.
type Options struct {
	TopK       int
	GraphDepth int
	MinScore   float32
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.GraphDepth <= 0 {
		o.GraphDepth = DefaultGraphDepth
	}
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}
	return o
}

// GraphEntry is one entity reached through graph expansion.
type GraphEntry struct {
	Entity    graph.Node
	RelType   string
	Direction string
}

// Result is a full hybrid search result.
type Result struct {
	Query            string
	DirectMatches    []vecindex.Match
	GraphContext     []GraphEntry
	AssembledContext string
}

// Retriever runs hybrid queries over one tenant's derived views.
type Retriever struct {
	graph *graph.Graph
	vec   *vecindex.Index
}

// New creates a Retriever over a graph and vector index built from the
// same vault snapshot.
func New(g *graph.Graph, vec *vecindex.Index) *Retriever {
	return &Retriever{graph: g, vec: vec}
}

// Query runs the hybrid search: vector matches first, then graph
// expansion from each matched entity. Entities already present as direct
// matches never reappear in the graph context, and no entity appears
// twice.
func (r *Retriever) Query(ctx context.Context, text string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	res := &Result{Query: text}

	matches, err := r.vec.Search(ctx, text, opts.TopK, opts.MinScore)
	if err != nil {
		return nil, err
	}
	res.DirectMatches = matches

	seen := make(map[string]bool)
	for _, m := range matches {
		seen[strings.ToLower(m.EntityID)] = true
	}
	for _, m := range matches {
		r.expand(res, seen, m.EntityID, opts.GraphDepth)
	}

	res.AssembledContext = assemble(res)
	return res, nil
}

// EntityContext anchors retrieval on a single entity: all of its chunks
// become direct matches with score 1.0, and its neighborhood is expanded
// depth levels deep. depth <= 0 takes DefaultEntityDepth.
func (r *Retriever) EntityContext(name string, depth int) (*Result, error) {
	node, ok := r.graph.FindEntity(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if depth <= 0 {
		depth = DefaultEntityDepth
	}

	res := &Result{Query: "context:" + name}
	res.DirectMatches = r.vec.SearchByEntity(node.ID)

	seen := map[string]bool{strings.ToLower(node.ID): true}
	r.expand(res, seen, node.ID, depth)

	res.AssembledContext = assemble(res)
	return res, nil
}

// expand appends unseen, non-tag neighbors of the entity to the graph
// context.
func (r *Retriever) expand(res *Result, seen map[string]bool, entityID string, depth int) {
	for _, nb := range r.graph.Neighbors(entityID, depth) {
		if nb.Node.Type == graph.TypeTag {
			continue
		}
		key := strings.ToLower(nb.Node.ID)
		if seen[key] {
			continue
		}
		seen[key] = true
		res.GraphContext = append(res.GraphContext, GraphEntry{
			Entity:    nb.Node,
			RelType:   nb.RelType,
			Direction: nb.Direction,
		})
	}
}

// assemble renders the result as the context block fed to an agent:
// note fragments first, then related entities grouped by relation type.
func assemble(res *Result) string {
	var parts []string

	if len(res.DirectMatches) > 0 {
		parts = append(parts, "## Relevant fragments from notes\n")
		seenContent := make(map[string]bool)
		for _, m := range res.DirectMatches {
			if seenContent[m.Content] {
				continue
			}
			seenContent[m.Content] = true
			parts = append(parts, fmt.Sprintf("**%s** (%s) [score: %.2f]:\n%s\n",
				m.EntityName, m.Section, m.Score, m.Content))
		}
	}

	if len(res.GraphContext) > 0 {
		parts = append(parts, "\n## Related entities (from knowledge graph)\n")

		var order []string
		byType := make(map[string][]string)
		for _, g := range res.GraphContext {
			if _, ok := byType[g.RelType]; !ok {
				order = append(order, g.RelType)
			}
			byType[g.RelType] = append(byType[g.RelType], g.Entity.Name)
		}
		for _, relType := range order {
			parts = append(parts, fmt.Sprintf("- **%s**: %s", relType, strings.Join(byType[relType], ", ")))
		}
	}

	return strings.Join(parts, "\n")
}
