package brain

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/alibaizhanov/mengram/pkg/graph"
	"github.com/alibaizhanov/mengram/pkg/note"
)

// profileEntity is the conventional note name for the tenant themself.
const profileEntity = "User"

// Item is one entity with its stored facts and direct relations.
type Item struct {
	ID         string // note stem
	Name       string
	Type       string
	Facts      []string
	Relations  []Relation
	SourceFile string // empty for placeholder entities without a note
}

// Get returns a single entity by name, resolved case-insensitively
// against note stems.
func (b *Brain) Get(ctx context.Context, name string) (*Item, error) {
	v, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	node, ok := v.graph.FindEntity(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return b.item(v, node), nil
}

// GetAll returns every entity in the vault, tag nodes excluded, sorted
// by name.
func (b *Brain) GetAll(ctx context.Context) ([]*Item, error) {
	v, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var items []*Item
	for _, n := range v.notes {
		node, ok := v.graph.FindEntity(n.Name)
		if !ok {
			continue
		}
		items = append(items, b.item(v, node))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// Profile returns the tenant's own entity, the note named "User", when
// one has been accumulated.
func (b *Brain) Profile(ctx context.Context) (*Item, error) {
	return b.Get(ctx, profileEntity)
}

func (b *Brain) item(v *views, node graph.Node) *Item {
	item := &Item{ID: node.ID, Name: node.Name, Type: node.Type}
	for _, n := range v.notes {
		if strings.EqualFold(n.Name, node.ID) {
			item.Facts = noteFacts(n)
			item.SourceFile = n.Path
			break
		}
	}
	item.Relations = entityRelations(v.graph, node.ID)
	return item
}

// Subgraph exports the neighborhood of an entity for visualization.
func (b *Brain) Subgraph(ctx context.Context, name string, depth int) (*graph.Subgraph, error) {
	v, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sub, ok := v.graph.SubgraphOf(name, depth)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return sub, nil
}

// KnowledgeEntry is one knowledge item found in a note, with the date it
// was recorded.
type KnowledgeEntry struct {
	Entity string
	Type   string
	Title  string
	Date   string
}

var knowledgeHeaderRe = regexp.MustCompile(`\*\*\[(\w+)\]\s+(.+?)\*\*\s+\((\d{4}-\d{2}-\d{2})\)`)

// RecentKnowledge returns the newest knowledge entries across the vault,
// most recent first, capped at limit.
func (b *Brain) RecentKnowledge(ctx context.Context, limit int) ([]KnowledgeEntry, error) {
	v, err := b.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var entries []KnowledgeEntry
	for _, n := range v.notes {
		for _, sec := range n.Sections {
			if sec.Title != note.SectionKnowledge {
				continue
			}
			for _, m := range knowledgeHeaderRe.FindAllStringSubmatch(sec.Content, -1) {
				entries = append(entries, KnowledgeEntry{
					Entity: n.Name,
					Type:   m[1],
					Title:  m[2],
					Date:   m[3],
				})
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Date > entries[j].Date })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
