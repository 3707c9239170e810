// Package graph builds an in-memory knowledge graph from parsed entity
// notes. Nodes are entities keyed by note stem (plus auxiliary tag nodes);
// edges come from wiki links in Facts and Relations lines, labeled by the
// relation type written next to the link.
//
// The graph is a derived view: it is rebuilt from the vault and holds no
// state of its own. Nodes live in an arena addressed by integer index,
// with separate outgoing and incoming edge tables, so the structure stays
// acyclic even when the knowledge it models is not.
package graph

import (
	"regexp"
	"strings"

	"github.com/alibaizhanov/mengram/pkg/note"
)

// Node types beyond the entity types assigned by extraction.
const (
	TypeTag     = "tag"
	TypeConcept = "concept"
)

// Edge directions relative to the queried node.
const (
	DirOut = "out"
	DirIn  = "in"
)

// DefaultRelation labels edges from plain wiki links that carry no
// explicit relation type.
const DefaultRelation = "related_to"

// tagRelation labels the auxiliary edges from an entity to its tag nodes.
const tagRelation = "tagged"

// relLineRe captures the optional direction arrow and bold relation type
// at the start of a Relations bullet.
var relLineRe = regexp.MustCompile(`^-\s*(→|←)?\s*\*\*([\w-]+)\*\*`)

// Node is one graph node.
type Node struct {
	ID   string // note stem, or the tag text for tag nodes
	Name string // display name (note title)
	Type string

	// Placeholder marks link targets that have no note of their own.
	Placeholder bool
}

// Edge is a directed, typed connection between two nodes, by node ID.
type Edge struct {
	From string
	To   string
	Type string
}

type edge struct {
	from, to int
	relType  string
}

// Graph is an immutable snapshot built from one parse of the vault.
type Graph struct {
	nodes []Node
	edges []edge
	index map[string]int // lowercased node ID -> arena index
	out   map[int][]int  // node index -> edge indices
	in    map[int][]int
}

// Build constructs a graph from parsed notes. Wiki-link targets without a
// note of their own become placeholder concept nodes.
func Build(notes []*note.ParsedNote) *Graph {
	g := &Graph{
		index: make(map[string]int),
		out:   make(map[int][]int),
		in:    make(map[int][]int),
	}

	for _, n := range notes {
		typ := n.FrontMatter.Type
		if typ == "" {
			typ = TypeConcept
		}
		g.ensureNode(n.Name, n.Title, typ, false)
	}

	seen := make(map[edge]bool)
	pairs := make(map[[2]int]bool)
	for _, n := range notes {
		src := g.index[strings.ToLower(n.Name)]

		for _, tag := range n.Tags {
			g.addEdge(seen, pairs, src, g.ensureTag(tag), tagRelation)
		}

		// Relations before Facts: a typed edge should win over the
		// untyped related_to link a fact line produces for the same pair.
		g.addSectionEdges(seen, pairs, src, n, note.SectionRelations)
		g.addSectionEdges(seen, pairs, src, n, note.SectionFacts)
	}
	return g
}

func (g *Graph) addSectionEdges(seen map[edge]bool, pairs map[[2]int]bool, src int, n *note.ParsedNote, section string) {
	for _, sec := range n.Sections {
		if sec.Title != section {
			continue
		}
		for _, line := range strings.Split(sec.Content, "\n") {
			line = strings.TrimSpace(line)
			links := note.ExtractWikiLinks(line)
			if len(links) == 0 {
				continue
			}
			relType := DefaultRelation
			incoming := false
			if m := relLineRe.FindStringSubmatch(line); m != nil {
				relType = m[2]
				incoming = m[1] == "←"
			}
			for _, l := range links {
				dst := g.ensureNode(l.Target, l.Target, TypeConcept, true)
				if relType == DefaultRelation && (pairs[[2]int{src, dst}] || pairs[[2]int{dst, src}]) {
					continue
				}
				if incoming {
					g.addEdge(seen, pairs, dst, src, relType)
				} else {
					g.addEdge(seen, pairs, src, dst, relType)
				}
			}
		}
	}
}

func (g *Graph) ensureNode(id, name, typ string, placeholder bool) int {
	key := strings.ToLower(id)
	if i, ok := g.index[key]; ok {
		return i
	}
	g.nodes = append(g.nodes, Node{ID: id, Name: name, Type: typ, Placeholder: placeholder})
	i := len(g.nodes) - 1
	g.index[key] = i
	return i
}

func (g *Graph) ensureTag(tag string) int {
	// Tag nodes live in their own key space so a tag can share a name
	// with an entity.
	key := "#" + strings.ToLower(tag)
	if i, ok := g.index[key]; ok {
		return i
	}
	g.nodes = append(g.nodes, Node{ID: tag, Name: tag, Type: TypeTag})
	i := len(g.nodes) - 1
	g.index[key] = i
	return i
}

func (g *Graph) addEdge(seen map[edge]bool, pairs map[[2]int]bool, from, to int, relType string) {
	if from == to {
		return
	}
	e := edge{from: from, to: to, relType: relType}
	if seen[e] {
		return
	}
	seen[e] = true
	pairs[[2]int{from, to}] = true
	g.edges = append(g.edges, e)
	i := len(g.edges) - 1
	g.out[from] = append(g.out[from], i)
	g.in[to] = append(g.in[to], i)
}

// FindEntity resolves a node by case-insensitive exact match against note
// stems. Placeholder nodes are not resolvable: an entity exists only if
// its note does.
func (g *Graph) FindEntity(name string) (Node, bool) {
	if i, ok := g.index[strings.ToLower(name)]; ok && !g.nodes[i].Placeholder {
		return g.nodes[i], true
	}
	return Node{}, false
}

// Neighbor is one node reached during expansion, with the relation that
// first reached it and the direction relative to the expansion origin.
type Neighbor struct {
	Node      Node
	RelType   string
	Direction string
	Distance  int
}

// Neighbors expands breadth-first from the named entity up to depth
// levels. Each reachable node appears once, in visit order; callers that
// do not want tag nodes filter on Node.Type.
func (g *Graph) Neighbors(name string, depth int) []Neighbor {
	start, ok := g.index[strings.ToLower(name)]
	if !ok || depth < 1 {
		return nil
	}

	visited := map[int]bool{start: true}
	var result []Neighbor
	frontier := []int{start}

	for dist := 1; dist <= depth && len(frontier) > 0; dist++ {
		var next []int
		for _, cur := range frontier {
			for _, ei := range g.out[cur] {
				e := g.edges[ei]
				if visited[e.to] {
					continue
				}
				visited[e.to] = true
				result = append(result, Neighbor{
					Node: g.nodes[e.to], RelType: e.relType, Direction: DirOut, Distance: dist,
				})
				next = append(next, e.to)
			}
			for _, ei := range g.in[cur] {
				e := g.edges[ei]
				if visited[e.from] {
					continue
				}
				visited[e.from] = true
				result = append(result, Neighbor{
					Node: g.nodes[e.from], RelType: e.relType, Direction: DirIn, Distance: dist,
				})
				next = append(next, e.from)
			}
		}
		frontier = next
	}
	return result
}

// Subgraph holds the nodes and edges induced by an expansion, for export
// and visualization.
type Subgraph struct {
	Nodes []Node
	Edges []Edge
}

// SubgraphOf returns the center node, every node within depth hops, and
// all edges between the included nodes.
func (g *Graph) SubgraphOf(name string, depth int) (*Subgraph, bool) {
	center, ok := g.FindEntity(name)
	if !ok {
		return nil, false
	}

	included := map[string]bool{strings.ToLower(center.ID): true}
	sub := &Subgraph{Nodes: []Node{center}}
	for _, nb := range g.Neighbors(name, depth) {
		included[strings.ToLower(nb.Node.ID)] = true
		sub.Nodes = append(sub.Nodes, nb.Node)
	}
	for _, e := range g.edges {
		from, to := g.nodes[e.from], g.nodes[e.to]
		if included[strings.ToLower(from.ID)] && included[strings.ToLower(to.ID)] {
			sub.Edges = append(sub.Edges, Edge{From: from.ID, To: to.ID, Type: e.relType})
		}
	}
	return sub, true
}

// Stats summarizes the graph.
type Stats struct {
	Entities  int
	Relations int
	Tags      int
}

// Stats counts entity nodes, relation edges (tag edges excluded), and
// tag nodes.
func (g *Graph) Stats() Stats {
	var st Stats
	for _, n := range g.nodes {
		if n.Type == TypeTag {
			st.Tags++
		} else {
			st.Entities++
		}
	}
	for _, e := range g.edges {
		if e.relType != tagRelation {
			st.Relations++
		}
	}
	return st
}
