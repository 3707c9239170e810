package graph

import (
	"testing"

	"github.com/alibaizhanov/mengram/pkg/note"
)

func testNotes() []*note.ParsedNote {
	ali := `---
type: person
created: 2024-03-10 14:30
updated: 2024-03-10 14:30
tags: [person]
---

# Ali

## Facts

- works as a backend developer at [[Uzum Bank]]
- enjoys rock climbing

## Relations

- → **works_at** [[Uzum Bank]]: backend developer
- → **member_of** [[Project Alpha]]
`
	bank := `---
type: company
created: 2024-03-10 14:30
updated: 2024-03-10 14:30
tags: [company]
---

# Uzum Bank

## Facts

- bank in Uzbekistan

## Relations

- ← **works_at** [[Ali]]
`
	alpha := `---
type: project
created: 2024-03-10 14:30
updated: 2024-03-10 14:30
tags: [project]
---

# Project Alpha

## Relations

- → **uses** [[PostgreSQL]]
`
	return []*note.ParsedNote{
		note.ParseContent("Ali", ali),
		note.ParseContent("Project Alpha", alpha),
		note.ParseContent("Uzum Bank", bank),
	}
}

func TestFindEntityCaseInsensitive(t *testing.T) {
	g := Build(testNotes())
	n, ok := g.FindEntity("uzum bank")
	if !ok {
		t.Fatal("FindEntity(uzum bank) not found")
	}
	if n.ID != "Uzum Bank" || n.Type != "company" {
		t.Errorf("node = %+v", n)
	}
	if _, ok := g.FindEntity("Nobody"); ok {
		t.Error("FindEntity(Nobody) should not resolve")
	}
}

func TestPlaceholderForUnresolvedTarget(t *testing.T) {
	g := Build(testNotes())

	// The node exists for traversal but does not resolve as an entity.
	if _, ok := g.FindEntity("PostgreSQL"); ok {
		t.Error("placeholder should not resolve via FindEntity")
	}
	for _, nb := range g.Neighbors("Project Alpha", 1) {
		if nb.Node.ID == "PostgreSQL" {
			if nb.Node.Type != TypeConcept || !nb.Node.Placeholder {
				t.Errorf("placeholder node = %+v, want concept placeholder", nb.Node)
			}
			return
		}
	}
	t.Fatal("PostgreSQL missing from Project Alpha's neighbors")
}

func TestNeighborsDepthOne(t *testing.T) {
	g := Build(testNotes())
	byID := map[string]Neighbor{}
	for _, nb := range g.Neighbors("Ali", 1) {
		byID[nb.Node.ID] = nb
	}

	bank, ok := byID["Uzum Bank"]
	if !ok {
		t.Fatal("Uzum Bank missing from Ali's neighbors")
	}
	if bank.RelType != "works_at" || bank.Direction != DirOut {
		t.Errorf("Uzum Bank neighbor = %+v, want works_at/out", bank)
	}
	alpha, ok := byID["Project Alpha"]
	if !ok || alpha.RelType != "member_of" {
		t.Errorf("Project Alpha neighbor = %+v, want member_of", alpha)
	}
	if _, ok := byID["PostgreSQL"]; ok {
		t.Error("PostgreSQL is two hops away, must not appear at depth 1")
	}
}

func TestNeighborsIncomingDirection(t *testing.T) {
	g := Build(testNotes())
	for _, nb := range g.Neighbors("Uzum Bank", 1) {
		if nb.Node.ID == "Ali" {
			if nb.RelType != "works_at" || nb.Direction != DirIn {
				t.Errorf("Ali from Uzum Bank = %+v, want works_at/in", nb)
			}
			return
		}
	}
	t.Fatal("Ali missing from Uzum Bank's neighbors")
}

func TestNeighborsDepthTwoDedup(t *testing.T) {
	g := Build(testNotes())
	nbs := g.Neighbors("Uzum Bank", 2)

	seen := map[string]int{}
	for _, nb := range nbs {
		seen[nb.Node.ID]++
		if seen[nb.Node.ID] > 1 {
			t.Errorf("node %s visited twice", nb.Node.ID)
		}
	}
	if _, ok := seen["Project Alpha"]; !ok {
		t.Error("Project Alpha should be reachable at depth 2 via Ali")
	}
	for _, nb := range nbs {
		if nb.Node.ID == "Project Alpha" && nb.Distance != 2 {
			t.Errorf("Project Alpha distance = %d, want 2", nb.Distance)
		}
	}
}

func TestNeighborsTagNodesMarked(t *testing.T) {
	g := Build(testNotes())
	foundTag := false
	for _, nb := range g.Neighbors("Ali", 1) {
		if nb.Node.Type == TypeTag {
			foundTag = true
			if nb.Node.Name != "person" {
				t.Errorf("tag node = %+v, want person", nb.Node)
			}
		}
	}
	if !foundTag {
		t.Error("tag node missing; callers filter them, the graph keeps them")
	}
}

func TestSubgraphOf(t *testing.T) {
	g := Build(testNotes())
	sub, ok := g.SubgraphOf("Ali", 1)
	if !ok {
		t.Fatal("SubgraphOf(Ali) not found")
	}
	if sub.Nodes[0].ID != "Ali" {
		t.Errorf("center = %+v, want Ali first", sub.Nodes[0])
	}
	hasWorksAt := false
	for _, e := range sub.Edges {
		if e.From == "Ali" && e.To == "Uzum Bank" && e.Type == "works_at" {
			hasWorksAt = true
		}
	}
	if !hasWorksAt {
		t.Errorf("edges = %+v, want Ali -works_at-> Uzum Bank", sub.Edges)
	}

	if _, ok := g.SubgraphOf("Nobody", 1); ok {
		t.Error("SubgraphOf(Nobody) should not resolve")
	}
}

func TestStats(t *testing.T) {
	g := Build(testNotes())
	st := g.Stats()
	// Ali, Uzum Bank, Project Alpha, plus the PostgreSQL placeholder.
	if st.Entities != 4 {
		t.Errorf("Entities = %d, want 4", st.Entities)
	}
	// works_at, member_of, uses; the fact link to Uzum Bank is subsumed
	// by the typed works_at edge.
	if st.Relations != 3 {
		t.Errorf("Relations = %d, want 3", st.Relations)
	}
	if st.Tags != 3 {
		t.Errorf("Tags = %d, want 3", st.Tags)
	}
}
