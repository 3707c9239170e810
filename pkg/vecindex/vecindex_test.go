package vecindex

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/alibaizhanov/mengram/pkg/embed"
	"github.com/alibaizhanov/mengram/pkg/note"
)

// mockEmbedder maps keyword hits onto fixed axes, with a small shared
// component so unrelated texts still produce nonzero vectors.
type mockEmbedder struct{}

var axes = map[string]int{
	"bank":     0,
	"climb":    1,
	"postgres": 2,
	"deploy":   3,
}

func (mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 5)
	lower := strings.ToLower(text)
	for kw, i := range axes {
		if strings.Contains(lower, kw) {
			v[i] = 1
		}
	}
	v[4] = 0.1
	embed.Normalize(v)
	return v, nil
}

func (m mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (mockEmbedder) Dimension() int { return 5 }

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	notes := []*note.ParsedNote{
		note.ParseContent("Uzum Bank", `---
type: company
created: 2024-03-10 14:30
updated: 2024-03-10 14:30
tags: [company]
---

# Uzum Bank

## Facts

- bank in Uzbekistan
`),
		note.ParseContent("Ali", `---
type: person
created: 2024-03-10 14:30
updated: 2024-03-10 14:30
tags: [person]
---

# Ali

## Facts

- enjoys rock climbing on weekends

## Knowledge

**[command] Deploy to Railway** (2024-03-10)
Deploy the service with railway up
`),
	}
	idx, err := Build(context.Background(), mockEmbedder{}, notes)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}

func TestBuildEmbedsAllChunks(t *testing.T) {
	idx := buildTestIndex(t)
	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 chunks", idx.Len())
	}
	for _, e := range idx.entries {
		if e.ChunkID == "" {
			t.Error("entry missing chunk ID")
		}
		var norm float64
		for _, x := range e.Vector {
			norm += float64(x) * float64(x)
		}
		if math.Abs(norm-1) > 1e-5 {
			t.Errorf("vector for %q not unit-norm: %v", e.Content, norm)
		}
	}
}

func TestSearchRanksByRelevance(t *testing.T) {
	idx := buildTestIndex(t)
	matches, err := idx.Search(context.Background(), "which bank does he use?", DefaultTopK, DefaultMinScore)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) == 0 {
		t.Fatal("Search() returned nothing")
	}
	if matches[0].EntityID != "Uzum Bank" {
		t.Errorf("top match = %s, want Uzum Bank", matches[0].EntityID)
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Error("matches not sorted by descending score")
		}
	}
	for _, m := range matches {
		if m.Score < DefaultMinScore {
			t.Errorf("match %q below min score: %v", m.Content, m.Score)
		}
	}
}

func TestSearchMinScoreFiltersUnrelated(t *testing.T) {
	idx := buildTestIndex(t)
	matches, err := idx.Search(context.Background(), "rock climbing", DefaultTopK, DefaultMinScore)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	for _, m := range matches {
		if m.EntityID == "Uzum Bank" {
			t.Errorf("unrelated entity surfaced with score %v", m.Score)
		}
	}
}

func TestSearchTopKLimit(t *testing.T) {
	idx := buildTestIndex(t)
	matches, err := idx.Search(context.Background(), "bank climbing deploy", 1, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("len(matches) = %d, want 1", len(matches))
	}
}

func TestSearchByEntity(t *testing.T) {
	idx := buildTestIndex(t)
	matches := idx.SearchByEntity("ali")
	if len(matches) != 2 {
		t.Fatalf("SearchByEntity(ali) = %d entries, want 2", len(matches))
	}
	for _, m := range matches {
		if m.Score != 1.0 {
			t.Errorf("score = %v, want 1.0", m.Score)
		}
		if m.EntityID != "Ali" {
			t.Errorf("entity = %s, want Ali", m.EntityID)
		}
	}
	if got := idx.SearchByEntity("nobody"); len(got) != 0 {
		t.Errorf("SearchByEntity(nobody) = %v, want empty", got)
	}
}
