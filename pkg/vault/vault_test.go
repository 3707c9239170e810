package vault

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alibaizhanov/mengram/pkg/extract"
)

var testClock = func() time.Time {
	return time.Date(2024, 3, 10, 14, 30, 0, 0, time.UTC)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), WithClock(testClock))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return s
}

func sampleExtraction() *extract.Result {
	return &extract.Result{
		Entities: []extract.Entity{
			{Name: "Ali", Type: extract.TypePerson, Facts: []extract.Fact{
				{Content: "lives in Almaty"},
			}},
			{Name: "Mengram", Type: extract.TypeProject, Facts: []extract.Fact{
				{Content: "deployed by Ali on Railway", EventDate: "2023-06-14"},
			}},
		},
		Relations: []extract.Relation{
			{From: "Ali", To: "Mengram", Type: "created_by", Description: "deployed and manages"},
		},
		Knowledge: []extract.Knowledge{
			{Entity: "Mengram", Type: "command", Title: "Railway deploy",
				Content: "Deploy with the Railway CLI", Artifact: "railway up"},
		},
	}
}

func readNote(t *testing.T, s *Store, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(s.Dir(), Sanitize(name)+".md"))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestApplyCreatesNotes(t *testing.T) {
	s := newTestStore(t)
	ar, err := s.Apply(sampleExtraction())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(ar.Created) != 2 {
		t.Fatalf("created = %v, want Ali and Mengram", ar.Created)
	}

	content := readNote(t, s, "Mengram")
	for _, want := range []string{
		"type: project",
		"created: 2024-03-10 14:30",
		"tags: [project]",
		"# Mengram",
		"## Facts",
		"deployed by [[Ali]] on Railway (2023-06-14)",
		"## Relations",
		"- ← **created_by** [[Ali]]: deployed and manages",
		"## Knowledge",
		"**[command] Railway deploy** (2024-03-10)",
		"```bash\nrailway up\n```",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("Mengram note missing %q:\n%s", want, content)
		}
	}

	ali := readNote(t, s, "Ali")
	if !strings.Contains(ali, "- → **created_by** [[Mengram]]: deployed and manages") {
		t.Errorf("Ali note missing outgoing relation:\n%s", ali)
	}
	if s.Generation() != 1 {
		t.Errorf("generation = %d, want 1", s.Generation())
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Apply(sampleExtraction()); err != nil {
		t.Fatalf("first Apply() error = %v", err)
	}
	before := readNote(t, s, "Mengram")

	ar, err := s.Apply(sampleExtraction())
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}
	if len(ar.Created) != 0 || len(ar.Updated) != 0 {
		t.Errorf("second apply touched notes: %+v", ar)
	}
	if after := readNote(t, s, "Mengram"); after != before {
		t.Errorf("note changed on identical re-apply:\n%s", after)
	}
	if s.Generation() != 1 {
		t.Errorf("generation = %d, want unchanged 1", s.Generation())
	}
}

func TestApplyFactDedup(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Apply(sampleExtraction()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	res := &extract.Result{Entities: []extract.Entity{
		{Name: "Ali", Type: extract.TypePerson, Facts: []extract.Fact{
			{Content: "Lives in Almaty"},            // near-duplicate, different casing
			{Content: "works as backend developer"}, // genuinely new
		}},
	}}
	ar, err := s.Apply(res)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if len(ar.Updated) != 1 || ar.Updated[0] != "Ali" {
		t.Fatalf("updated = %v, want [Ali]", ar.Updated)
	}

	content := readNote(t, s, "Ali")
	if strings.Count(content, "ives in Almaty") != 1 {
		t.Errorf("duplicate fact was appended:\n%s", content)
	}
	if !strings.Contains(content, "- works as backend developer") {
		t.Errorf("new fact missing:\n%s", content)
	}
}

func TestApplyRelationDedupByLink(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Apply(sampleExtraction()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	res := &extract.Result{
		Entities: []extract.Entity{{Name: "Ali", Type: extract.TypePerson}},
		Relations: []extract.Relation{
			{From: "Ali", To: "Mengram", Type: "works_on"}, // already linked
		},
	}
	if _, err := s.Apply(res); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	content := readNote(t, s, "Ali")
	if strings.Contains(content, "works_on") {
		t.Errorf("relation to already-linked entity was re-added:\n%s", content)
	}
}

func TestApplyKnowledgeDedupByTitle(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Apply(sampleExtraction()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	res := &extract.Result{Knowledge: []extract.Knowledge{
		{Entity: "Mengram", Type: "solution", Title: "Railway deploy", Content: "different wording"},
		{Entity: "Mengram", Type: "insight", Title: "Logs beat dashboards", Content: "check deploy logs first"},
	}}
	if _, err := s.Apply(res); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	content := readNote(t, s, "Mengram")
	if strings.Count(content, "Railway deploy**") != 1 {
		t.Errorf("duplicate knowledge title appended:\n%s", content)
	}
	if !strings.Contains(content, "**[insight] Logs beat dashboards**") {
		t.Errorf("new knowledge entry missing:\n%s", content)
	}
}

func TestApplyStubsForRelationEndpoints(t *testing.T) {
	s := newTestStore(t)
	res := &extract.Result{
		Entities: []extract.Entity{{Name: "Ali", Type: extract.TypePerson}},
		Relations: []extract.Relation{
			{From: "Ali", To: "Supabase", Type: "uses"},
		},
	}
	if _, err := s.Apply(res); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	content := readNote(t, s, "Supabase")
	if !strings.Contains(content, "type: concept") {
		t.Errorf("stub note should be a concept:\n%s", content)
	}
	if !strings.Contains(content, "# Supabase") {
		t.Errorf("stub note missing title:\n%s", content)
	}
}

func TestApplyKnowledgeForUnlistedEntity(t *testing.T) {
	s := newTestStore(t)
	res := &extract.Result{Knowledge: []extract.Knowledge{
		{Entity: "PostgreSQL", Type: "command", Title: "Check connections",
			Content: "Count sessions by state", Artifact: "SELECT count(*), state FROM pg_stat_activity GROUP BY state;"},
	}}
	if _, err := s.Apply(res); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	content := readNote(t, s, "PostgreSQL")
	if !strings.Contains(content, "type: concept") {
		t.Errorf("knowledge-only entity should get a concept stub:\n%s", content)
	}
	if !strings.Contains(content, "```sql") {
		t.Errorf("SQL artifact not fenced as sql:\n%s", content)
	}
}

func TestApplyWikiLinkification(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Apply(&extract.Result{Entities: []extract.Entity{
		{Name: "Alice", Type: extract.TypePerson},
	}}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	res := &extract.Result{Entities: []extract.Entity{
		{Name: "Bob", Type: extract.TypePerson, Facts: []extract.Fact{
			{Content: "met alice at a meetup, then told alice about the project"},
		}},
	}}
	if _, err := s.Apply(res); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	content := readNote(t, s, "Bob")
	if !strings.Contains(content, "met [[Alice]] at a meetup") {
		t.Errorf("first mention not linked with canonical casing:\n%s", content)
	}
	if strings.Count(content, "[[Alice]]") != 1 {
		t.Errorf("only the first mention should be linked:\n%s", content)
	}
}

func TestApplyEpisodes(t *testing.T) {
	s := newTestStore(t)
	res := &extract.Result{Episodes: []extract.Episode{
		{
			Summary:          "Debugged connection pool exhaustion",
			Context:          "200+ WebSocket connections caused OOM.",
			Outcome:          "Added a Redis cache",
			Participants:     []string{"PostgreSQL"},
			EmotionalValence: "positive",
			Importance:       0.7,
			HappenedAt:       "2024-01-15",
		},
	}}
	if _, err := s.Apply(res); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	content := readNote(t, s, "PostgreSQL")
	for _, want := range []string{
		"## Episodes",
		"**[episode] Debugged connection pool exhaustion** (2024-01-15)",
		"Outcome: Added a Redis cache",
		"Valence: positive (importance 0.7)",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("episode note missing %q:\n%s", want, content)
		}
	}

	// Re-applying the same episode must not duplicate it.
	if _, err := s.Apply(res); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	content = readNote(t, s, "PostgreSQL")
	if strings.Count(content, "**[episode]") != 1 {
		t.Errorf("episode duplicated on re-apply:\n%s", content)
	}
}

func TestApplyProcedures(t *testing.T) {
	s := newTestStore(t)
	res := &extract.Result{Procedures: []extract.Procedure{
		{
			Name:    "Debug connection issues",
			Trigger: "When connections are exhausted",
			Steps: []extract.Step{
				{Step: 1, Action: "Check active connections", Detail: "query pg_stat_activity"},
				{Step: 2, Action: "Review pool settings"},
			},
			Entities: []string{"PostgreSQL"},
		},
	}}
	if _, err := s.Apply(res); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	content := readNote(t, s, "PostgreSQL")
	for _, want := range []string{
		"## Procedures",
		"**[procedure] Debug connection issues** (2024-03-10)",
		"Trigger: When connections are exhausted",
		"1. Check active connections: query pg_stat_activity",
		"2. Review pool settings",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("procedure note missing %q:\n%s", want, content)
		}
	}
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete("Ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(missing) error = %v, want ErrNotFound", err)
	}

	if _, err := s.Apply(sampleExtraction()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	gen := s.Generation()
	if err := s.Delete("Ali"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Note("Ali"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Note(deleted) error = %v, want ErrNotFound", err)
	}
	if s.Generation() != gen+1 {
		t.Errorf("generation = %d, want %d", s.Generation(), gen+1)
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Apply(sampleExtraction()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if st.TotalNotes != 2 {
		t.Errorf("TotalNotes = %d, want 2", st.TotalNotes)
	}
	if st.ByType["person"] != 1 || st.ByType["project"] != 1 {
		t.Errorf("ByType = %v", st.ByType)
	}
	if st.KnowledgeEntries != 1 {
		t.Errorf("KnowledgeEntries = %d, want 1", st.KnowledgeEntries)
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Apply(sampleExtraction()); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	stems, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(stems) != 2 || stems[0] != "Ali" || stems[1] != "Mengram" {
		t.Errorf("List() = %v, want [Ali Mengram]", stems)
	}
}

func TestSanitize(t *testing.T) {
	if got := Sanitize(`C++/CLI: the "bad" parts?`); strings.ContainsAny(got, `<>:"/\|?*`) {
		t.Errorf("Sanitize left unsafe characters: %q", got)
	}
	if got := Sanitize("Ali Baizhanov"); got != "Ali Baizhanov" {
		t.Errorf("Sanitize(%q) = %q, want unchanged", "Ali Baizhanov", got)
	}
}

func TestFactExists(t *testing.T) {
	existing := []string{"works as a backend developer at uzum bank"}
	cases := []struct {
		fact string
		want bool
	}{
		{"works as a backend developer at Uzum Bank", true},
		{"Works as a backend developer", true},
		{"enjoys rock climbing on weekends", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := FactExists(tc.fact, existing); got != tc.want {
			t.Errorf("FactExists(%q) = %v, want %v", tc.fact, got, tc.want)
		}
	}
}
