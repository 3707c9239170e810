package note

import (
	"strings"
	"testing"
)

const sampleNote = `---
type: person
created: 2024-01-15 10:30
updated: 2024-01-16 09:00
tags: [person, backend]
---

# Ali

## Facts

- works as backend developer at [[Uzum Bank]]
- main stack: Java, Spring Boot #java

## Relations

- → **works_at** [[Uzum Bank]]: backend developer
- ← **created_by** [[Project Alpha|Alpha]]

## Knowledge

**[solution] Connection pool fix** (2024-01-15)
Reduced HikariCP pool size after OOM with 200+ websocket connections.
`

func TestParseFrontMatter(t *testing.T) {
	fm, body := ParseFrontMatter(sampleNote)
	if fm.Type != "person" {
		t.Errorf("Type = %q, want person", fm.Type)
	}
	if fm.Created != "2024-01-15 10:30" || fm.Updated != "2024-01-16 09:00" {
		t.Errorf("timestamps = %q / %q", fm.Created, fm.Updated)
	}
	if len(fm.Tags) != 2 || fm.Tags[0] != "person" {
		t.Errorf("Tags = %v", fm.Tags)
	}
	if !strings.HasPrefix(body, "\n# Ali") {
		t.Errorf("body does not start after front matter: %q", body[:20])
	}
}

func TestParseFrontMatterMissing(t *testing.T) {
	fm, body := ParseFrontMatter("# Just a heading\n")
	if fm.Type != "" {
		t.Errorf("expected zero front matter, got %+v", fm)
	}
	if body != "# Just a heading\n" {
		t.Errorf("body = %q", body)
	}
}

func TestExtractWikiLinks(t *testing.T) {
	_, body := ParseFrontMatter(sampleNote)
	links := ExtractWikiLinks(body)
	if len(links) != 3 {
		t.Fatalf("got %d links, want 3", len(links))
	}
	if links[0].Target != "Uzum Bank" || links[0].Alias != "" {
		t.Errorf("links[0] = %+v", links[0])
	}
	if links[2].Target != "Project Alpha" || links[2].Alias != "Alpha" {
		t.Errorf("links[2] = %+v", links[2])
	}
	if !strings.Contains(links[0].Context, "backend developer") {
		t.Errorf("context missing surrounding text: %q", links[0].Context)
	}
	if strings.Contains(links[0].Context, "\n") {
		t.Errorf("context contains newline: %q", links[0].Context)
	}
}

func TestExtractTags(t *testing.T) {
	fm, body := ParseFrontMatter(sampleNote)
	tags := ExtractTags(body, fm)
	want := []string{"backend", "java", "person"}
	if len(tags) != len(want) {
		t.Fatalf("tags = %v, want %v", tags, want)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, tags[i], want[i])
		}
	}
}

func TestExtractTagsIgnoresHeadings(t *testing.T) {
	tags := ExtractTags("## Facts\n\nplain text\n", FrontMatter{})
	if len(tags) != 0 {
		t.Errorf("headings should not produce tags, got %v", tags)
	}
}

func TestExtractSections(t *testing.T) {
	_, body := ParseFrontMatter(sampleNote)
	sections := ExtractSections(body)
	var titles []string
	for _, s := range sections {
		titles = append(titles, s.Title)
	}
	want := []string{"Ali", "Facts", "Relations", "Knowledge"}
	if len(titles) != len(want) {
		t.Fatalf("sections = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("section[%d] = %q, want %q", i, titles[i], want[i])
		}
	}
	if sections[1].Level != 2 {
		t.Errorf("Facts level = %d, want 2", sections[1].Level)
	}
	if !strings.Contains(sections[1].Content, "backend developer") {
		t.Errorf("Facts content = %q", sections[1].Content)
	}
}

func TestExtractSectionsNoHeadings(t *testing.T) {
	sections := ExtractSections("just some text\n\nmore text")
	if len(sections) != 1 || sections[0].Title != "(root)" || sections[0].Level != 0 {
		t.Fatalf("sections = %+v", sections)
	}
}

func TestExtractSectionsIntro(t *testing.T) {
	sections := ExtractSections("intro line\n\n## Facts\n\n- a fact\n")
	if len(sections) != 2 || sections[0].Title != "(intro)" {
		t.Fatalf("sections = %+v", sections)
	}
}

func TestBuildChunksSmallSection(t *testing.T) {
	chunks := BuildChunks([]Section{{Title: "Facts", Level: 2, Content: "- short fact"}}, 500)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if chunks[0].Content != "Facts: - short fact" {
		t.Errorf("content = %q", chunks[0].Content)
	}
	if chunks[0].Section != "Facts" || chunks[0].Position != 0 {
		t.Errorf("chunk = %+v", chunks[0])
	}
}

func TestBuildChunksRootNoPrefix(t *testing.T) {
	chunks := BuildChunks([]Section{{Title: "(root)", Level: 0, Content: "plain"}}, 500)
	if chunks[0].Content != "plain" {
		t.Errorf("root chunk should not be title-prefixed: %q", chunks[0].Content)
	}
}

func TestBuildChunksSplitsParagraphs(t *testing.T) {
	p1 := strings.Repeat("a", 300)
	p2 := strings.Repeat("b", 300)
	p3 := strings.Repeat("c", 300)
	sec := Section{Title: "Knowledge", Level: 2, Content: p1 + "\n\n" + p2 + "\n\n" + p3}
	chunks := BuildChunks([]Section{sec}, 500)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunk %d position = %d", i, c.Position)
		}
		if c.Section != "Knowledge" {
			t.Errorf("chunk %d section = %q", i, c.Section)
		}
	}
}

func TestBuildChunksOversizeParagraphKeptWhole(t *testing.T) {
	big := strings.Repeat("x", 1200)
	chunks := BuildChunks([]Section{{Title: "Knowledge", Level: 2, Content: big}}, 500)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1 (no mid-paragraph split)", len(chunks))
	}
	if len(chunks[0].Content) != 1200 {
		t.Errorf("content length = %d", len(chunks[0].Content))
	}
}

func TestComposeParseRoundTrip(t *testing.T) {
	fm := FrontMatter{
		Type:    "person",
		Created: "2024-01-15 10:30",
		Updated: "2024-01-16 09:00",
		Tags:    []string{"person", "backend"},
	}
	body := "# Ali\n\n## Facts\n\n- works at [[Uzum Bank]]"
	content := Compose(fm, body)

	parsed := ParseContent("Ali", content)
	if parsed.FrontMatter.Type != "person" {
		t.Errorf("round-trip type = %q", parsed.FrontMatter.Type)
	}

	// Identity on canonical notes: parse then recompose must be byte-equal.
	fm2, body2 := ParseFrontMatter(content)
	if recomposed := Compose(fm2, body2); recomposed != content {
		t.Errorf("recomposed differs:\n%q\nwant\n%q", recomposed, content)
	}
}

func TestSectionBounds(t *testing.T) {
	body := "# Ali\n\n## Facts\n\n- a\n\n## Relations\n\n- b\n"
	start, end, ok := SectionBounds(body, "Facts")
	if !ok {
		t.Fatal("Facts section not found")
	}
	if !strings.HasPrefix(body[start:], "## Facts") {
		t.Errorf("start = %d", start)
	}
	if !strings.HasPrefix(body[end:], "\n## Relations") && !strings.HasPrefix(body[end:], "## Relations") {
		t.Errorf("end lands at %q", body[end:])
	}

	if _, _, ok := SectionBounds(body, "Knowledge"); ok {
		t.Error("found absent section")
	}
}

func TestAppendToSectionExisting(t *testing.T) {
	body := "# Ali\n\n## Facts\n\n- a\n\n## Relations\n\n- b\n"
	got := AppendToSection(body, "Facts", "- c\n")
	factsStart, factsEnd, _ := SectionBounds(got, "Facts")
	facts := got[factsStart:factsEnd]
	if !strings.Contains(facts, "- c") {
		t.Errorf("new line not inside Facts: %q", facts)
	}
	relStart, _, ok := SectionBounds(got, "Relations")
	if !ok || !strings.Contains(got[relStart:], "- b") {
		t.Errorf("Relations section damaged: %q", got)
	}
}

func TestAppendToSectionMissing(t *testing.T) {
	body := "# Ali\n\n## Facts\n\n- a\n"
	got := AppendToSection(body, "Knowledge", "**[insight] T** (2024-01-01)\ncontent\n")
	if !strings.Contains(got, "## Knowledge") {
		t.Errorf("section not created: %q", got)
	}
	if strings.Index(got, "## Knowledge") < strings.Index(got, "## Facts") {
		t.Error("new section should be appended at the end")
	}
}

func TestStripWikiLinks(t *testing.T) {
	if got := StripWikiLinks("works at [[Uzum Bank]] on [[Project Alpha]]"); got != "works at Uzum Bank on Project Alpha" {
		t.Errorf("got %q", got)
	}
}

func TestBoldEntryTitles(t *testing.T) {
	text := "**[solution] Pool fix** (2024-01-15)\nstuff\n\n**[command] Check conns** (2024-01-15)\n"
	titles := BoldEntryTitles(text)
	if _, ok := titles["Pool fix"]; !ok {
		t.Errorf("missing Pool fix: %v", titles)
	}
	if _, ok := titles["Check conns"]; !ok {
		t.Errorf("missing Check conns: %v", titles)
	}
}
