// Package note parses and serializes entity notes: UTF-8 markdown files with
// a YAML front-matter header, wiki-style [[links]], inline #tags, and a fixed
// set of level-2 sections (Facts, Relations, Knowledge, plus optional
// Episodes and Procedures).
//
// The package is a pure codec. It never touches more than one file at a time
// and holds no state; the vault package owns directory layout and locking.
package note

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

// Timestamp layouts used in front matter and knowledge entries.
const (
	// TimeLayout is the minute-resolution layout for created/updated stamps.
	TimeLayout = "2006-01-02 15:04"

	// DateLayout is the day-resolution layout for knowledge and fact dates.
	DateLayout = "2006-01-02"
)

// Section titles with reserved meaning. SectionOrder fixes the order in
// which sections are created in a fresh note.
const (
	SectionFacts      = "Facts"
	SectionRelations  = "Relations"
	SectionKnowledge  = "Knowledge"
	SectionEpisodes   = "Episodes"
	SectionProcedures = "Procedures"
)

var (
	frontMatterRe = regexp.MustCompile(`(?s)^---\n(.*?)\n---\n`)
	wikiLinkRe    = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)
	headingRe     = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)
	inlineTagRe   = regexp.MustCompile(`(?m)(?:^|\s)#([A-Za-z][\w\-/]*)`)
	h1Re          = regexp.MustCompile(`(?m)^#\s+(.+)$`)
)

// wikiLinkContext is how many characters of surrounding text are captured
// on each side of a wiki link.
const wikiLinkContext = 80

// FrontMatter is the YAML header of an entity note.
type FrontMatter struct {
	// Type is the entity type (person, project, technology, ...).
	Type string `yaml:"type"`

	// Created and Updated are TimeLayout timestamps.
	Created string `yaml:"created"`
	Updated string `yaml:"updated"`

	// Tags always includes the entity type.
	Tags []string `yaml:"tags,omitempty"`
}

// WikiLink is a [[Target]] or [[Target|Alias]] reference found in a body.
type WikiLink struct {
	Target string
	Alias  string

	// Context is up to 80 characters of text on each side of the link,
	// with newlines flattened to spaces.
	Context string
}

// Section is one heading-delimited region of a note body. Level 0 marks the
// pseudo-sections "(root)" (body without headings) and "(intro)" (text before
// the first heading).
type Section struct {
	Title   string
	Level   int
	Content string
}

// Chunk is a piece of note text sized for vector embedding.
type Chunk struct {
	Content  string
	Section  string
	Position int
}

// ParsedNote is the result of parsing one entity note.
type ParsedNote struct {
	Path        string
	Name        string // file stem = canonical entity name
	Title       string // H1 heading, or the stem if absent
	FrontMatter FrontMatter
	Tags        []string
	WikiLinks   []WikiLink
	Sections    []Section
	Chunks      []Chunk
	Raw         string
}

// ParseFrontMatter splits content into its front-matter header and the
// remaining body. A missing or malformed header yields a zero FrontMatter
// and the whole content as body.
func ParseFrontMatter(content string) (FrontMatter, string) {
	m := frontMatterRe.FindStringIndex(content)
	if m == nil {
		return FrontMatter{}, content
	}
	var fm FrontMatter
	header := content[m[0]:m[1]]
	inner := frontMatterRe.FindStringSubmatch(header)[1]
	if err := yaml.Unmarshal([]byte(inner), &fm); err != nil {
		fm = FrontMatter{}
	}
	return fm, content[m[1]:]
}

// ExtractWikiLinks returns all wiki links in the body, each with its
// surrounding context.
func ExtractWikiLinks(body string) []WikiLink {
	var links []WikiLink
	for _, m := range wikiLinkRe.FindAllStringSubmatchIndex(body, -1) {
		target := strings.TrimSpace(body[m[2]:m[3]])
		alias := ""
		if m[4] >= 0 {
			alias = strings.TrimSpace(body[m[4]:m[5]])
		}
		start := max(0, m[0]-wikiLinkContext)
		end := min(len(body), m[1]+wikiLinkContext)
		ctx := strings.TrimSpace(strings.ReplaceAll(body[start:end], "\n", " "))
		links = append(links, WikiLink{Target: target, Alias: alias, Context: ctx})
	}
	return links
}

// ExtractTags merges front-matter tags with inline #tags from the body,
// returning a sorted, deduplicated list.
func ExtractTags(body string, fm FrontMatter) []string {
	set := make(map[string]struct{})
	for _, t := range fm.Tags {
		set[t] = struct{}{}
	}
	for _, m := range inlineTagRe.FindAllStringSubmatch(body, -1) {
		set[m[1]] = struct{}{}
	}
	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// ExtractSections splits a body into heading-delimited sections. Text before
// the first heading becomes "(intro)"; a body without headings becomes a
// single "(root)" section.
func ExtractSections(body string) []Section {
	headings := headingRe.FindAllStringSubmatchIndex(body, -1)
	if len(headings) == 0 {
		stripped := strings.TrimSpace(body)
		if stripped == "" {
			return nil
		}
		return []Section{{Title: "(root)", Level: 0, Content: stripped}}
	}

	var sections []Section
	if pre := strings.TrimSpace(body[:headings[0][0]]); pre != "" {
		sections = append(sections, Section{Title: "(intro)", Level: 0, Content: pre})
	}
	for i, h := range headings {
		level := h[3] - h[2]
		title := strings.TrimSpace(body[h[4]:h[5]])
		start := h[1]
		end := len(body)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		sections = append(sections, Section{
			Title:   title,
			Level:   level,
			Content: strings.TrimSpace(body[start:end]),
		})
	}
	return sections
}

// ParseContent parses a note body (with front matter) that would be stored
// under the given canonical name.
func ParseContent(name, content string) *ParsedNote {
	fm, body := ParseFrontMatter(content)

	title := name
	if m := h1Re.FindStringSubmatch(body); m != nil {
		title = strings.TrimSpace(m[1])
	}

	sections := ExtractSections(body)
	return &ParsedNote{
		Name:        name,
		Title:       title,
		FrontMatter: fm,
		Tags:        ExtractTags(body, fm),
		WikiLinks:   ExtractWikiLinks(body),
		Sections:    sections,
		Chunks:      BuildChunks(sections, DefaultChunkSize),
		Raw:         content,
	}
}

// ParseFile reads and parses a single note file.
func ParseFile(path string) (*ParsedNote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("note: read %s: %w", path, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	n := ParseContent(stem, string(data))
	n.Path = path
	return n, nil
}

// ParseDir parses every .md file directly inside dir, skipping hidden files.
// Malformed notes are skipped rather than failing the whole scan.
func ParseDir(dir string) ([]*ParsedNote, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("note: read dir %s: %w", dir, err)
	}
	var notes []*ParsedNote
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".md") {
			continue
		}
		n, err := ParseFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Name < notes[j].Name })
	return notes, nil
}
