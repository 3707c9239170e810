package vault

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/alibaizhanov/mengram/pkg/extract"
	"github.com/alibaizhanov/mengram/pkg/note"
)

// ApplyResult lists the notes an Apply call touched.
type ApplyResult struct {
	Created []string
	Updated []string
}

// Apply merges an extraction into the vault. Notes are created for new
// entities and stub notes for entities that only appear as relation
// endpoints, knowledge owners, or episode participants. Existing notes
// only ever gain content: near-duplicate facts, already-linked relations
// and already-titled entries are skipped.
func (s *Store) Apply(res *extract.Result) (*ApplyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stems, err := s.stems()
	if err != nil {
		return nil, err
	}
	m := &merger{store: s, stems: stems, created: map[string]bool{}, updated: map[string]bool{}}

	processed := make(map[string]bool)
	for _, ent := range res.Entities {
		rels := relationsFor(ent.Name, res.Relations)
		know := knowledgeFor(ent.Name, res.Knowledge)
		if err := m.upsert(ent, rels, know); err != nil {
			return nil, err
		}
		processed[ent.Name] = true
	}

	// Knowledge attached to entities the extraction did not list.
	for _, k := range res.Knowledge {
		if k.Entity == "" || processed[k.Entity] {
			continue
		}
		ent := extract.Entity{Name: k.Entity, Type: extract.TypeConcept}
		if err := m.upsert(ent, nil, knowledgeFor(k.Entity, res.Knowledge)); err != nil {
			return nil, err
		}
		processed[k.Entity] = true
	}

	// Stub notes for entities that only appear as relation endpoints.
	for _, rel := range res.Relations {
		for _, name := range []string{rel.From, rel.To} {
			if name == "" || processed[name] || m.exists(name) {
				continue
			}
			if err := m.createStub(name); err != nil {
				return nil, err
			}
			processed[name] = true
		}
	}

	for _, ep := range res.Episodes {
		if err := m.applyEpisode(ep); err != nil {
			return nil, err
		}
	}
	for _, pr := range res.Procedures {
		if err := m.applyProcedure(pr); err != nil {
			return nil, err
		}
	}

	ar := &ApplyResult{Created: sortedKeys(m.created), Updated: sortedKeys(m.updated)}
	if len(ar.Created) > 0 || len(ar.Updated) > 0 {
		s.gen++
	}
	s.logger.Debug("extraction applied",
		"created", len(ar.Created), "updated", len(ar.Updated))
	return ar, nil
}

// merger carries the per-Apply state: the evolving set of note stems so
// entities created earlier in the pass become linkable for later ones.
type merger struct {
	store   *Store
	stems   []string
	created map[string]bool
	updated map[string]bool
}

func (m *merger) exists(name string) bool {
	_, err := os.Stat(m.store.path(name))
	return err == nil
}

func (m *merger) noteCreated(name string) {
	m.created[name] = true
	m.stems = append(m.stems, Sanitize(name))
	sort.Strings(m.stems)
}

func (m *merger) noteUpdated(name string) {
	if !m.created[name] {
		m.updated[name] = true
	}
}

func (m *merger) upsert(ent extract.Entity, rels []extract.Relation, know []extract.Knowledge) error {
	if m.exists(ent.Name) {
		return m.update(ent, rels, know)
	}
	return m.create(ent, rels, know)
}

func (m *merger) createStub(name string) error {
	return m.create(extract.Entity{Name: name, Type: extract.TypeConcept}, nil, nil)
}

func (m *merger) create(ent extract.Entity, rels []extract.Relation, know []extract.Knowledge) error {
	now := m.store.now()
	fm := note.FrontMatter{
		Type:    ent.Type,
		Created: now.Format(note.TimeLayout),
		Updated: now.Format(note.TimeLayout),
		Tags:    []string{ent.Type},
	}

	var sb strings.Builder
	sb.WriteString("# " + ent.Name + "\n")

	if len(ent.Facts) > 0 {
		sb.WriteString("\n## " + note.SectionFacts + "\n\n")
		for _, f := range ent.Facts {
			sb.WriteString("- " + m.linkEntities(renderFact(f), ent.Name) + "\n")
		}
	}
	if len(rels) > 0 {
		sb.WriteString("\n## " + note.SectionRelations + "\n\n")
		for _, rel := range rels {
			sb.WriteString(renderRelation(ent.Name, rel) + "\n")
		}
	}
	if len(know) > 0 {
		sb.WriteString("\n## " + note.SectionKnowledge + "\n\n")
		entries := make([]string, 0, len(know))
		for _, k := range know {
			entries = append(entries, m.formatKnowledge(k))
		}
		sb.WriteString(strings.Join(entries, "\n"))
	}

	path := m.store.path(ent.Name)
	if err := m.store.writeNote(path, note.Compose(fm, sb.String())); err != nil {
		return err
	}
	m.noteCreated(ent.Name)
	return nil
}

func (m *merger) update(ent extract.Entity, rels []extract.Relation, know []extract.Knowledge) error {
	path := m.store.path(ent.Name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vault: read %s: %w", path, err)
	}
	fm, body := note.ParseFrontMatter(string(data))
	changed := false

	// Facts: skip anything that token-overlaps an existing fact line.
	existing := existingFacts(body)
	var factLines strings.Builder
	for _, f := range ent.Facts {
		rendered := renderFact(f)
		if FactExists(rendered, existing) {
			continue
		}
		existing = append(existing, strings.ToLower(rendered))
		factLines.WriteString("- " + m.linkEntities(rendered, ent.Name) + "\n")
	}
	if factLines.Len() > 0 {
		body = note.AppendToSection(body, note.SectionFacts, factLines.String())
		changed = true
	}

	// Relations: skip endpoints the note already links to.
	linked := note.LinkTargets(body)
	var relLines strings.Builder
	for _, rel := range rels {
		other := relationOther(ent.Name, rel)
		if _, ok := linked[other]; ok {
			continue
		}
		linked[other] = struct{}{}
		relLines.WriteString(renderRelation(ent.Name, rel) + "\n")
	}
	if relLines.Len() > 0 {
		body = note.AppendToSection(body, note.SectionRelations, relLines.String())
		changed = true
	}

	// Knowledge: dedupe by bold entry title.
	titles := note.BoldEntryTitles(body)
	var entries []string
	for _, k := range know {
		if _, ok := titles[k.Title]; ok {
			continue
		}
		titles[k.Title] = struct{}{}
		entries = append(entries, m.formatKnowledge(k))
	}
	if len(entries) > 0 {
		body = note.AppendToSection(body, note.SectionKnowledge, strings.Join(entries, "\n"))
		changed = true
	}

	if !changed {
		return nil
	}
	fm.Updated = m.store.now().Format(note.TimeLayout)
	if err := m.store.writeNote(path, note.Compose(fm, body)); err != nil {
		return err
	}
	m.noteUpdated(ent.Name)
	return nil
}

func (m *merger) applyEpisode(ep extract.Episode) error {
	entry := m.formatEpisode(ep)
	for _, name := range ep.Participants {
		if name == "" {
			continue
		}
		if err := m.appendEntry(name, note.SectionEpisodes, ep.Summary, entry); err != nil {
			return err
		}
	}
	return nil
}

func (m *merger) applyProcedure(pr extract.Procedure) error {
	entry := m.formatProcedure(pr)
	for _, name := range pr.Entities {
		if name == "" {
			continue
		}
		if err := m.appendEntry(name, note.SectionProcedures, pr.Name, entry); err != nil {
			return err
		}
	}
	return nil
}

// appendEntry adds a bold-titled entry to the named section of an entity's
// note, creating a stub note first when needed. Entries are deduplicated by
// title within the section.
func (m *merger) appendEntry(entity, section, title, entry string) error {
	if !m.exists(entity) {
		if err := m.createStub(entity); err != nil {
			return err
		}
	}
	path := m.store.path(entity)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("vault: read %s: %w", path, err)
	}
	fm, body := note.ParseFrontMatter(string(data))

	if _, end, ok := note.SectionBounds(body, section); ok {
		if _, dup := note.BoldEntryTitles(body[:end])[title]; dup {
			return nil
		}
	}
	body = note.AppendToSection(body, section, entry)
	fm.Updated = m.store.now().Format(note.TimeLayout)
	if err := m.store.writeNote(path, note.Compose(fm, body)); err != nil {
		return err
	}
	m.noteUpdated(entity)
	return nil
}

// linkEntities wraps the first mention of every other known entity in
// [[...]], preserving the note's canonical casing.
func (m *merger) linkEntities(text, current string) string {
	currentStem := Sanitize(current)
	for _, stem := range m.stems {
		if strings.EqualFold(stem, currentStem) {
			continue
		}
		if strings.Contains(text, "[["+stem+"]]") {
			continue
		}
		re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(stem))
		if err != nil {
			continue
		}
		if loc := re.FindStringIndex(text); loc != nil {
			text = text[:loc[0]] + "[[" + stem + "]]" + text[loc[1]:]
		}
	}
	return text
}

func (m *merger) formatKnowledge(k extract.Knowledge) string {
	date := m.store.now().Format(note.DateLayout)
	var sb strings.Builder
	fmt.Fprintf(&sb, "**[%s] %s** (%s)\n", k.Type, k.Title, date)
	sb.WriteString(m.linkEntities(k.Content, k.Entity) + "\n")
	if artifact := strings.TrimSpace(k.Artifact); artifact != "" {
		lang := detectArtifactLang(artifact, k.Type)
		sb.WriteString("\n```" + lang + "\n" + artifact + "\n```\n")
	}
	return sb.String()
}

func (m *merger) formatEpisode(ep extract.Episode) string {
	date := ep.HappenedAt
	if date == "" {
		date = m.store.now().Format(note.DateLayout)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**[episode] %s** (%s)\n", ep.Summary, date)
	if ep.Context != "" {
		sb.WriteString(ep.Context + "\n")
	}
	if ep.Outcome != "" {
		sb.WriteString("Outcome: " + ep.Outcome + "\n")
	}
	fmt.Fprintf(&sb, "Valence: %s (importance %g)\n", ep.EmotionalValence, ep.Importance)
	return sb.String()
}

func (m *merger) formatProcedure(pr extract.Procedure) string {
	date := m.store.now().Format(note.DateLayout)
	var sb strings.Builder
	fmt.Fprintf(&sb, "**[procedure] %s** (%s)\n", pr.Name, date)
	if pr.Trigger != "" {
		sb.WriteString("Trigger: " + pr.Trigger + "\n")
	}
	for i, step := range pr.Steps {
		n := step.Step
		if n == 0 {
			n = i + 1
		}
		if step.Detail != "" {
			fmt.Fprintf(&sb, "%d. %s: %s\n", n, step.Action, step.Detail)
		} else {
			fmt.Fprintf(&sb, "%d. %s\n", n, step.Action)
		}
	}
	return sb.String()
}

// renderFact renders a fact line body, suffixing the event date when known.
func renderFact(f extract.Fact) string {
	if f.EventDate != "" {
		return f.Content + " (" + f.EventDate + ")"
	}
	return f.Content
}

func relationOther(entity string, rel extract.Relation) string {
	if rel.From == entity {
		return rel.To
	}
	return rel.From
}

func renderRelation(entity string, rel extract.Relation) string {
	dir := "→"
	if rel.From != entity {
		dir = "←"
	}
	line := "- " + dir + " **" + rel.Type + "** [[" + relationOther(entity, rel) + "]]"
	if rel.Description != "" {
		line += ": " + rel.Description
	}
	return line
}

func relationsFor(name string, rels []extract.Relation) []extract.Relation {
	var out []extract.Relation
	for _, r := range rels {
		if r.From == name || r.To == name {
			out = append(out, r)
		}
	}
	return out
}

func knowledgeFor(name string, know []extract.Knowledge) []extract.Knowledge {
	var out []extract.Knowledge
	for _, k := range know {
		if k.Entity == name {
			out = append(out, k)
		}
	}
	return out
}

// existingFacts collects the plain fact lines of a body: bulleted lines
// that are neither relations (bold type marker) nor checkbox-style lists,
// lowercased with wiki links stripped.
func existingFacts(body string) []string {
	var facts []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") || strings.Contains(line, "**") {
			continue
		}
		rest := line[2:]
		if strings.HasPrefix(rest, "[") && !strings.HasPrefix(rest, "[[") {
			continue
		}
		facts = append(facts, strings.ToLower(strings.TrimSpace(note.StripWikiLinks(rest))))
	}
	return facts
}

// FactExists reports whether a candidate fact is a near-duplicate of any
// existing fact line: more than 70% of the candidate's tokens must already
// appear in a single existing fact.
func FactExists(fact string, existing []string) bool {
	words := tokenSet(strings.ToLower(strings.TrimSpace(note.StripWikiLinks(fact))))
	if len(words) == 0 {
		return false
	}
	for _, ex := range existing {
		overlap := 0
		for w := range tokenSet(ex) {
			if _, ok := words[w]; ok {
				overlap++
			}
		}
		if float64(overlap)/float64(len(words)) > 0.7 {
			return true
		}
	}
	return false
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
