package note

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	plainLinkRe   = regexp.MustCompile(`\[\[([^\]]+)\]\]`)
	boldEntryRe   = regexp.MustCompile(`\*\*\[\w+\]\s+(.+?)\*\*`)
	nextSectionRe = regexp.MustCompile(`\n## `)
)

const sectionHeading = "## "

// FormatFrontMatter renders a front-matter header in the stable on-disk
// order: type, created, updated, tags. Tags use flow style.
func FormatFrontMatter(fm FrontMatter) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "type: %s\n", fm.Type)
	fmt.Fprintf(&sb, "created: %s\n", fm.Created)
	fmt.Fprintf(&sb, "updated: %s\n", fm.Updated)
	fmt.Fprintf(&sb, "tags: [%s]\n", strings.Join(fm.Tags, ", "))
	return sb.String()
}

// Compose assembles a complete note file from front matter and body.
// The result always ends with exactly one trailing newline.
func Compose(fm FrontMatter, body string) string {
	return "---\n" + FormatFrontMatter(fm) + "---\n\n" + strings.TrimSpace(body) + "\n"
}

// StripWikiLinks replaces every [[Target]] with Target.
func StripWikiLinks(text string) string {
	return plainLinkRe.ReplaceAllString(text, "$1")
}

// LinkTargets returns the set of wiki-link targets appearing in the body.
func LinkTargets(body string) map[string]struct{} {
	targets := make(map[string]struct{})
	for _, m := range wikiLinkRe.FindAllStringSubmatch(body, -1) {
		targets[strings.TrimSpace(m[1])] = struct{}{}
	}
	return targets
}

// BoldEntryTitles returns the titles of **[type] Title** entries found in
// the given text. Knowledge entries, episodes, and procedures all use this
// header form; uniqueness is enforced per note.
func BoldEntryTitles(text string) map[string]struct{} {
	titles := make(map[string]struct{})
	for _, m := range boldEntryRe.FindAllStringSubmatch(text, -1) {
		titles[strings.TrimSpace(m[1])] = struct{}{}
	}
	return titles
}

// SectionBounds locates a level-2 section by title inside a note body.
// It returns the index of the heading and the index where the section ends
// (the start of the next level-2 heading, or len(body)). ok is false when
// the section is absent.
func SectionBounds(body, title string) (start, end int, ok bool) {
	heading := sectionHeading + title
	idx := strings.Index(body, heading)
	if idx < 0 {
		return 0, 0, false
	}
	rest := body[idx+1:]
	if m := nextSectionRe.FindStringIndex(rest); m != nil {
		return idx, idx + 1 + m[0], true
	}
	return idx, len(body), true
}

// AppendToSection inserts lines at the end of the named section, creating
// the section at the end of the body when missing. lines must already carry
// their own trailing newlines.
func AppendToSection(body, title, lines string) string {
	if lines == "" {
		return body
	}
	if _, end, ok := SectionBounds(body, title); ok {
		head := strings.TrimRight(body[:end], "\n")
		return head + "\n" + lines + "\n" + body[end:]
	}
	return strings.TrimRight(body, "\n") + "\n\n" + sectionHeading + title + "\n\n" + lines
}
