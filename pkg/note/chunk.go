package note

import (
	"regexp"
	"strings"
)

// DefaultChunkSize is the approximate chunk size in characters.
const DefaultChunkSize = 500

var paragraphRe = regexp.MustCompile(`\n\s*\n`)

// BuildChunks converts sections into embedding-sized text chunks.
//
// Small sections become a single chunk, prefixed with the section title so
// the embedding carries its context. Oversize sections are split on paragraph
// boundaries; a single paragraph longer than chunkSize is kept whole rather
// than split mid-sentence.
func BuildChunks(sections []Section, chunkSize int) []Chunk {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var chunks []Chunk
	position := 0

	for _, sec := range sections {
		if sec.Content == "" {
			continue
		}

		if len(sec.Content) <= chunkSize {
			text := sec.Content
			if sec.Title != "(root)" && sec.Title != "(intro)" {
				text = sec.Title + ": " + text
			}
			chunks = append(chunks, Chunk{Content: text, Section: sec.Title, Position: position})
			position++
			continue
		}

		var current string
		for _, para := range paragraphRe.Split(sec.Content, -1) {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			if current != "" && len(current)+len(para) > chunkSize {
				chunks = append(chunks, Chunk{Content: strings.TrimSpace(current), Section: sec.Title, Position: position})
				position++
				current = para
			} else if current == "" {
				current = para
			} else {
				current += "\n\n" + para
			}
		}
		if strings.TrimSpace(current) != "" {
			chunks = append(chunks, Chunk{Content: strings.TrimSpace(current), Section: sec.Title, Position: position})
			position++
		}
	}
	return chunks
}
