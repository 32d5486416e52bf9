package chunking

import (
	"strings"
	"unicode/utf8"
)

const paragraphSeparator = "\n\n"

// Splitter packs blank-line separated paragraphs greedily into chunks of
// at most ChunkSize characters. A single paragraph longer than ChunkSize
// becomes its own oversized chunk. Overlap is accepted for configuration
// compatibility; paragraph packing never overlaps chunks.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	out := make([]string, 0)
	flush := func(chunk string) {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			out = append(out, chunk)
		}
	}

	current := ""
	for _, paragraph := range strings.Split(text, paragraphSeparator) {
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(paragraph) > s.ChunkSize {
			flush(current)
			current = paragraph
			continue
		}
		if current == "" {
			current = paragraph
		} else {
			current += paragraphSeparator + paragraph
		}
	}
	flush(current)
	return out
}
