package parser

import (
	"iter"
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the window size in characters used when none is configured.
const DefaultChunkSize = 1200

// Segment is one chunk of extracted text. Index is dense over kept segments.
type Segment struct {
	Index   int
	Content string
}

// Chunks lazily splits text into consecutive, non-overlapping windows of at
// most limit characters. Windows are trimmed and empty windows are dropped
// without consuming an index.
func Chunks(text string, limit int) iter.Seq[Segment] {
	if limit <= 0 {
		limit = DefaultChunkSize
	}
	return func(yield func(Segment) bool) {
		index := 0
		for rest := text; rest != ""; {
			end := windowEnd(rest, limit)
			window := rest[:end]
			rest = rest[end:]

			content := strings.TrimSpace(window)
			if content == "" {
				continue
			}
			if !yield(Segment{Index: index, Content: content}) {
				return
			}
			index++
		}
	}
}

// SplitText collects Chunks into a slice.
func SplitText(text string, limit int) []Segment {
	var out []Segment
	for seg := range Chunks(text, limit) {
		out = append(out, seg)
	}
	return out
}

// windowEnd returns the byte offset just past the first limit runes of s.
func windowEnd(s string, limit int) int {
	offset := 0
	for n := 0; n < limit && offset < len(s); n++ {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return offset
}

// Excerpt returns at most maxChars characters from the start of text, trimmed.
func Excerpt(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}
	return strings.TrimSpace(text[:windowEnd(text, maxChars)])
}
