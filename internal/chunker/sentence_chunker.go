package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"ragcore/internal/domain"
)

const (
	DefaultTargetSize = 300
	DefaultOverlap    = 50
)

// SentenceChunker greedily packs whole sentences into chunks of at most
// targetSize bytes. Each chunk after the first in a section starts by
// repeating up to overlap trailing bytes of the previous chunk. A sentence
// longer than targetSize becomes a chunk of its own, unsplit.
type SentenceChunker struct {
	targetSize int
	overlap    int
}

func NewSentenceChunker(targetSize, overlap int) *SentenceChunker {
	if targetSize <= 0 {
		targetSize = DefaultTargetSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= targetSize {
		overlap = targetSize - 1
	}
	return &SentenceChunker{targetSize: targetSize, overlap: overlap}
}

type span struct {
	start, end int
}

type section struct {
	name string
	span
}

// Chunk splits the document. Chunk ids follow generation order starting at 0,
// and every chunk's text is exactly document[StartOffset:EndOffset].
func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	text := document.Text
	var chunks []domain.Chunk
	emit := func(name string, s span) {
		chunks = append(chunks, domain.Chunk{
			ID:          len(chunks),
			Text:        text[s.start:s.end],
			Section:     name,
			StartOffset: s.start,
			EndOffset:   s.end,
		})
	}

	for _, sec := range splitSections(document) {
		if strings.TrimSpace(text[sec.start:sec.end]) == "" {
			continue
		}
		sentences := splitSentences(text, sec.start, sec.end)

		var cur span
		hasBody := false
		for _, s := range sentences {
			if hasBody && s.end-cur.start <= c.targetSize {
				cur.end = s.end
				continue
			}
			start := s.start
			if hasBody {
				emit(sec.name, cur)
				if n := s.end - s.start; n <= c.targetSize {
					start = overlapStart(text, cur, min(c.overlap, c.targetSize-n))
				}
			}
			cur = span{start: start, end: s.end}
			hasBody = true
		}
		if hasBody {
			emit(sec.name, cur)
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("chunk document: %w", domain.ErrEmptyDocument)
	}
	return chunks, nil
}

// overlapStart returns where a chunk repeating the last n bytes of prev
// begins, moved forward to a rune boundary.
func overlapStart(text string, prev span, n int) int {
	if n <= 0 {
		return prev.end
	}
	o := prev.end - n
	if o < prev.start {
		o = prev.start
	}
	for o < prev.end && !utf8.RuneStart(text[o]) {
		o++
	}
	return o
}

func splitSections(document domain.Document) []section {
	n := len(document.Text)
	if len(document.Sections) == 0 {
		return []section{{name: domain.DefaultSection, span: span{0, n}}}
	}
	markers := document.Sections
	var out []section
	if first := clamp(markers[0].Start, n); first > 0 {
		out = append(out, section{name: domain.DefaultSection, span: span{0, first}})
	}
	for i, m := range markers {
		end := n
		if i+1 < len(markers) {
			end = clamp(markers[i+1].Start, n)
		}
		start := clamp(m.Start, n)
		if end <= start {
			continue
		}
		name := strings.TrimSpace(m.Name)
		if name == "" {
			name = domain.DefaultSection
		}
		out = append(out, section{name: name, span: span{start, end}})
	}
	return out
}

// splitSentences cuts text[start:end] into adjacent spans that cover it
// completely. A sentence ends after a run of terminal punctuation (plus any
// closing quotes or brackets) that is followed by whitespace, or at a line
// break. Whitespace after the boundary stays with the sentence it follows, and
// leading whitespace stays with the first sentence.
func splitSentences(text string, start, end int) []span {
	var out []span
	s := start
	i := start
	for i < end && isSpace(text[i]) {
		i++
	}
	for i < end {
		boundary := false
		switch ch := text[i]; {
		case ch == '\n':
			i++
			boundary = true
		case isTerminal(ch):
			for i < end && isTerminal(text[i]) {
				i++
			}
			for i < end && isCloser(text[i]) {
				i++
			}
			boundary = i == end || isSpace(text[i])
		default:
			i++
		}
		if boundary {
			for i < end && isSpace(text[i]) {
				i++
			}
			out = append(out, span{s, i})
			s = i
		}
	}
	if s < end {
		out = append(out, span{s, end})
	}
	return out
}

func isTerminal(b byte) bool { return b == '.' || b == '!' || b == '?' }

func isCloser(b byte) bool { return b == '"' || b == '\'' || b == ')' || b == ']' }

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

func clamp(v, n int) int {
	if v < 0 {
		return 0
	}
	if v > n {
		return n
	}
	return v
}
