package domain

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultSection names text that precedes the first section marker, or the
// whole document when it has no markers.
const DefaultSection = "Introduction"

// SectionMarker names the section starting at byte offset Start.
type SectionMarker struct {
	Name  string
	Start int
}

// Document is the immutable knowledge source.
type Document struct {
	Text     string
	Sections []SectionMarker
}

// NewDocument returns a document whose markers are sorted by offset. Markers
// outside the text are rejected.
func NewDocument(text string, markers []SectionMarker) (Document, error) {
	sorted := make([]SectionMarker, len(markers))
	copy(sorted, markers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	for _, m := range sorted {
		if m.Start < 0 || m.Start > len(text) {
			return Document{}, fmt.Errorf("section %q starts at %d, outside document of length %d", m.Name, m.Start, len(text))
		}
	}
	return Document{Text: text, Sections: sorted}, nil
}

// Section is a named body of text used to assemble a Document.
type Section struct {
	Name string
	Body string
}

// DocumentFromSections concatenates section bodies, separated by a blank
// line, and records a marker at the start of each body.
func DocumentFromSections(sections ...Section) Document {
	var b strings.Builder
	markers := make([]SectionMarker, 0, len(sections))
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		markers = append(markers, SectionMarker{Name: s.Name, Start: b.Len()})
		b.WriteString(s.Body)
	}
	return Document{Text: b.String(), Sections: markers}
}

// Chunk is a bounded span of document text, the unit of retrieval.
// Text always equals the document text in [StartOffset, EndOffset).
type Chunk struct {
	ID          int    `json:"id"`
	Text        string `json:"text"`
	Section     string `json:"section"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// EmbeddedChunk pairs a chunk with its unit-length vector.
type EmbeddedChunk struct {
	Chunk  Chunk
	Vector []float64
}

// ScoredChunk is a chunk with a relevance score for one query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}

// RetrievalResult holds ranked chunks and the strategy that produced them.
type RetrievalResult struct {
	Chunks   []ScoredChunk
	Strategy Strategy
}

// Attribution identifies one chunk included in a Context.
type Attribution struct {
	ChunkID int     `json:"chunk_id"`
	Section string  `json:"section"`
	Score   float64 `json:"score"`
}

// Context is the bounded grounding text handed to a text generator.
// An empty Text means no grounding is available.
type Context struct {
	Text         string        `json:"text"`
	Attributions []Attribution `json:"attributions"`
}

// Empty reports whether no grounding text was assembled.
func (c Context) Empty() bool { return c.Text == "" }
