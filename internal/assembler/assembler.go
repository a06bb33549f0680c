package assembler

import (
	"fmt"
	"strings"

	"ragcore/internal/domain"
)

const separator = "\n\n"

// Block formats one chunk as it appears in a context. A leading markdown
// heading line is dropped since the section prefix already names it.
func Block(c domain.Chunk) string {
	text := strings.TrimSpace(c.Text)
	if line, rest, ok := strings.Cut(text, "\n"); ok && isHeading(line) {
		text = strings.TrimSpace(rest)
	}
	return "[" + c.Section + "] " + text
}

func isHeading(line string) bool {
	hashes := len(line) - len(strings.TrimLeft(line, "#"))
	return hashes >= 1 && hashes <= 6 && len(line) > hashes && (line[hashes] == ' ' || line[hashes] == '\t')
}

// Assemble concatenates chunks in the given order, each prefixed by its
// section name, until the next block would push the text past maxLength.
// Chunks are never cut; an empty input yields an empty Context.
func Assemble(scored []domain.ScoredChunk, maxLength int) domain.Context {
	var b strings.Builder
	var attributions []domain.Attribution
	for _, s := range scored {
		block := Block(s.Chunk)
		extra := len(block)
		if b.Len() > 0 {
			extra += len(separator)
		}
		if b.Len()+extra > maxLength {
			break
		}
		if b.Len() > 0 {
			b.WriteString(separator)
		}
		b.WriteString(block)
		attributions = append(attributions, domain.Attribution{
			ChunkID: s.Chunk.ID,
			Section: s.Chunk.Section,
			Score:   s.Score,
		})
	}
	return domain.Context{Text: b.String(), Attributions: attributions}
}

// AttributionText lists the sections a context was drawn from with their
// relevance as a whole percentage, for display next to a generated answer.
// It returns "" when there are no attributions.
func AttributionText(attributions []domain.Attribution) string {
	if len(attributions) == 0 {
		return ""
	}
	lines := make([]string, 0, len(attributions)+1)
	lines = append(lines, "Information retrieved from:")
	for i, a := range attributions {
		lines = append(lines, fmt.Sprintf("  %d. %s (relevance: %.0f%%)", i+1, a.Section, a.Score*100))
	}
	return strings.Join(lines, "\n")
}
