package chunker

import (
	"regexp"
	"strings"

	"ragcore/internal/domain"
)

var headingRe = regexp.MustCompile(`^#{1,6}[ \t]+(.+?)[ \t#]*$`)

// ParseMarkdown returns the text as a Document with one section marker per
// ATX heading line. The marker points at the heading line itself, so the
// heading stays part of its section's text. Headings inside fenced code
// blocks are ignored.
func ParseMarkdown(text string) domain.Document {
	var markers []domain.SectionMarker
	inFence := false
	offset := 0
	for offset < len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		next := len(text)
		if lineEnd >= 0 {
			next = offset + lineEnd + 1
		}
		line := strings.TrimRight(text[offset:next], "\r\n")

		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
		} else if !inFence {
			if m := headingRe.FindStringSubmatch(line); m != nil {
				markers = append(markers, domain.SectionMarker{Name: strings.TrimSpace(m[1]), Start: offset})
			}
		}
		offset = next
	}
	return domain.Document{Text: text, Sections: markers}
}
