package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"ragcore/internal/chunker"
	"ragcore/internal/domain"
)

// DocumentSource loads the knowledge document. It is called on every build.
type DocumentSource func(ctx context.Context) (domain.Document, error)

// FileSource reads a markdown or plain text file. ATX headings become
// section markers; a file without headings is a single section.
func FileSource(path string) DocumentSource {
	return func(ctx context.Context) (domain.Document, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return domain.Document{}, fmt.Errorf("read document: %w", err)
		}
		return chunker.ParseMarkdown(string(data)), nil
	}
}

// StaticSource always returns doc.
func StaticSource(doc domain.Document) DocumentSource {
	return func(context.Context) (domain.Document, error) { return doc, nil }
}

// KeywordFilter is a topical pre-filter: a query passes when it contains any
// keyword, ignoring case. An empty filter passes every query.
type KeywordFilter []string

// Allows reports whether query relates to the indexed domain.
func (f KeywordFilter) Allows(query string) bool {
	if len(f) == 0 {
		return true
	}
	q := strings.ToLower(query)
	for _, kw := range f {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
