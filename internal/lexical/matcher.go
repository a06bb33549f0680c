// Package lexical scores chunks by keyword overlap with a query. It is the
// recovery path for vector search and never returns an error.
package lexical

import (
	"regexp"
	"sort"
	"strings"

	"ragcore/internal/domain"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

const phraseBonus = 0.25

// Matcher ranks chunks by the share of distinct query terms they contain.
//
// A chunk scores matched / terms, where terms is the number of distinct
// non-stopword query tokens and matched is how many of them occur in the
// chunk. A chunk containing the whole normalized query gains phraseBonus.
// Scores are capped at 1.
type Matcher struct {
	// MinScore drops chunks scoring below it. Zero-score chunks are always dropped.
	MinScore float64
}

// Search returns at most k chunks, best first, ties by ascending id.
func (m Matcher) Search(query string, chunks []domain.Chunk, k int) []domain.ScoredChunk {
	if k <= 0 {
		return nil
	}
	terms := distinct(Tokenize(query))
	if len(terms) == 0 {
		return nil
	}
	phrase := normalize(query)
	total := float64(len(terms))

	var out []domain.ScoredChunk
	for _, c := range chunks {
		present := make(map[string]struct{})
		for _, tok := range Tokenize(c.Text) {
			present[tok] = struct{}{}
		}
		matched := 0
		for _, term := range terms {
			if _, ok := present[term]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / total
		if phrase != "" && strings.Contains(normalize(c.Text), phrase) {
			score = min(1, score+phraseBonus)
		}
		if score < m.MinScore {
			continue
		}
		out = append(out, domain.ScoredChunk{Chunk: c, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Chunk.ID < out[j].Chunk.ID
	})
	if k < len(out) {
		out = out[:k]
	}
	return out
}

// Tokenize lowercases text and returns its word tokens without stopwords.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// normalize joins all word tokens, stopwords included, with single spaces.
func normalize(text string) string {
	return strings.Join(tokenPattern.FindAllString(strings.ToLower(text), -1), " ")
}

func distinct(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := tokens[:0]
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"what", "who", "whom", "which", "where", "when", "why", "how", "do", "does", "did", "i", "you", "me", "my", "your", "tell",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
