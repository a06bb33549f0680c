package memory

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"
	"testing"

	"ragcore/internal/domain"
)

// keywordEmbedder maps text to a one-hot vector by the first keyword it contains.
type keywordEmbedder struct {
	keywords []string
	fail     string
	mu       sync.Mutex
	prepared int
}

func (k *keywordEmbedder) Name() string { return "keyword" }

func (k *keywordEmbedder) Prepare(corpus []string) error {
	k.mu.Lock()
	k.prepared++
	k.mu.Unlock()
	return nil
}

func (k *keywordEmbedder) Dimension() int { return len(k.keywords) + 1 }

func (k *keywordEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	if k.fail != "" && strings.Contains(text, k.fail) {
		return nil, errors.New("provider down")
	}
	v := make([]float64, len(k.keywords)+1)
	for i, kw := range k.keywords {
		if strings.Contains(strings.ToLower(text), kw) {
			v[i] = 2
			return v, nil
		}
	}
	v[len(k.keywords)] = 3
	return v, nil
}

func chunks(texts ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(texts))
	for i, t := range texts {
		out[i] = domain.Chunk{ID: i, Text: t, Section: "S", StartOffset: i * 10, EndOffset: i*10 + len(t)}
	}
	return out
}

func TestBuildNormalizesVectors(t *testing.T) {
	ix, err := Build(context.Background(), chunks("alpha one", "beta two", "other"), &keywordEmbedder{keywords: []string{"alpha", "beta"}}, BuildOptions{Concurrency: 2})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if ix.Len() != 3 || ix.Dimension() != 3 {
		t.Fatalf("unexpected index size %d dim %d", ix.Len(), ix.Dimension())
	}
	for _, e := range ix.entries {
		n := 0.0
		for _, x := range e.Vector {
			n += x * x
		}
		if math.Abs(math.Sqrt(n)-1) > 1e-9 {
			t.Fatalf("chunk %d vector norm %f", e.Chunk.ID, math.Sqrt(n))
		}
	}
}

func TestBuildIsAllOrNothing(t *testing.T) {
	_, err := Build(context.Background(), chunks("alpha", "broken chunk", "beta"), &keywordEmbedder{keywords: []string{"alpha"}, fail: "broken"}, BuildOptions{Concurrency: 3})
	if !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected ErrEmbeddingFailure, got %v", err)
	}
}

func TestBuildEmpty(t *testing.T) {
	if _, err := Build(context.Background(), nil, &keywordEmbedder{}, BuildOptions{}); !errors.Is(err, domain.ErrEmptyDocument) {
		t.Fatalf("expected ErrEmptyDocument, got %v", err)
	}
}

func TestBuildReportsProgress(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	last := 0
	_, err := Build(context.Background(), chunks("a", "b", "c", "d"), &keywordEmbedder{}, BuildOptions{
		Concurrency: 2,
		Progress: func(done, total int) {
			mu.Lock()
			defer mu.Unlock()
			seen++
			if total != 4 {
				t.Errorf("unexpected total %d", total)
			}
			last = max(last, done)
		},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if seen != 4 || last != 4 {
		t.Fatalf("progress called %d times, max done %d", seen, last)
	}
}

func TestSearchOrderAndTieBreak(t *testing.T) {
	emb := &keywordEmbedder{keywords: []string{"alpha", "beta"}}
	ix, err := Build(context.Background(), chunks("beta x", "alpha y", "other", "alpha z", "beta w"), emb, BuildOptions{Concurrency: 4})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := ix.Search([]float64{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	var ids []int
	for _, s := range got {
		ids = append(ids, s.Chunk.ID)
	}
	// the two alpha chunks score 1; the three others tie at 0 and order by id
	if !reflect.DeepEqual(ids, []int{1, 3, 0}) {
		t.Fatalf("unexpected ids %v", ids)
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Score < got[i].Score {
			t.Fatalf("scores not non-increasing: %v", got)
		}
	}
	if math.Abs(got[0].Score-1) > 1e-9 {
		t.Fatalf("expected score 1, got %f", got[0].Score)
	}
}

func TestSearchDimensionMismatch(t *testing.T) {
	ix, err := Build(context.Background(), chunks("alpha"), &keywordEmbedder{keywords: []string{"alpha"}}, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := ix.Search([]float64{1, 0, 0, 0}, 1); !errors.Is(err, domain.ErrEmbeddingFailure) {
		t.Fatalf("expected ErrEmbeddingFailure, got %v", err)
	}
}

func TestSearchKLargerThanIndex(t *testing.T) {
	ix, err := Build(context.Background(), chunks("alpha", "beta"), &keywordEmbedder{keywords: []string{"alpha"}}, BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	got, err := ix.Search([]float64{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
}
