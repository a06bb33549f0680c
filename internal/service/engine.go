package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"ragcore/internal/assembler"
	"ragcore/internal/chunker"
	"ragcore/internal/config"
	"ragcore/internal/domain"
	"ragcore/internal/embedding"
	"ragcore/internal/lexical"
	"ragcore/internal/log"
	"ragcore/internal/vectorstore"
	"ragcore/internal/vectorstore/memory"
)

// Options configures an Engine.
type Options struct {
	Source DocumentSource
	// Embedder is wrapped in an embedding.Guard unless it already is one.
	Embedder     domain.Embedder
	EmbedTimeout time.Duration
	// Chunker defaults to a sentence chunker sized by Config.
	Chunker domain.Chunker
	Config  config.RetrievalConfig
	// Logger defaults to the global logger named "retrieval" when nil.
	Logger *logr.Logger
	// Progress receives index build progress.
	Progress func(done, total int)
}

// Result is the outcome of one query.
type Result struct {
	RequestID string
	Context   domain.Context
	Retrieval domain.RetrievalResult
	Elapsed   time.Duration
}

// Stats describes the engine's current snapshot.
type Stats struct {
	Chunks           int       `json:"chunks"`
	Sections         int       `json:"sections"`
	Dimension        int       `json:"dimension"`
	Embedder         string    `json:"embedder"`
	IndexReady       bool      `json:"index_ready"`
	Strategy         string    `json:"search_strategy"`
	TopK             int       `json:"top_k"`
	ScoreThreshold   float64   `json:"score_threshold"`
	MaxContextLength int       `json:"max_context_length"`
	BuiltAt          time.Time `json:"built_at"`
	LastBuildError   string    `json:"last_build_error,omitempty"`
}

// snapshot is one immutable build of the document, its chunks and index.
type snapshot struct {
	text     string
	chunks   []domain.Chunk
	sections []string
	// index is nil when the vector index is unavailable.
	index    vectorstore.Index
	indexErr error
	// buildErr is set when the document could not be loaded or chunked.
	buildErr error
	builtAt  time.Time
}

// Engine answers retrieval queries against a document. Builds happen once on
// first use (or Initialize) and on Rebuild; queries read an immutable
// snapshot and never block each other.
type Engine struct {
	source   DocumentSource
	chunker  domain.Chunker
	embedder domain.Embedder
	cfg      config.RetrievalConfig
	policy   domain.SearchPolicy
	filter   KeywordFilter
	matcher  lexical.Matcher
	progress func(done, total int)
	log      logr.Logger

	snap   atomic.Pointer[snapshot]
	group  singleflight.Group
	closed atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// New validates opts and returns an engine with nothing built yet.
func New(opts Options) (*Engine, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, err
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("%w: no document source", domain.ErrInvalidConfig)
	}
	policy, _ := domain.ParsePolicy(opts.Config.SearchStrategy)
	if opts.Embedder == nil && policy != domain.PolicyLexical {
		return nil, fmt.Errorf("%w: %s search needs an embedder", domain.ErrInvalidConfig, policy)
	}
	emb := opts.Embedder
	if _, ok := emb.(*embedding.Guard); !ok && emb != nil {
		emb = embedding.NewGuard(emb, 0, opts.EmbedTimeout)
	}
	ch := opts.Chunker
	if ch == nil {
		ch = chunker.NewSentenceChunker(opts.Config.ChunkTargetSize, opts.Config.ChunkOverlap)
	}
	lg := log.WithName("retrieval")
	if opts.Logger != nil {
		lg = *opts.Logger
	}
	return &Engine{
		source:   opts.Source,
		chunker:  ch,
		embedder: emb,
		cfg:      opts.Config,
		policy:   policy,
		filter:   KeywordFilter(opts.Config.TopicKeywords),
		matcher:  lexical.Matcher{MinScore: opts.Config.LexicalMinScore},
		progress: opts.Progress,
		log:      lg,
	}, nil
}

// Initialize builds the first snapshot. It returns an error only for a
// document that cannot be loaded or yields no chunks; a failed vector index
// build is logged and leaves the engine serving lexical results.
func (e *Engine) Initialize(ctx context.Context) error {
	if e.closed.Load() {
		return domain.ErrEngineClosed
	}
	return e.current(ctx).buildErr
}

// Shutdown stops the engine. Later queries return an empty result.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	e.log.Info("retrieval engine stopped")
	return nil
}

// Ready reports whether a snapshot with chunks is being served.
func (e *Engine) Ready() bool {
	s := e.snap.Load()
	return s != nil && s.buildErr == nil && !e.closed.Load()
}

// current returns the served snapshot, building it on first use. Concurrent
// first callers share a single build. A Rebuild that publishes while the first
// build runs wins; the first build is then discarded.
func (e *Engine) current(ctx context.Context) *snapshot {
	if s := e.snap.Load(); s != nil {
		return s
	}
	v, _, _ := e.group.Do("init", func() (any, error) {
		if s := e.snap.Load(); s != nil {
			return s, nil
		}
		// the build outlives the caller that happened to trigger it
		s := e.build(context.WithoutCancel(ctx))
		if !e.snap.CompareAndSwap(nil, s) {
			e.log.V(1).Info("first build superseded by rebuild")
			return e.snap.Load(), nil
		}
		e.setLastErr(errors.Join(s.buildErr, s.indexErr))
		return s, nil
	})
	return v.(*snapshot)
}

// Rebuild reloads the document and replaces the served snapshot atomically.
// Queries in flight finish against the old snapshot. If the new document
// cannot be chunked, or its index fails while the old one works, the old
// snapshot stays in place and the error is returned.
func (e *Engine) Rebuild(ctx context.Context) error {
	if e.closed.Load() {
		return domain.ErrEngineClosed
	}
	_, err, _ := e.group.Do("rebuild", func() (any, error) {
		s := e.build(ctx)
		e.setLastErr(errors.Join(s.buildErr, s.indexErr))
		if s.buildErr != nil {
			return nil, s.buildErr
		}
		old := e.snap.Load()
		if s.index == nil && old != nil && old.index != nil {
			return nil, s.indexErr
		}
		e.snap.Store(s)
		return nil, s.indexErr
	})
	return err
}

func (e *Engine) build(ctx context.Context) *snapshot {
	start := time.Now()
	s := &snapshot{builtAt: start}

	doc, err := e.source(ctx)
	if err != nil {
		s.buildErr = fmt.Errorf("load document: %w", err)
		e.log.Error(s.buildErr, "document unavailable")
		return s
	}
	chunks, err := e.chunker.Chunk(doc)
	if err != nil {
		s.buildErr = err
		e.log.Error(err, "chunking failed")
		return s
	}
	s.text = doc.Text
	s.chunks = chunks
	s.sections = sectionNames(chunks)

	if e.policy == domain.PolicyLexical {
		e.log.Info("document loaded", "chunks", len(chunks), "sections", len(s.sections), "index", "skipped")
		return s
	}
	ix, err := memory.Build(ctx, chunks, e.embedder, memory.BuildOptions{
		Concurrency: e.cfg.BuildConcurrency,
		Progress:    e.progress,
	})
	if err != nil {
		s.indexErr = err
		e.log.Error(err, "vector index unavailable, serving lexical results", "chunks", len(chunks))
		return s
	}
	s.index = ix
	e.log.Info("index built", "chunks", len(chunks), "sections", len(s.sections),
		"dimension", ix.Dimension(), "embedder", e.embedder.Name(), "elapsed", time.Since(start))
	return s
}

func (e *Engine) setLastErr(err error) {
	e.mu.Lock()
	e.lastErr = err
	e.mu.Unlock()
}

func sectionNames(chunks []domain.Chunk) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, c := range chunks {
		if _, ok := seen[c.Section]; ok {
			continue
		}
		seen[c.Section] = struct{}{}
		names = append(names, c.Section)
	}
	return names
}

// Retrieve answers one query. Failures never escape: an unavailable index,
// a provider error or timeout falls through to lexical search, and anything
// else yields an empty Context.
func (e *Engine) Retrieve(ctx context.Context, query string) (res Result) {
	start := time.Now()
	res.RequestID = uuid.NewString()
	lg := e.log.WithValues("request_id", res.RequestID)
	defer func() {
		res.Elapsed = time.Since(start)
		lg.Info("query served",
			"query", query,
			"strategy", res.Retrieval.Strategy.String(),
			"chunks", len(res.Retrieval.Chunks),
			"attributions", res.Context.Attributions,
			"context_length", len(res.Context.Text),
			"elapsed", res.Elapsed)
	}()

	if e.closed.Load() {
		lg.V(1).Info("engine closed")
		return res
	}
	s := e.current(ctx)
	if len(s.chunks) == 0 {
		return res
	}
	if !e.filter.Allows(query) {
		lg.V(1).Info("query rejected by topic filter")
		return res
	}

	if e.policy != domain.PolicyLexical {
		hits, err := e.vectorSearch(ctx, s, query)
		switch {
		case err != nil:
			lg.V(1).Info("vector search failed, using lexical search", "reason", err.Error())
		case len(hits) > 0 || e.policy == domain.PolicyVector:
			res.Retrieval = domain.RetrievalResult{Chunks: hits, Strategy: domain.StrategyVector}
			res.Context = assembler.Assemble(hits, e.cfg.MaxContextLength)
			return res
		default:
			lg.V(1).Info("no vector result above threshold, using lexical search", "threshold", e.cfg.ScoreThreshold)
		}
	}

	hits := e.matcher.Search(query, s.chunks, e.cfg.TopK)
	res.Retrieval = domain.RetrievalResult{Chunks: hits, Strategy: domain.StrategyLexical}
	res.Context = assembler.Assemble(hits, e.cfg.MaxContextLength)
	return res
}

// vectorSearch embeds the query once and keeps the top k hits at or above
// the score threshold.
func (e *Engine) vectorSearch(ctx context.Context, s *snapshot, query string) ([]domain.ScoredChunk, error) {
	if s.index == nil {
		return nil, domain.ErrIndexUnavailable
	}
	vec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.index.Search(vec, e.cfg.TopK)
	if err != nil {
		return nil, err
	}
	kept := hits[:0]
	for _, h := range hits {
		if h.Score >= e.cfg.ScoreThreshold {
			kept = append(kept, h)
		}
	}
	return kept, nil
}

// Stats reports on the served snapshot without triggering a build.
func (e *Engine) Stats() Stats {
	st := Stats{
		Strategy:         string(e.policy),
		TopK:             e.cfg.TopK,
		ScoreThreshold:   e.cfg.ScoreThreshold,
		MaxContextLength: e.cfg.MaxContextLength,
	}
	if e.embedder != nil {
		st.Embedder = e.embedder.Name()
	}
	e.mu.Lock()
	if e.lastErr != nil {
		st.LastBuildError = e.lastErr.Error()
	}
	e.mu.Unlock()
	s := e.snap.Load()
	if s == nil {
		return st
	}
	st.Chunks = len(s.chunks)
	st.Sections = len(s.sections)
	st.BuiltAt = s.builtAt
	if s.index != nil {
		st.IndexReady = true
		st.Dimension = s.index.Dimension()
	}
	return st
}

// Sections lists the section names of the served snapshot in document order.
func (e *Engine) Sections() []string {
	s := e.snap.Load()
	if s == nil {
		return nil
	}
	return append([]string(nil), s.sections...)
}

// Chunks returns the chunks of the served snapshot.
func (e *Engine) Chunks() []domain.Chunk {
	s := e.snap.Load()
	if s == nil {
		return nil
	}
	return append([]domain.Chunk(nil), s.chunks...)
}

// Section returns the text of the named section of the served snapshot. The
// name matches case-insensitively, first exactly and then when either name
// contains the other. A name used by several sections yields the first.
func (e *Engine) Section(name string) (string, bool) {
	s := e.snap.Load()
	want := strings.ToLower(strings.TrimSpace(name))
	if s == nil || want == "" {
		return "", false
	}
	match := ""
	for _, sec := range s.sections {
		if strings.ToLower(sec) == want {
			match = sec
			break
		}
	}
	if match == "" {
		for _, sec := range s.sections {
			l := strings.ToLower(sec)
			if strings.Contains(l, want) || strings.Contains(want, l) {
				match = sec
				break
			}
		}
	}
	if match == "" {
		return "", false
	}
	start, end := -1, 0
	for _, c := range s.chunks {
		if c.Section != match {
			if start >= 0 {
				break
			}
			continue
		}
		if start < 0 {
			start = c.StartOffset
		}
		end = max(end, c.EndOffset)
	}
	return strings.TrimSpace(s.text[start:end]), true
}
