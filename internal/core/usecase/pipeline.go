package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/core/ports"
)

// Pipeline orchestrates ingestion (load, chunk, embed, index) and routes
// queries. It is the single writer of pipeline state; queries read a
// consistent snapshot of state and index under a read lock, and a
// rebuild keeps the previous index serving until its replacement is
// built, so reindexing never dips grounded availability.
type Pipeline struct {
	source  ports.DocumentSource
	chunker ports.Chunker
	embed   ports.Embedder
	builder ports.IndexBuilder
	catalog ports.DocumentCatalog
	engine  *QueryEngine

	onRebuild func(state domain.PipelineState, took time.Duration)

	runMu sync.Mutex

	mu       sync.RWMutex
	state    domain.PipelineState
	index    ports.VectorIndex
	docs     int
	chunks   int
	degraded int
	lastErr  string
}

// PipelineOption configures optional pipeline collaborators.
type PipelineOption func(*Pipeline)

// WithCatalog attaches an ingestion audit catalog. Catalog failures are
// logged, never fatal.
func WithCatalog(catalog ports.DocumentCatalog) PipelineOption {
	return func(p *Pipeline) { p.catalog = catalog }
}

// WithRebuildObserver registers a callback invoked after every Run with
// the resulting state and elapsed time.
func WithRebuildObserver(fn func(domain.PipelineState, time.Duration)) PipelineOption {
	return func(p *Pipeline) { p.onRebuild = fn }
}

func NewPipeline(
	source ports.DocumentSource,
	chunker ports.Chunker,
	embedder ports.Embedder,
	builder ports.IndexBuilder,
	engine *QueryEngine,
	opts ...PipelineOption,
) *Pipeline {
	p := &Pipeline{
		source:  source,
		chunker: chunker,
		embed:   embedder,
		builder: builder,
		engine:  engine,
		state:   domain.StateUninitialized,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the full ingestion sequence. Concurrent calls serialize;
// the second caller rebuilds again after the first finishes. An empty
// data directory leaves the pipeline Uninitialized rather than Failed:
// bypass queries still work and a later reindex can succeed.
func (p *Pipeline) Run(ctx context.Context) error {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	started := time.Now()
	err := p.rebuild(ctx)
	if p.onRebuild != nil {
		p.onRebuild(p.Status().State, time.Since(started))
	}
	return err
}

func (p *Pipeline) rebuild(ctx context.Context) error {
	docs, err := p.source.Load(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrNoData) {
			p.setState(domain.StateUninitialized, 0, 0, 0, nil, "")
			slog.Warn("no documents found, pipeline stays uninitialized", "error", err)
			return err
		}
		p.fail("load documents", err)
		return err
	}
	p.setState(domain.StateDocumentsLoaded, len(docs), 0, 0, nil, "")
	slog.Info("documents loaded", "count", len(docs))

	var allChunks []domain.Chunk
	chunksPerDoc := make(map[string]int, len(docs))
	for _, doc := range docs {
		chunks, err := p.chunker.Split(doc)
		if err != nil {
			p.markDocFailed(ctx, doc, err)
			p.fail("split documents", fmt.Errorf("split %s: %w", doc.SourcePath, err))
			return err
		}
		chunksPerDoc[doc.ID] = len(chunks)
		allChunks = append(allChunks, chunks...)
	}
	if len(allChunks) == 0 {
		err := domain.WrapError(domain.ErrNoData, "split documents", errors.New("documents produced no chunks"))
		p.fail("split documents", err)
		return err
	}

	texts := make([]string, len(allChunks))
	for i, chunk := range allChunks {
		texts[i] = chunk.Text
	}
	embeddings, err := p.embed.EmbedAll(ctx, texts)
	if err != nil {
		p.fail("embed chunks", err)
		return err
	}

	degradedPerDoc := make(map[string]int)
	degraded := 0
	for i, emb := range embeddings {
		if emb.Degraded {
			degraded++
			degradedPerDoc[allChunks[i].DocumentID]++
		}
	}
	if degraded > 0 {
		slog.Warn("some chunks carry degraded embeddings and are excluded from retrieval",
			"degraded", degraded,
			"total", len(allChunks),
		)
	}

	index, err := p.builder.Build(allChunks, embeddings)
	if err != nil {
		p.fail("build index", err)
		return err
	}
	p.setState(domain.StateIndexed, len(docs), len(allChunks), degraded, index, "")
	slog.Info("index built", "chunks", len(allChunks), "degraded", degraded)

	p.setState(domain.StateReady, len(docs), len(allChunks), degraded, index, "")
	p.recordDocs(ctx, docs, chunksPerDoc, degradedPerDoc)
	slog.Info("pipeline ready", "documents", len(docs), "chunks", len(allChunks))
	return nil
}

// Query routes by mode. Grounded queries serve from the most recent
// built index: a rebuild in progress keeps the previous index live
// until the new one replaces it, and only a failed or emptied rebuild
// withdraws grounded answering. Bypass queries work in any state.
// Generation failures are isolated to the query: pipeline state never
// changes here.
func (p *Pipeline) Query(ctx context.Context, req ports.QueryRequest) (*domain.QueryResult, error) {
	switch req.Mode {
	case domain.ModeBypass:
		return p.engine.Bypass(ctx, req.Question)
	case domain.ModeGrounded, "":
		p.mu.RLock()
		state := p.state
		index := p.index
		p.mu.RUnlock()

		if index == nil {
			return nil, domain.WrapError(
				domain.ErrQuery,
				"grounded query",
				fmt.Errorf("pipeline is %s and has no index; load and index documents or use bypass mode", state),
			)
		}
		return p.engine.Answer(ctx, index, req.Question, req.TopK)
	default:
		return nil, domain.WrapError(domain.ErrQuery, "query", fmt.Errorf("unknown query mode %q", req.Mode))
	}
}

func (p *Pipeline) Status() domain.PipelineStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return domain.PipelineStatus{
		State:          p.state,
		Documents:      p.docs,
		Chunks:         p.chunks,
		DegradedChunks: p.degraded,
		Error:          p.lastErr,
	}
}

func (p *Pipeline) setState(state domain.PipelineState, docs, chunks, degraded int, index ports.VectorIndex, lastErr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
	p.docs = docs
	p.chunks = chunks
	p.degraded = degraded
	p.lastErr = lastErr
	if index != nil || state == domain.StateUninitialized || state == domain.StateFailed {
		p.index = index
	}
}

func (p *Pipeline) fail(stage string, err error) {
	slog.Error("pipeline failed", "stage", stage, "error", err)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = domain.StateFailed
	p.index = nil
	p.lastErr = err.Error()
}

func (p *Pipeline) recordDocs(ctx context.Context, docs []domain.Document, chunksPerDoc, degradedPerDoc map[string]int) {
	if p.catalog == nil {
		return
	}
	for _, doc := range docs {
		if err := p.catalog.RecordDocument(ctx, doc, chunksPerDoc[doc.ID], degradedPerDoc[doc.ID]); err != nil {
			slog.Warn("catalog record failed", "document", doc.SourcePath, "error", err)
		}
	}
}

func (p *Pipeline) markDocFailed(ctx context.Context, doc domain.Document, cause error) {
	if p.catalog == nil {
		return
	}
	if err := p.catalog.MarkFailed(ctx, doc, cause.Error()); err != nil {
		slog.Warn("catalog mark-failed failed", "document", doc.SourcePath, "error", err)
	}
}
