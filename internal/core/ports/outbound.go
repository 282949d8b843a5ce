package ports

import (
	"context"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

// DocumentSource loads documents from wherever they live; the core only
// sees extracted plain text and stable per-document paths.
type DocumentSource interface {
	Load(ctx context.Context) ([]domain.Document, error)
}

// Chunker splits a document into overlapping retrieval-sized segments.
type Chunker interface {
	Split(doc domain.Document) ([]domain.Chunk, error)
}

// Embedder builds vectors for chunks and query text. EmbedAll may run
// concurrently across chunks but must yield vectors identical to the
// sequential path for the same inputs.
type Embedder interface {
	EmbedText(ctx context.Context, text string) (domain.Embedding, error)
	EmbedAll(ctx context.Context, texts []string) ([]domain.Embedding, error)
	Model() domain.EmbeddingModel
}

// VectorIndex answers nearest-neighbor queries over a built index.
// Read-only after build.
type VectorIndex interface {
	Search(vector []float32, topK int) ([]domain.ScoredChunk, error)
	Size() int
	DegradedCount() int
}

// IndexBuilder constructs an immutable VectorIndex from chunks and their
// embeddings. Rebuilding means discarding and building from scratch.
type IndexBuilder interface {
	Build(chunks []domain.Chunk, embeddings []domain.Embedding) (VectorIndex, error)
}

// Generator invokes the text-generation model with a role instruction and
// user prompt. Mode-agnostic: the caller decides whether the prompt carries
// retrieved context.
type Generator interface {
	Generate(ctx context.Context, prompt, role string, temperature float64) (domain.GenerationResult, error)
}

// DocumentCatalog records ingested documents for auditing. Catalog errors
// must not fail the pipeline.
type DocumentCatalog interface {
	RecordDocument(ctx context.Context, doc domain.Document, chunkCount, degradedCount int) error
	MarkFailed(ctx context.Context, doc domain.Document, reason string) error
}

// ReindexQueue publishes and consumes pipeline rebuild commands. The
// reason string identifies who requested the rebuild.
type ReindexQueue interface {
	PublishReindex(ctx context.Context, reason string) error
	SubscribeReindex(ctx context.Context, handler func(context.Context, string) error) error
}
