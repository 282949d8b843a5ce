package memory

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/core/ports"
)

type entry struct {
	chunk    domain.Chunk
	vector   []float32
	degraded bool
}

// Index is an exact nearest-neighbor index over chunk embeddings using
// cosine similarity. Append-only during Build, read-only afterwards;
// rebuilding means constructing a new Index.
type Index struct {
	dimension int
	entries   []entry
	degraded  int
}

// Builder constructs indexes with a fixed dimension taken from the
// active embedding model.
type Builder struct {
	dimension int
}

func NewBuilder(dimension int) *Builder {
	return &Builder{dimension: dimension}
}

func (b *Builder) Build(chunks []domain.Chunk, embeddings []domain.Embedding) (ports.VectorIndex, error) {
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrNoData, "build index", errors.New("no chunks to index"))
	}
	if len(chunks) != len(embeddings) {
		return nil, domain.WrapError(
			domain.ErrConfiguration,
			"build index",
			fmt.Errorf("chunks/embeddings mismatch: %d/%d", len(chunks), len(embeddings)),
		)
	}

	idx := &Index{dimension: b.dimension, entries: make([]entry, 0, len(chunks))}
	for i, emb := range embeddings {
		if len(emb.Vector) != b.dimension {
			return nil, domain.WrapError(
				domain.ErrConfiguration,
				"build index",
				fmt.Errorf("embedding dimension %d disagrees with index dimension %d", len(emb.Vector), b.dimension),
			)
		}
		if emb.Degraded {
			idx.degraded++
		}
		idx.entries = append(idx.entries, entry{
			chunk:    chunks[i],
			vector:   emb.Vector,
			degraded: emb.Degraded,
		})
	}
	return idx, nil
}

// Search returns up to topK chunks ranked by cosine similarity against
// the query vector. Ties keep ingestion order. Degraded entries are
// excluded from ranking so fallback embeddings cannot pollute results.
func (idx *Index) Search(vector []float32, topK int) ([]domain.ScoredChunk, error) {
	if topK < 1 {
		return nil, domain.WrapError(domain.ErrQuery, "search index", fmt.Errorf("top_k must be >= 1, got %d", topK))
	}
	if len(vector) != idx.dimension {
		return nil, domain.WrapError(
			domain.ErrQuery,
			"search index",
			fmt.Errorf("query vector dimension %d disagrees with index dimension %d", len(vector), idx.dimension),
		)
	}

	scored := make([]domain.ScoredChunk, 0, len(idx.entries))
	for _, e := range idx.entries {
		if e.degraded {
			continue
		}
		scored = append(scored, domain.ScoredChunk{
			Chunk: e.chunk,
			Score: cosineSimilarity(vector, e.vector),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

func (idx *Index) Size() int { return len(idx.entries) }

func (idx *Index) DegradedCount() int { return idx.degraded }

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
