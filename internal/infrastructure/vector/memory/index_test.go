package memory

import (
	"fmt"
	"math"
	"testing"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

func chunk(id string) domain.Chunk {
	return domain.Chunk{ID: id, DocumentID: "doc-1", Text: "text " + id}
}

func emb(v ...float32) domain.Embedding {
	return domain.Embedding{Vector: v}
}

func TestBuildFailsOnEmptyChunks(t *testing.T) {
	_, err := NewBuilder(3).Build(nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestBuildFailsOnDimensionMismatch(t *testing.T) {
	_, err := NewBuilder(3).Build(
		[]domain.Chunk{chunk("a"), chunk("b")},
		[]domain.Embedding{emb(1, 0, 0), emb(1, 0)},
	)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestSearchRoundTripReturnsExactMatchFirst(t *testing.T) {
	idx, err := NewBuilder(3).Build(
		[]domain.Chunk{chunk("a"), chunk("b"), chunk("c")},
		[]domain.Embedding{emb(1, 0, 0), emb(0, 1, 0), emb(0, 0, 1)},
	)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	results, err := idx.Search([]float32{0, 1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Chunk.ID != "b" {
		t.Fatalf("expected chunk b first, got %s", results[0].Chunk.ID)
	}
	if math.Abs(results[0].Score-1.0) > 1e-9 {
		t.Fatalf("expected maximum similarity 1.0, got %v", results[0].Score)
	}
}

func TestSearchTopKLargerThanIndexReturnsAll(t *testing.T) {
	idx, err := NewBuilder(2).Build(
		[]domain.Chunk{chunk("a"), chunk("b")},
		[]domain.Embedding{emb(1, 0), emb(0, 1)},
	)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	results, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected all 2 chunks, got %d", len(results))
	}
}

func TestSearchRejectsInvalidTopK(t *testing.T) {
	idx, err := NewBuilder(2).Build([]domain.Chunk{chunk("a")}, []domain.Embedding{emb(1, 0)})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, err := idx.Search([]float32{1, 0}, 0); err == nil {
		t.Fatalf("expected error for top_k=0")
	}
}

func TestSearchTieBreakKeepsIngestionOrder(t *testing.T) {
	idx, err := NewBuilder(2).Build(
		[]domain.Chunk{chunk("a"), chunk("b"), chunk("c")},
		[]domain.Embedding{emb(1, 0), emb(1, 0), emb(0, 1)},
	)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	results, err := idx.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Chunk.ID != "a" || results[1].Chunk.ID != "b" {
		t.Fatalf("tie broke ingestion order: %s, %s", results[0].Chunk.ID, results[1].Chunk.ID)
	}
}

func TestSearchExcludesDegradedEmbeddings(t *testing.T) {
	idx, err := NewBuilder(2).Build(
		[]domain.Chunk{chunk("a"), chunk("b")},
		[]domain.Embedding{{Vector: []float32{1, 0}}, domain.ZeroEmbedding(2)},
	)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if idx.DegradedCount() != 1 {
		t.Fatalf("expected 1 degraded entry, got %d", idx.DegradedCount())
	}

	results, err := idx.Search([]float32{1, 0}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "a" {
		t.Fatalf("expected only chunk a, got %+v", results)
	}
}

func TestSearchRankingIndependentOfIngestionOrder(t *testing.T) {
	chunks := []domain.Chunk{chunk("a"), chunk("b"), chunk("c")}
	embs := []domain.Embedding{emb(0.9, 0.1), emb(0.1, 0.9), emb(0.7, 0.7)}

	forward, err := NewBuilder(2).Build(chunks, embs)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	reversed, err := NewBuilder(2).Build(
		[]domain.Chunk{chunks[2], chunks[1], chunks[0]},
		[]domain.Embedding{embs[2], embs[1], embs[0]},
	)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	query := []float32{1, 0}
	a, _ := forward.Search(query, 3)
	b, _ := reversed.Search(query, 3)
	for i := range a {
		if a[i].Chunk.ID != b[i].Chunk.ID {
			t.Fatalf("ranking differs at %d: %s vs %s", i, a[i].Chunk.ID, b[i].Chunk.ID)
		}
		if diff := math.Abs(a[i].Score - b[i].Score); diff > 1e-12 {
			t.Fatalf("scores differ at %d: %v", i, diff)
		}
	}
}

func TestCosineSimilarityZeroNormGuard(t *testing.T) {
	if got := cosineSimilarity([]float32{0, 0}, []float32{1, 1}); got != 0 {
		t.Fatalf("expected 0 for zero-norm vector, got %v", got)
	}
}

func BenchmarkSearch(b *testing.B) {
	const n = 1000
	chunks := make([]domain.Chunk, n)
	embs := make([]domain.Embedding, n)
	for i := range chunks {
		chunks[i] = chunk(fmt.Sprintf("c-%d", i))
		embs[i] = emb(float32(i%17), float32(i%5), float32(i%3))
	}
	idx, err := NewBuilder(3).Build(chunks, embs)
	if err != nil {
		b.Fatalf("Build() error = %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := idx.Search([]float32{1, 2, 3}, 5); err != nil {
			b.Fatal(err)
		}
	}
}
