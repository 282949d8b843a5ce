package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/core/ports"
)

const (
	previewLimit = 150

	groundedPromptHeader = "Context information is below.\n---------------------\n"
	groundedPromptFooter = "---------------------\n" +
		"Given the context information and not prior knowledge, answer the query.\n" +
		"Query: %s\nAnswer: "
)

// QueryEngine answers a question against a built vector index, or sends
// it straight to the generation model in bypass mode. The engine itself
// is stateless; the pipeline owns the index and hands it in per call.
type QueryEngine struct {
	embedder    ports.Embedder
	generator   ports.Generator
	role        string
	temperature float64
	defaultTopK int
}

func NewQueryEngine(embedder ports.Embedder, generator ports.Generator, role string, temperature float64, defaultTopK int) *QueryEngine {
	if defaultTopK <= 0 {
		defaultTopK = 3
	}
	return &QueryEngine{
		embedder:    embedder,
		generator:   generator,
		role:        role,
		temperature: temperature,
		defaultTopK: defaultTopK,
	}
}

// Answer retrieves the topK most similar chunks, builds a grounded
// prompt from them and asks the generation model. A degraded query
// embedding means the embedding backend is unreachable; retrieval would
// rank nothing meaningfully, so the query fails instead of silently
// returning unrelated chunks.
func (e *QueryEngine) Answer(ctx context.Context, index ports.VectorIndex, question string, topK int) (*domain.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrQuery, "answer query", errors.New("empty question"))
	}
	if index == nil {
		return nil, domain.WrapError(domain.ErrQuery, "answer query", errors.New("no index available"))
	}
	if topK <= 0 {
		topK = e.defaultTopK
	}

	embedding, err := e.embedder.EmbedText(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if embedding.Degraded {
		return nil, domain.WrapError(domain.ErrConnectivity, "embed query", errors.New("embedding backend unavailable"))
	}

	scored, err := index.Search(embedding.Vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}

	prompt := groundedPrompt(scored, question)
	generated, err := e.generator.Generate(ctx, prompt, e.role, e.temperature)
	if err != nil {
		return nil, fmt.Errorf("generate grounded response: %w", err)
	}

	sources := make([]domain.SourceAttribution, 0, len(scored))
	for _, sc := range scored {
		sources = append(sources, domain.SourceAttribution{
			ChunkID:     sc.Chunk.ID,
			Score:       roundScore(sc.Score),
			TextPreview: truncatePreview(sc.Chunk.Text),
			FullText:    sc.Chunk.Text,
		})
	}

	return &domain.QueryResult{
		Response:   generated.Text,
		Query:      question,
		NumSources: len(sources),
		Sources:    sources,
		Usage:      generated,
	}, nil
}

// Bypass sends the question to the generation model without retrieval.
// It works in any pipeline state and returns no sources.
func (e *QueryEngine) Bypass(ctx context.Context, question string) (*domain.QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrQuery, "bypass query", errors.New("empty question"))
	}

	generated, err := e.generator.Generate(ctx, question, e.role, e.temperature)
	if err != nil {
		return nil, fmt.Errorf("generate bypass response: %w", err)
	}

	return &domain.QueryResult{
		Response:   generated.Text,
		Query:      question,
		NumSources: 0,
		Sources:    []domain.SourceAttribution{},
		Usage:      generated,
	}, nil
}

func groundedPrompt(scored []domain.ScoredChunk, question string) string {
	var b strings.Builder
	b.WriteString(groundedPromptHeader)
	for _, sc := range scored {
		b.WriteString(sc.Chunk.Text)
		b.WriteString("\n\n")
	}
	b.WriteString(fmt.Sprintf(groundedPromptFooter, question))
	return b.String()
}

func roundScore(score float64) float64 {
	return math.Round(score*10000) / 10000
}

func truncatePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit]) + "..."
}
