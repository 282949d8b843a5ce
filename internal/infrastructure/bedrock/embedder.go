package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"golang.org/x/sync/errgroup"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
	"github.com/mzwaMoj/bedrock-rag/internal/infrastructure/resilience"
)

const contentTypeJSON = "application/json"

// Embedder computes Titan embeddings through the Bedrock runtime.
//
// Connectivity failures that survive the retry policy are converted to a
// zero-vector degraded fallback so ingestion of surrounding chunks can
// proceed; every fallback emits a warning and the quality-degradation
// signal. Protocol mismatches (malformed responses) are fatal and never
// degraded.
type Embedder struct {
	api         InvokeAPI
	model       domain.EmbeddingModel
	executor    *resilience.Executor
	concurrency int
	onFallback  func(reason string)
}

func NewEmbedder(api InvokeAPI, model domain.EmbeddingModel, executor *resilience.Executor, concurrency int, onFallback func(string)) *Embedder {
	if concurrency <= 0 {
		concurrency = 1
	}
	if onFallback == nil {
		onFallback = func(string) {}
	}
	return &Embedder{
		api:         api,
		model:       model,
		executor:    executor,
		concurrency: concurrency,
		onFallback:  onFallback,
	}
}

func (e *Embedder) Model() domain.EmbeddingModel { return e.model }

type embedRequest struct {
	InputText  string `json:"inputText"`
	Dimensions int    `json:"dimensions,omitempty"`
	Normalize  *bool  `json:"normalize,omitempty"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// EmbedText embeds a single text. The returned embedding is Degraded when
// the backend stayed unreachable after retries.
func (e *Embedder) EmbedText(ctx context.Context, text string) (domain.Embedding, error) {
	if text == "" {
		return domain.Embedding{}, domain.WrapError(domain.ErrConfiguration, "embed text", errors.New("empty input text"))
	}

	vector, err := e.invoke(ctx, text)
	if err == nil {
		return domain.Embedding{Vector: vector}, nil
	}
	if errors.Is(err, context.Canceled) {
		return domain.Embedding{}, err
	}
	if !isConnectivity(err) {
		return domain.Embedding{}, err
	}

	slog.Warn("embedding fallback to zero vector",
		"model", e.model.ID,
		"text_preview", preview(text, 50),
		"error", err,
	)
	e.onFallback(e.model.ID)
	return domain.ZeroEmbedding(e.model.Dimension), nil
}

// EmbedAll embeds many texts concurrently, bounded by the configured
// concurrency limit. Output order matches input order and each vector is
// identical to what EmbedText would produce for the same text.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([]domain.Embedding, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			emb, err := e.EmbedText(gctx, text)
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", i, err)
			}
			out[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Embedder) invoke(ctx context.Context, text string) ([]float32, error) {
	reqBody := embedRequest{InputText: text}
	if e.model.SendDimensions {
		reqBody.Dimensions = e.model.Dimension
		reqBody.Normalize = aws.Bool(e.model.Normalize)
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	var vector []float32
	call := func(callCtx context.Context) error {
		resp, err := e.api.InvokeModel(callCtx, &bedrockruntime.InvokeModelInput{
			ModelId:     aws.String(e.model.ID),
			Body:        body,
			Accept:      aws.String(contentTypeJSON),
			ContentType: aws.String(contentTypeJSON),
		})
		if err != nil {
			return err
		}

		var parsed embedResponse
		if err := json.Unmarshal(resp.Body, &parsed); err != nil {
			return domain.WrapError(domain.ErrMalformedResponse, "decode embed response", err)
		}
		if len(parsed.Embedding) == 0 {
			return domain.WrapError(domain.ErrMalformedResponse, "decode embed response", errors.New("response has no embedding field"))
		}
		if len(parsed.Embedding) != e.model.Dimension {
			return domain.WrapError(
				domain.ErrMalformedResponse,
				"decode embed response",
				fmt.Errorf("embedding dimension %d, expected %d", len(parsed.Embedding), e.model.Dimension),
			)
		}
		vector = parsed.Embedding
		return nil
	}

	if err := e.executor.Execute(ctx, "bedrock.embed", call, classifyBedrockError); err != nil {
		return nil, wrapConnectivity("embed text", err)
	}
	return vector, nil
}

func preview(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
