package domain

import "fmt"

// EmbeddingModel describes a supported embedding model variant as data:
// its Bedrock model id, output dimension, and the request shape it accepts.
// Older Titan variants take raw text only; newer ones additionally accept
// an output dimension and a normalization flag.
type EmbeddingModel struct {
	ID             string
	Dimension      int
	SendDimensions bool
	Normalize      bool
}

var (
	EmbeddingModelTitanV1 = EmbeddingModel{
		ID:        "amazon.titan-embed-text-v1",
		Dimension: 1536,
	}
	EmbeddingModelTitanV2 = EmbeddingModel{
		ID:             "amazon.titan-embed-text-v2:0",
		Dimension:      1024,
		SendDimensions: true,
		Normalize:      true,
	}
)

// EmbeddingModelByID resolves a configured model identifier to a known
// variant. Selection happens once at configuration time.
func EmbeddingModelByID(id string) (EmbeddingModel, error) {
	switch id {
	case EmbeddingModelTitanV1.ID:
		return EmbeddingModelTitanV1, nil
	case EmbeddingModelTitanV2.ID:
		return EmbeddingModelTitanV2, nil
	default:
		return EmbeddingModel{}, WrapError(ErrConfiguration, "resolve embedding model", fmt.Errorf("unknown embedding model: %s", id))
	}
}

// Embedding is a fixed-length vector for a chunk or query string.
// Degraded marks the zero-vector fallback substituted when the provider
// failed after retries, so downstream layers can discount it instead of
// treating it as a real low-confidence embedding.
type Embedding struct {
	Vector   []float32
	Degraded bool
}

// ZeroEmbedding returns the degraded fallback for the given dimension.
func ZeroEmbedding(dimension int) Embedding {
	return Embedding{
		Vector:   make([]float32, dimension),
		Degraded: true,
	}
}
