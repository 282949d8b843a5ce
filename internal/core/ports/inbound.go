package ports

import (
	"context"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

// QueryRequest is what the chat/UI boundary passes into the core.
type QueryRequest struct {
	Question string
	Mode     domain.QueryMode
	TopK     int
}

// QueryService is the inbound contract for answering questions, grounded
// or bypass.
type QueryService interface {
	Query(ctx context.Context, req QueryRequest) (*domain.QueryResult, error)
}

// PipelineRunner is the inbound contract for ingestion orchestration.
type PipelineRunner interface {
	Run(ctx context.Context) error
	Status() domain.PipelineStatus
}
