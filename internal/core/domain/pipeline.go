package domain

// PipelineState tracks ingestion progress. Transitions are strictly
// forward; any step failure moves the pipeline to StateFailed.
type PipelineState string

const (
	StateUninitialized   PipelineState = "uninitialized"
	StateDocumentsLoaded PipelineState = "documents_loaded"
	StateIndexed         PipelineState = "indexed"
	StateReady           PipelineState = "ready"
	StateFailed          PipelineState = "failed"
)

// PipelineStatus is a point-in-time snapshot of the pipeline.
type PipelineStatus struct {
	State          PipelineState `json:"state"`
	Documents      int           `json:"documents"`
	Chunks         int           `json:"chunks"`
	DegradedChunks int           `json:"degraded_chunks"`
	Error          string        `json:"error,omitempty"`
}
