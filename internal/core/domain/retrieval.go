package domain

// QueryMode selects how an incoming question is answered.
type QueryMode string

const (
	// ModeGrounded retrieves document context before generation.
	ModeGrounded QueryMode = "grounded"
	// ModeBypass sends the question straight to the generation model.
	ModeBypass QueryMode = "bypass"
)

// ScoredChunk is a chunk with its similarity score against a query vector.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// SourceAttribution describes one retrieved chunk backing an answer.
// Score is rounded to 4 decimal places for presentation stability.
type SourceAttribution struct {
	ChunkID     string  `json:"chunk_id"`
	Score       float64 `json:"score"`
	TextPreview string  `json:"text_preview"`
	FullText    string  `json:"full_text"`
}

// GenerationResult is the parsed output of a generation call.
type GenerationResult struct {
	Text           string `json:"text"`
	PromptTokens   int    `json:"prompt_tokens"`
	ResponseTokens int    `json:"response_tokens"`
	TotalTokens    int    `json:"total_tokens"`
}

// QueryResult is the structured answer for a single query.
type QueryResult struct {
	Response   string              `json:"response"`
	Query      string              `json:"query"`
	NumSources int                 `json:"num_sources"`
	Sources    []SourceAttribution `json:"sources"`
	Usage      GenerationResult    `json:"usage"`
}
