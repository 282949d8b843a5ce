package domain

// Document is a single source file loaded from the data directory.
// Immutable once loaded.
type Document struct {
	ID         string `json:"id"`
	SourcePath string `json:"source_path"`
	Extension  string `json:"extension"`
	Text       string `json:"-"`
}

// Chunk is a bounded text segment of a document, the unit of embedding
// and retrieval. Offsets are rune positions into the parent document text.
type Chunk struct {
	ID          string `json:"id"`
	DocumentID  string `json:"document_id"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}
