package chunking

import (
	"errors"

	"github.com/google/uuid"

	"github.com/mzwaMoj/bedrock-rag/internal/core/domain"
)

// Splitter cuts document text into windows of at most ChunkSize runes,
// with consecutive windows sharing exactly Overlap runes. Output order
// follows document order so source previews stay reproducible.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Split(doc domain.Document) ([]domain.Chunk, error) {
	if s.ChunkSize <= 0 || s.Overlap < 0 || s.ChunkSize <= s.Overlap {
		return nil, domain.WrapError(
			domain.ErrConfiguration,
			"split document",
			errors.New("chunk size must be positive and greater than overlap"),
		)
	}

	runes := []rune(doc.Text)
	if len(runes) == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "split document", errors.New("empty document text"))
	}

	step := s.ChunkSize - s.Overlap
	out := make([]domain.Chunk, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, domain.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  doc.ID,
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})
		if end == len(runes) {
			break
		}
	}
	return out, nil
}
