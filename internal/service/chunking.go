package service

import (
	"strings"

	"github.com/luminara-health/copilot/internal/domain"
)

// ChunkConfig controls chunking for knowledge embeddings.
type ChunkConfig struct {
	Size    int
	Overlap int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    1500,
		Overlap: 200,
	}
}

// Validate rejects parameter combinations before any chunking starts.
// Overlap must be strictly smaller than size or the cursor never advances.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return domain.ErrInvalidChunkParams
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return domain.ErrInvalidChunkParams
	}
	return nil
}

// Chunk is one segment of a source text, ordered by Index.
type Chunk struct {
	Index   int
	Content string
	Tokens  int
}

// ChunkText splits text into fixed-size segments where consecutive segments
// share exactly cfg.Overlap trailing/leading characters, except at the final
// boundary. Chunking the same text with the same parameters always yields the
// same sequence.
func ChunkText(text string, cfg ChunkConfig) ([]Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrMissingText
	}

	runes := []rune(text)
	chunks := make([]Chunk, 0, len(runes)/cfg.Size+1)

	i := 0
	index := 0
	for {
		end := i + cfg.Size
		if end > len(runes) {
			end = len(runes)
		}

		content := string(runes[i:end])
		chunks = append(chunks, Chunk{
			Index:   index,
			Content: content,
			Tokens:  estimateTokens(content),
		})
		index++

		if end == len(runes) {
			break
		}

		i = end - cfg.Overlap
		if i < 0 {
			i = 0
		}
	}

	return chunks, nil
}

// estimateTokens approximates a tokenizer count as ceil(runes/4). It can be
// off for non-Latin scripts; counting runes rather than bytes keeps the
// estimate from inflating on multibyte text.
func estimateTokens(s string) int {
	n := len([]rune(s))
	return (n + 3) / 4
}
