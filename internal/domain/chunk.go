package domain

import "time"

// KnowledgeChunk represents an embedded segment of a knowledge source.
// Chunks are append-only: a source's full chunk set is written in a single
// ingestion pass and never edited afterwards. ChunkIndex is zero-based and
// gap-free within a source.
//
// Tokens is a character-based estimate (ceil of rune count / 4), not an
// exact tokenizer count.
type KnowledgeChunk struct {
	ID         string
	SourceID   string
	ChunkIndex int
	Content    string
	Tokens     int
	Embedding  []float32
	Metadata   map[string]string
	CreatedAt  time.Time
}
