package domain

import "time"

// TranscriptSegment is a time-aligned slice of a transcript.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptRecord stores the full raw text of a source, at most one per
// source, written once at ingestion time.
type TranscriptRecord struct {
	ID        string
	SourceID  string
	Text      string
	Language  string
	Segments  []TranscriptSegment
	WordCount int
	CreatedAt time.Time
}
