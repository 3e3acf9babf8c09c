package jobs

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ZeroChunkSourceRepository defines the interface for finding and removing
// sources left without chunks by a failed ingestion.
type ZeroChunkSourceRepository interface {
	ListZeroChunk(ctx context.Context, olderThan time.Time, limit int) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// SweeperBatchSize caps how many sources one sweep pass removes.
const SweeperBatchSize = 50

// Sweeper removes sources that still have zero chunks after MinAge. A source
// in that state means its ingestion failed after the source row was written;
// removing it lets the caller re-ingest cleanly.
type Sweeper struct {
	sources ZeroChunkSourceRepository
	minAge  time.Duration
}

// NewSweeper creates a new Sweeper instance
func NewSweeper(sources ZeroChunkSourceRepository, minAge time.Duration) *Sweeper {
	return &Sweeper{
		sources: sources,
		minAge:  minAge,
	}
}

// ProcessJobs implements the JobProcessor interface
func (s *Sweeper) ProcessJobs(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.minAge)

	ids, err := s.sources.ListZeroChunk(ctx, cutoff, SweeperBatchSize)
	if err != nil {
		return fmt.Errorf("failed to list zero-chunk sources: %w", err)
	}

	if len(ids) == 0 {
		return nil
	}

	var swept int
	for _, id := range ids {
		if err := s.sources.Delete(ctx, id); err != nil {
			log.Printf("Sweeper: failed to delete source %s: %v", id, err)
			continue
		}
		swept++
	}

	log.Printf("Sweeper: removed %d of %d zero-chunk sources", swept, len(ids))
	return nil
}
