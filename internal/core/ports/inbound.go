package ports

import (
	"context"
	"io"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

// TranscriptIngestor is the inbound contract for recording upload intake.
type TranscriptIngestor interface {
	Upload(ctx context.Context, ownerID, mrn, filename string, audio io.Reader) (*domain.QueueItem, error)
}

// ReviewCommitter is the inbound contract for committing human corrections.
type ReviewCommitter interface {
	Commit(ctx context.Context, ownerID string, review domain.ReviewSubmission) error
}

// TranscriptReader is the inbound read model for pending and reviewed
// transcripts.
type TranscriptReader interface {
	ListPending(ctx context.Context, ownerID string) ([]domain.QueueItem, error)
	ListHistory(ctx context.Context, ownerID, mrn string) ([]domain.HistoryRecord, error)
}

// QueueProcessor drives one ingest tick over all pending queue items.
type QueueProcessor interface {
	Tick(ctx context.Context) error
}

// Retrainer runs one full retraining cycle and publishes a new model version.
type Retrainer interface {
	Run(ctx context.Context) (*domain.TrainingReport, error)
}
