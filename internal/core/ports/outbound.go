package ports

import (
	"context"
	"io"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

// QueueRepository persists and reads queue item state. Claim/Release
// implement the compare-and-set lease that keeps two workers off the same
// item.
type QueueRepository interface {
	Enqueue(ctx context.Context, item *domain.QueueItem) error
	GetByID(ctx context.Context, transcriptionID string) (*domain.QueueItem, error)
	// ListPending returns unprocessed items oldest-first.
	ListPending(ctx context.Context) ([]domain.QueueItem, error)
	// ListByOwner returns an owner's queue items newest-first.
	ListByOwner(ctx context.Context, ownerID string) ([]domain.QueueItem, error)
	// Claim transitions pending -> transcribing; false when the item was
	// already claimed or gone.
	Claim(ctx context.Context, transcriptionID string) (bool, error)
	// Release transitions transcribing -> pending after a failed attempt.
	Release(ctx context.Context, transcriptionID string) error
	// SetContent writes the extraction result and transitions to extracted
	// in a single update.
	SetContent(ctx context.Context, transcriptionID string, content domain.NoteResult) error
	// ReclaimStale returns transcribing items claimed before cutoff to
	// pending. Covers workers that died between Claim and SetContent.
	ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReviewStore commits one review atomically: annotation rows plus history
// record inserted and the queue item deleted, all or nothing.
type ReviewStore interface {
	CommitReview(ctx context.Context, rows []domain.AnnotationRow, record domain.HistoryRecord) error
}

// AnnotationRepository reads accumulated ground-truth rows.
type AnnotationRepository interface {
	ListSince(ctx context.Context, since time.Time) ([]domain.AnnotationRow, error)
}

// HistoryRepository reads the review audit trail.
type HistoryRepository interface {
	ListByOwner(ctx context.Context, ownerID, mrn string) ([]domain.HistoryRecord, error)
}

// VersionRegistry tracks published model versions and which one is active.
type VersionRegistry interface {
	// AcquireRetrainLock serializes retraining runs; the returned release
	// func must be called exactly once.
	AcquireRetrainLock(ctx context.Context) (release func(), err error)
	// Active returns the currently servable version, or nil when none has
	// been published yet.
	Active(ctx context.Context) (*domain.ModelVersion, error)
	// Activate records a new version and flips the active pointer to it in
	// one transaction.
	Activate(ctx context.Context, version domain.ModelVersion) error
	SetRemoteRef(ctx context.Context, version, remoteRef string) error
}

// AudioStore keeps uploaded recordings until the worker consumes them.
type AudioStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Remove(ctx context.Context, key string) error
}

// Transcriber converts a recorded audio stream to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader) (string, error)
}

// Recognizer is the pluggable recognition capability: labeled entity spans
// plus token boundaries for one text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) (*domain.Recognition, error)
}

// ModelTrainer drives incremental model updates and exports trained weights.
type ModelTrainer interface {
	// Update applies one training batch with the given dropout ratio and
	// returns the batch loss.
	Update(ctx context.Context, batch []domain.TrainingExample, dropout float64) (float64, error)
	// Export streams the current trained weights archive.
	Export(ctx context.Context) (io.ReadCloser, error)
}

// ModelArtifactWriter manages versioned artifact directories on disk.
type ModelArtifactWriter interface {
	// WriteVersion materializes a new artifact directory for version and
	// returns its path. The write is all-or-nothing.
	WriteVersion(ctx context.Context, version string, weights io.Reader) (string, error)
	RemoveVersion(ctx context.Context, version string) error
	// Package builds a distributable archive for version and returns its
	// local path.
	Package(ctx context.Context, version string) (string, error)
}

// ArtifactStore pushes a packaged artifact to remote storage.
type ArtifactStore interface {
	Push(ctx context.Context, localPath string) (string, error)
}

// ReloadSignaler broadcasts model version activations to running services.
type ReloadSignaler interface {
	PublishModelReloaded(ctx context.Context, version string) error
	SubscribeModelReloaded(ctx context.Context, handler func(context.Context, string) error) error
}
