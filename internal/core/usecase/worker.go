package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
	"github.com/tylerursuy/ARMR/internal/core/ports"
)

// WorkerObserver receives per-item processing signals for metrics.
type WorkerObserver interface {
	StartItem()
	FinishItem(duration time.Duration, err error)
	ObserveQueueLag(lag time.Duration)
}

// IngestQueueWorker drains pending queue items on each tick: claim,
// transcribe, segment, extract, write the result once. Items are processed in
// submission order and failures are isolated per item; a failed item is
// released back to pending for the next tick.
type IngestQueueWorker struct {
	queue       ports.QueueRepository
	audio       ports.AudioStore
	transcriber ports.Transcriber
	segmenter   *SectionSegmenter
	extractor   *EntityExtractor

	itemTimeout time.Duration
	observer    WorkerObserver
	logger      *slog.Logger
	now         func() time.Time
}

func NewIngestQueueWorker(
	queue ports.QueueRepository,
	audio ports.AudioStore,
	transcriber ports.Transcriber,
	segmenter *SectionSegmenter,
	extractor *EntityExtractor,
	itemTimeout time.Duration,
	observer WorkerObserver,
	logger *slog.Logger,
) *IngestQueueWorker {
	if itemTimeout <= 0 {
		itemTimeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestQueueWorker{
		queue:       queue,
		audio:       audio,
		transcriber: transcriber,
		segmenter:   segmenter,
		extractor:   extractor,
		itemTimeout: itemTimeout,
		observer:    observer,
		logger:      logger,
		now:         time.Now,
	}
}

// Tick processes every currently pending item, oldest first. It returns an
// error only when the queue itself cannot be read or the context ends;
// per-item failures are logged and deferred. Stale claims left by a crashed
// worker are returned to pending first so they re-enter the scan.
func (w *IngestQueueWorker) Tick(ctx context.Context) error {
	cutoff := w.now().UTC().Add(-2 * w.itemTimeout)
	if reclaimed, err := w.queue.ReclaimStale(ctx, cutoff); err != nil {
		w.logger.Error("stale_reclaim_failed", "error", err)
	} else if reclaimed > 0 {
		w.logger.Info("stale_claims_reclaimed", "count", reclaimed)
	}

	items, err := w.queue.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("list pending items: %w", err)
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		item := items[i]

		claimed, err := w.queue.Claim(ctx, item.TranscriptionID)
		if err != nil {
			w.logger.Error("claim_failed", "transcription_id", item.TranscriptionID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		start := w.now()
		if w.observer != nil {
			w.observer.StartItem()
			w.observer.ObserveQueueLag(start.Sub(item.SubmittedAt))
		}

		itemCtx, cancel := context.WithTimeout(ctx, w.itemTimeout)
		err = w.processItem(itemCtx, &item)
		cancel()

		if w.observer != nil {
			w.observer.FinishItem(w.now().Sub(start), err)
		}
		if err != nil {
			w.logger.Warn("item_deferred",
				"transcription_id", item.TranscriptionID,
				"error", err,
			)
			w.releaseItem(item.TranscriptionID)
			continue
		}
		w.logger.Info("item_processed", "transcription_id", item.TranscriptionID)
	}
	return nil
}

// releaseItem runs on a detached context: shutdown cancels the tick context
// mid-item, and a release that fails there would strand the claim in
// transcribing until the stale-claim cutoff.
func (w *IngestQueueWorker) releaseItem(transcriptionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := w.queue.Release(ctx, transcriptionID); err != nil {
		w.logger.Error("release_failed", "transcription_id", transcriptionID, "error", err)
	}
}

func (w *IngestQueueWorker) processItem(ctx context.Context, item *domain.QueueItem) error {
	exists, err := w.audio.Exists(ctx, item.Filename)
	if err != nil {
		return fmt.Errorf("stat audio %s: %w", item.Filename, err)
	}
	if !exists {
		// Already consumed or lost; the item stays pending.
		return fmt.Errorf("audio artifact %s not found", item.Filename)
	}

	audio, err := w.audio.Open(ctx, item.Filename)
	if err != nil {
		return fmt.Errorf("open audio %s: %w", item.Filename, err)
	}
	text, err := w.transcriber.Transcribe(ctx, audio)
	_ = audio.Close()
	if err != nil {
		if domain.IsKind(err, domain.ErrTranscriptionFailure) {
			return err
		}
		return domain.WrapError(domain.ErrTranscriptionFailure, "transcribe audio", err)
	}

	sections := w.segmenter.Segment(text)
	result := domain.NoteResult{Sections: make([]domain.SectionResult, 0, len(sections))}
	for _, section := range sections {
		sr := domain.SectionResult{
			Name:        section.Name,
			Text:        section.Text,
			Present:     section.Present,
			Diseases:    []domain.Disease{},
			Medications: []domain.Medication{},
		}
		if section.Present {
			diseases, medications, err := w.extractor.Extract(ctx, section.Text)
			if err != nil {
				return fmt.Errorf("extract section %q: %w", section.Name, err)
			}
			sr.Diseases = diseases
			sr.Medications = medications
		}
		result.Sections = append(result.Sections, sr)
	}

	if err := w.queue.SetContent(ctx, item.TranscriptionID, result); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	if err := w.audio.Remove(ctx, item.Filename); err != nil {
		w.logger.Warn("audio_cleanup_failed", "filename", item.Filename, "error", err)
	}
	return nil
}
