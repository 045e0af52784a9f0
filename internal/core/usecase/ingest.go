package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tylerursuy/ARMR/internal/core/domain"
	"github.com/tylerursuy/ARMR/internal/core/ports"
)

var mrnPattern = regexp.MustCompile(`^[0-9]{7}$`)

// UploadTranscriptUseCase validates an uploaded recording, stores the audio
// and enqueues a pending queue item for the ingest worker.
type UploadTranscriptUseCase struct {
	queue ports.QueueRepository
	audio ports.AudioStore
	now   func() time.Time
}

func NewUploadTranscriptUseCase(queue ports.QueueRepository, audio ports.AudioStore) *UploadTranscriptUseCase {
	return &UploadTranscriptUseCase{
		queue: queue,
		audio: audio,
		now:   time.Now,
	}
}

func (uc *UploadTranscriptUseCase) Upload(
	ctx context.Context,
	ownerID, mrn, filename string,
	audio io.Reader,
) (*domain.QueueItem, error) {
	if !mrnPattern.MatchString(mrn) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("mrn must be exactly 7 digits"))
	}
	if strings.ToLower(filepath.Ext(filename)) != ".wav" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload", fmt.Errorf("file type must be .wav"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))

	if err := uc.audio.Save(ctx, storageKey, audio); err != nil {
		return nil, fmt.Errorf("save audio: %w", err)
	}

	item := &domain.QueueItem{
		TranscriptionID: id,
		OwnerID:         ownerID,
		MRN:             mrn,
		Filename:        storageKey,
		Status:          domain.QueuePending,
		SubmittedAt:     uc.now().UTC(),
	}
	if err := uc.queue.Enqueue(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue transcript: %w", err)
	}
	return item, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "recording.wav"
	}
	return base
}
