package usecase

import (
	"context"
	"fmt"

	"github.com/tylerursuy/ARMR/internal/core/domain"
	"github.com/tylerursuy/ARMR/internal/core/ports"
)

// TranscriptQueryService exposes the read-only listings: an owner's pending
// queue items by recency and their review history, optionally filtered by
// MRN.
type TranscriptQueryService struct {
	queue   ports.QueueRepository
	history ports.HistoryRepository
}

func NewTranscriptQueryService(queue ports.QueueRepository, history ports.HistoryRepository) *TranscriptQueryService {
	return &TranscriptQueryService{queue: queue, history: history}
}

func (s *TranscriptQueryService) ListPending(ctx context.Context, ownerID string) ([]domain.QueueItem, error) {
	items, err := s.queue.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list pending transcripts: %w", err)
	}
	return items, nil
}

func (s *TranscriptQueryService) ListHistory(ctx context.Context, ownerID, mrn string) ([]domain.HistoryRecord, error) {
	if mrn != "" && !mrnPattern.MatchString(mrn) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list history", fmt.Errorf("mrn filter must be exactly 7 digits"))
	}
	records, err := s.history.ListByOwner(ctx, ownerID, mrn)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}
