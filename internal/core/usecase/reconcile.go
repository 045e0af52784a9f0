package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
	"github.com/tylerursuy/ARMR/internal/core/ports"
)

// ReconciliationEngine turns reviewer-edited free text back into
// span-accurate annotation rows and commits them atomically together with the
// history record and the queue item deletion.
type ReconciliationEngine struct {
	queue   ports.QueueRepository
	reviews ports.ReviewStore
	now     func() time.Time
}

func NewReconciliationEngine(queue ports.QueueRepository, reviews ports.ReviewStore) *ReconciliationEngine {
	return &ReconciliationEngine{
		queue:   queue,
		reviews: reviews,
		now:     time.Now,
	}
}

// Commit reconciles one review submission. All rows share the item's
// transcription id and a single timestamp; either everything is persisted and
// the queue item removed, or nothing is.
func (e *ReconciliationEngine) Commit(ctx context.Context, ownerID string, review domain.ReviewSubmission) error {
	item, err := e.queue.GetByID(ctx, review.TranscriptionID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return domain.WrapError(domain.ErrReviewConflict, "load queue item", err)
		}
		return fmt.Errorf("load queue item: %w", err)
	}
	if item.OwnerID != ownerID {
		return domain.WrapError(domain.ErrNotFound, "load queue item", fmt.Errorf("transcript %s does not belong to owner", review.TranscriptionID))
	}
	if item.Content == nil {
		return domain.WrapError(domain.ErrReviewConflict, "load queue item", fmt.Errorf("transcript %s has not been processed yet", review.TranscriptionID))
	}

	edited := make(map[string]domain.SectionReview, len(review.Sections))
	for _, sr := range review.Sections {
		if _, ok := item.Content.SectionByName(sr.Name); !ok {
			return domain.WrapError(domain.ErrInvalidInput, "reconcile review", fmt.Errorf("unknown section %q", sr.Name))
		}
		edited[sr.Name] = sr
	}

	reviewedAt := e.now().UTC()
	var rows []domain.AnnotationRow
	var diseases, medications []string

	for _, section := range item.Content.Sections {
		sr, ok := edited[section.Name]
		if !ok {
			continue
		}
		source := strings.ToLower(section.Text)

		for _, line := range reviewLines(sr.Diseases) {
			diseases = append(diseases, line)
			rows = append(rows, buildRow(item, section.Name, source, line, line, domain.RowLabelDisease, reviewedAt))
		}
		for _, line := range reviewLines(sr.Medications) {
			medications = append(medications, line)
			// Dosage, unit and method on the edited line are reviewer
			// free text; only the drug name token is spanned.
			key := line
			if fields := strings.Fields(line); len(fields) > 0 {
				key = fields[0]
			}
			rows = append(rows, buildRow(item, section.Name, source, line, key, domain.RowLabelMedication, reviewedAt))
		}
	}

	record := domain.HistoryRecord{
		TranscriptionID: item.TranscriptionID,
		OwnerID:         item.OwnerID,
		MRN:             item.MRN,
		Filename:        item.Filename,
		Content:         *item.Content,
		Diseases:        diseases,
		Medications:     medications,
		ReviewedAt:      reviewedAt,
	}

	if err := e.reviews.CommitReview(ctx, rows, record); err != nil {
		return fmt.Errorf("commit review: %w", err)
	}
	return nil
}

// buildRow locates searchKey in the lowered section text with a first
// case-insensitive substring match. When the key is absent the row degrades
// to a synthetic self-referential span: the entity text becomes the source
// and the span covers all of it. Position information relative to the
// transcript is lost there.
func buildRow(item *domain.QueueItem, sectionName, source, entity, searchKey, label string, at time.Time) domain.AnnotationRow {
	row := domain.AnnotationRow{
		SubjectRecordID: item.OwnerID,
		MRN:             item.MRN,
		TranscriptionID: item.TranscriptionID,
		SectionName:     sectionName,
		Label:           label,
		CreatedAt:       at,
	}
	if idx := strings.Index(source, searchKey); idx >= 0 {
		row.SourceText = source
		row.EntityText = entity
		row.SpanStart = idx
		row.SpanEnd = idx + len(searchKey)
		return row
	}
	row.SourceText = entity
	row.EntityText = entity
	row.SpanStart = 0
	row.SpanEnd = len(entity)
	return row
}

// reviewLines splits an edited block on line breaks, trims trailing carriage
// returns, discards blanks and lower-cases each line.
func reviewLines(block string) []string {
	var out []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		out = append(out, strings.ToLower(line))
	}
	return out
}
