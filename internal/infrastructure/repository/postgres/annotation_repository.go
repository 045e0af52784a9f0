package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

// AnnotationRepository persists reviewed annotation rows and implements the
// atomic review commit: rows plus history inserted and the queue item removed
// in one transaction.
type AnnotationRepository struct {
	db *sql.DB
}

func NewAnnotationRepository(db *sql.DB) *AnnotationRepository {
	return &AnnotationRepository{db: db}
}

func (r *AnnotationRepository) CommitReview(ctx context.Context, rows []domain.AnnotationRow, record domain.HistoryRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin review tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Deleting first doubles as the conflict check: a second submission for
	// the same transcript finds no row and aborts.
	result, err := tx.ExecContext(ctx, `
DELETE FROM queue_items WHERE transcription_id = $1
`, record.TranscriptionID)
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete queue item rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrReviewConflict, "commit review",
			fmt.Errorf("transcription %s already reviewed", record.TranscriptionID))
	}

	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
INSERT INTO annotations (subject_record_id, mrn, transcription_id, section_name, source_text, entity_text, span_start, span_end, label, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`, row.SubjectRecordID, row.MRN, row.TranscriptionID, row.SectionName, row.SourceText, row.EntityText, row.SpanStart, row.SpanEnd, row.Label, row.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert annotation row: %w", err)
		}
	}

	contentJSON, err := json.Marshal(record.Content)
	if err != nil {
		return fmt.Errorf("marshal history content: %w", err)
	}
	diseasesJSON, err := json.Marshal(emptyIfNil(record.Diseases))
	if err != nil {
		return fmt.Errorf("marshal history diseases: %w", err)
	}
	medicationsJSON, err := json.Marshal(emptyIfNil(record.Medications))
	if err != nil {
		return fmt.Errorf("marshal history medications: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO review_history (transcription_id, owner_id, mrn, filename, content, diseases, medications, reviewed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, record.TranscriptionID, record.OwnerID, record.MRN, record.Filename, contentJSON, diseasesJSON, medicationsJSON, record.ReviewedAt)
	if err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit review tx: %w", err)
	}
	return nil
}

func (r *AnnotationRepository) ListSince(ctx context.Context, since time.Time) ([]domain.AnnotationRow, error) {
	query, args, err := sq.
		Select("subject_record_id", "mrn", "transcription_id", "section_name", "source_text", "entity_text", "span_start", "span_end", "label", "created_at").
		From("annotations").
		Where(sq.GtOrEq{"created_at": since}).
		OrderBy("created_at ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build annotations query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	defer rows.Close()

	out := make([]domain.AnnotationRow, 0)
	for rows.Next() {
		var row domain.AnnotationRow
		err := rows.Scan(
			&row.SubjectRecordID,
			&row.MRN,
			&row.TranscriptionID,
			&row.SectionName,
			&row.SourceText,
			&row.EntityText,
			&row.SpanStart,
			&row.SpanEnd,
			&row.Label,
			&row.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan annotation row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return out, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
