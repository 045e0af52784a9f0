package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// ListByOwner returns an owner's reviewed transcripts newest-first. A
// non-empty mrn narrows the result to one patient.
func (r *HistoryRepository) ListByOwner(ctx context.Context, ownerID, mrn string) ([]domain.HistoryRecord, error) {
	builder := sq.
		Select("transcription_id", "owner_id", "mrn", "filename", "content", "diseases", "medications", "reviewed_at").
		From("review_history").
		Where(sq.Eq{"owner_id": ownerID}).
		OrderBy("reviewed_at DESC").
		PlaceholderFormat(sq.Dollar)
	if mrn != "" {
		builder = builder.Where(sq.Eq{"mrn": mrn})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build history query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HistoryRecord, 0)
	for rows.Next() {
		record, err := scanHistoryRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}

func scanHistoryRecord(rows *sql.Rows) (domain.HistoryRecord, error) {
	var record domain.HistoryRecord
	var contentRaw, diseasesRaw, medicationsRaw []byte
	err := rows.Scan(
		&record.TranscriptionID,
		&record.OwnerID,
		&record.MRN,
		&record.Filename,
		&contentRaw,
		&diseasesRaw,
		&medicationsRaw,
		&record.ReviewedAt,
	)
	if err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("scan history record: %w", err)
	}
	if err := json.Unmarshal(contentRaw, &record.Content); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("unmarshal history content: %w", err)
	}
	if err := json.Unmarshal(diseasesRaw, &record.Diseases); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("unmarshal history diseases: %w", err)
	}
	if err := json.Unmarshal(medicationsRaw, &record.Medications); err != nil {
		return domain.HistoryRecord{}, fmt.Errorf("unmarshal history medications: %w", err)
	}
	return record, nil
}
