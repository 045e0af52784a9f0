package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

type QueueRepository struct {
	db *sql.DB
}

func NewQueueRepository(db *sql.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

func (r *QueueRepository) Enqueue(ctx context.Context, item *domain.QueueItem) error {
	content, err := marshalContent(item.Content)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO queue_items (transcription_id, owner_id, mrn, filename, status, content, submitted_at, claimed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, item.TranscriptionID, item.OwnerID, item.MRN, item.Filename, string(item.Status), content, item.SubmittedAt, item.ClaimedAt)
	if err != nil {
		return fmt.Errorf("enqueue item: %w", err)
	}
	return nil
}

func (r *QueueRepository) GetByID(ctx context.Context, transcriptionID string) (*domain.QueueItem, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT transcription_id, owner_id, mrn, filename, status, content, submitted_at, claimed_at
FROM queue_items
WHERE transcription_id = $1
`, transcriptionID)

	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get queue item", fmt.Errorf("transcription %s", transcriptionID))
		}
		return nil, fmt.Errorf("get queue item: %w", err)
	}
	return item, nil
}

func (r *QueueRepository) ListPending(ctx context.Context) ([]domain.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT transcription_id, owner_id, mrn, filename, status, content, submitted_at, claimed_at
FROM queue_items
WHERE status = $1
ORDER BY submitted_at ASC
`, string(domain.QueuePending))
	if err != nil {
		return nil, fmt.Errorf("list pending items: %w", err)
	}
	defer rows.Close()

	return collectQueueItems(rows)
}

func (r *QueueRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.QueueItem, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT transcription_id, owner_id, mrn, filename, status, content, submitted_at, claimed_at
FROM queue_items
WHERE owner_id = $1
ORDER BY submitted_at DESC
`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list owner items: %w", err)
	}
	defer rows.Close()

	return collectQueueItems(rows)
}

// Claim moves a pending item into transcribing. The status predicate makes
// the update a compare-and-set, so only one worker wins.
func (r *QueueRepository) Claim(ctx context.Context, transcriptionID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
UPDATE queue_items
SET status = $3, claimed_at = $4
WHERE transcription_id = $1 AND status = $2
`, transcriptionID, string(domain.QueuePending), string(domain.QueueTranscribing), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim item: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim item rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *QueueRepository) Release(ctx context.Context, transcriptionID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE queue_items
SET status = $3, claimed_at = NULL
WHERE transcription_id = $1 AND status = $2
`, transcriptionID, string(domain.QueueTranscribing), string(domain.QueuePending))
	if err != nil {
		return fmt.Errorf("release item: %w", err)
	}
	return nil
}

// ReclaimStale returns every transcribing item claimed before cutoff to
// pending. A claim can only go stale when its worker died mid-item, so the
// cutoff should sit well past the per-item processing timeout.
func (r *QueueRepository) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
UPDATE queue_items
SET status = $3, claimed_at = NULL
WHERE status = $2 AND claimed_at < $1
`, cutoff, string(domain.QueueTranscribing), string(domain.QueuePending))
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reclaim stale items rows affected: %w", err)
	}
	return affected, nil
}

func (r *QueueRepository) SetContent(ctx context.Context, transcriptionID string, content domain.NoteResult) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	result, err := r.db.ExecContext(ctx, `
UPDATE queue_items
SET content = $2, status = $3
WHERE transcription_id = $1
`, transcriptionID, payload, string(domain.QueueExtracted))
	if err != nil {
		return fmt.Errorf("set item content: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set item content rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "set item content", fmt.Errorf("transcription %s", transcriptionID))
	}
	return nil
}

type queueItemScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueItem(row queueItemScanner) (*domain.QueueItem, error) {
	var item domain.QueueItem
	var status string
	var contentRaw []byte
	err := row.Scan(
		&item.TranscriptionID,
		&item.OwnerID,
		&item.MRN,
		&item.Filename,
		&status,
		&contentRaw,
		&item.SubmittedAt,
		&item.ClaimedAt,
	)
	if err != nil {
		return nil, err
	}
	item.Status = domain.QueueStatus(status)
	if len(contentRaw) > 0 {
		var content domain.NoteResult
		if err := json.Unmarshal(contentRaw, &content); err != nil {
			return nil, fmt.Errorf("unmarshal content: %w", err)
		}
		item.Content = &content
	}
	return &item, nil
}

func collectQueueItems(rows *sql.Rows) ([]domain.QueueItem, error) {
	out := make([]domain.QueueItem, 0)
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return out, nil
}

func marshalContent(content *domain.NoteResult) ([]byte, error) {
	if content == nil {
		return nil, nil
	}
	payload, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("marshal content: %w", err)
	}
	return payload, nil
}
