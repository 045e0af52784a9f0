package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

func TestQueueRepositoryClaimReturnsFalseWhenAlreadyClaimed(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewQueueRepository(db)
	mock.ExpectExec("UPDATE queue_items").
		WithArgs("tr-1", string(domain.QueuePending), string(domain.QueueTranscribing), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	claimed, err := repo.Claim(context.Background(), "tr-1")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if claimed {
		t.Fatalf("expected claim to lose the race")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueueRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewQueueRepository(db)
	mock.ExpectQuery("FROM queue_items").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"transcription_id", "owner_id", "mrn", "filename", "status", "content", "submitted_at", "claimed_at"}))

	_, err = repo.GetByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueueRepositoryListPendingScansContent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewQueueRepository(db)
	content := []byte(`{"sections":[{"name":"allergies","text":"none","present":true,"diseases":[],"medications":[]}]}`)
	rows := sqlmock.NewRows([]string{"transcription_id", "owner_id", "mrn", "filename", "status", "content", "submitted_at", "claimed_at"}).
		AddRow("tr-1", "u-1", "1234567", "tr-1.wav", string(domain.QueuePending), nil, time.Now(), nil).
		AddRow("tr-2", "u-1", "1234567", "tr-2.wav", string(domain.QueueExtracted), content, time.Now(), nil)

	mock.ExpectQuery("FROM queue_items").
		WithArgs(string(domain.QueuePending)).
		WillReturnRows(rows)

	items, err := repo.ListPending(context.Background())
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Content != nil {
		t.Fatalf("pending item must have nil content")
	}
	if items[1].Content == nil || len(items[1].Content.Sections) != 1 {
		t.Fatalf("extracted item content not scanned: %+v", items[1].Content)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueueRepositoryReclaimStaleCountsReturnedItems(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewQueueRepository(db)
	cutoff := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec("UPDATE queue_items").
		WithArgs(cutoff, string(domain.QueueTranscribing), string(domain.QueuePending)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	reclaimed, err := repo.ReclaimStale(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("ReclaimStale() error = %v", err)
	}
	if reclaimed != 2 {
		t.Fatalf("expected 2 reclaimed items, got %d", reclaimed)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueueRepositorySetContentMissingItem(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewQueueRepository(db)
	mock.ExpectExec("UPDATE queue_items").
		WithArgs("missing", sqlmock.AnyArg(), string(domain.QueueExtracted)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.SetContent(context.Background(), "missing", domain.NoteResult{})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
