package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

func TestCommitReviewInsertsRowsAndHistoryInOneTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewAnnotationRepository(db)
	reviewedAt := time.Date(2024, 5, 8, 12, 0, 0, 0, time.UTC)
	rows := []domain.AnnotationRow{
		{
			SubjectRecordID: "u-1", MRN: "1234567", TranscriptionID: "tr-1",
			SectionName: "impression", SourceText: "patient has diabetes",
			EntityText: "diabetes", SpanStart: 12, SpanEnd: 20,
			Label: domain.RowLabelDisease, CreatedAt: reviewedAt,
		},
	}
	record := domain.HistoryRecord{
		TranscriptionID: "tr-1",
		OwnerID:         "u-1",
		MRN:             "1234567",
		Filename:        "tr-1.wav",
		Diseases:        []string{"diabetes"},
		ReviewedAt:      reviewedAt,
	}

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM queue_items").
		WithArgs("tr-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO annotations").
		WithArgs("u-1", "1234567", "tr-1", "impression", "patient has diabetes", "diabetes", 12, 20, domain.RowLabelDisease, reviewedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO review_history").
		WithArgs("tr-1", "u-1", "1234567", "tr-1.wav", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), reviewedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.CommitReview(context.Background(), rows, record); err != nil {
		t.Fatalf("CommitReview() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCommitReviewConflictsWhenQueueItemIsGone(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewAnnotationRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM queue_items").
		WithArgs("tr-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.CommitReview(context.Background(), nil, domain.HistoryRecord{TranscriptionID: "tr-1"})
	if !domain.IsKind(err, domain.ErrReviewConflict) {
		t.Fatalf("expected review conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListSinceReturnsRowsInCreationOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	repo := NewAnnotationRepository(db)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"subject_record_id", "mrn", "transcription_id", "section_name", "source_text", "entity_text", "span_start", "span_end", "label", "created_at"}).
		AddRow("u-1", "1234567", "tr-1", "impression", "patient has diabetes", "diabetes", 12, 20, domain.RowLabelDisease, since.Add(time.Hour)).
		AddRow("u-1", "1234567", "tr-1", "impression", "takes metformin", "metformin", 6, 15, domain.RowLabelMedication, since.Add(2*time.Hour))

	mock.ExpectQuery("FROM annotations").
		WithArgs(since).
		WillReturnRows(rows)

	got, err := repo.ListSince(context.Background(), since)
	if err != nil {
		t.Fatalf("ListSince() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].EntityText != "diabetes" || got[1].Label != domain.RowLabelMedication {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
