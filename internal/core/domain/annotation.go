package domain

import "time"

// Row labels as persisted on annotations.
const (
	RowLabelDisease    = "disease"
	RowLabelMedication = "medication"
)

// AnnotationRow is one human-confirmed, span-accurate entity record. Rows are
// immutable once written; later corrections supersede with new rows. The
// invariant 0 <= SpanStart <= SpanEnd <= len(SourceText) always holds: when
// the reviewed entity is not found verbatim in the section text, SourceText
// is the entity text itself with a synthetic 0..len span.
type AnnotationRow struct {
	SubjectRecordID string    `json:"subject_record_id"`
	MRN             string    `json:"mrn"`
	TranscriptionID string    `json:"transcription_id"`
	SectionName     string    `json:"section_name"`
	SourceText      string    `json:"source_text"`
	EntityText      string    `json:"entity_text"`
	SpanStart       int       `json:"span_start"`
	SpanEnd         int       `json:"span_end"`
	Label           string    `json:"label"`
	CreatedAt       time.Time `json:"created_at"`
}

// SectionReview is the reviewer-edited free text for one section: one block
// of disease lines and one of medication lines.
type SectionReview struct {
	Name        string `json:"name"`
	Diseases    string `json:"diseases"`
	Medications string `json:"medications"`
}

// ReviewSubmission carries the human corrections for one pending transcript.
type ReviewSubmission struct {
	TranscriptionID string          `json:"transcription_id"`
	Sections        []SectionReview `json:"sections"`
}

// HistoryRecord is the append-only archival copy of a completed review. It is
// never mutated or deleted and doubles as the durable audit trail.
type HistoryRecord struct {
	TranscriptionID string     `json:"transcription_id"`
	OwnerID         string     `json:"owner_id"`
	MRN             string     `json:"mrn"`
	Filename        string     `json:"filename"`
	Content         NoteResult `json:"content"`
	Diseases        []string   `json:"diseases"`
	Medications     []string   `json:"medications"`
	ReviewedAt      time.Time  `json:"reviewed_at"`
}
