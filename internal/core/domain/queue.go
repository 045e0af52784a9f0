package domain

import "time"

type QueueStatus string

const (
	QueuePending      QueueStatus = "pending"
	QueueTranscribing QueueStatus = "transcribing"
	QueueExtracted    QueueStatus = "extracted"
)

// QueueItem is a transcript awaiting transcription/extraction or awaiting
// human review. Single-writer-per-field lifecycle: upload creates it with nil
// Content, the ingest worker sets Content exactly once, and the review commit
// deletes it.
type QueueItem struct {
	TranscriptionID string      `json:"transcription_id"`
	OwnerID         string      `json:"owner_id"`
	MRN             string      `json:"mrn"`
	Filename        string      `json:"filename"`
	Status          QueueStatus `json:"status"`
	Content         *NoteResult `json:"content,omitempty"`
	SubmittedAt     time.Time   `json:"submitted_at"`
	ClaimedAt       *time.Time  `json:"claimed_at,omitempty"`
}
