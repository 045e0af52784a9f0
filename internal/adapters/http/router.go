package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
	"github.com/tylerursuy/ARMR/internal/core/ports"
	"github.com/tylerursuy/ARMR/internal/observability/metrics"
)

const ownerIDHeader = "X-Owner-Id"

type Router struct {
	ingestor ports.TranscriptIngestor
	reviewer ports.ReviewCommitter
	reader   ports.TranscriptReader
	queue    ports.QueueRepository

	service string
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	ingestor ports.TranscriptIngestor,
	reviewer ports.ReviewCommitter,
	reader ports.TranscriptReader,
	queue ports.QueueRepository,
	service string,
	serverMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		ingestor: ingestor,
		reviewer: reviewer,
		reader:   reader,
		queue:    queue,
		service:  service,
		metrics:  serverMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/transcripts", rt.uploadTranscript)
	mux.HandleFunc("/v1/transcripts/pending", rt.listPending)
	mux.HandleFunc("/v1/transcripts/", rt.getTranscript)
	mux.HandleFunc("/v1/reviews", rt.commitReview)
	mux.HandleFunc("/v1/history", rt.listHistory)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	item, err := rt.ingestor.Upload(r.Context(), ownerID, r.FormValue("mrn"), fileHeader.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}

	if rt.metrics != nil {
		rt.metrics.RecordUpload(rt.service)
	}
	writeJSON(w, http.StatusAccepted, transcriptViewFromItem(item))
}

func (rt *Router) listPending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	items, err := rt.reader.ListPending(r.Context(), ownerID)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]transcriptView, 0, len(items))
	for i := range items {
		views = append(views, transcriptViewFromItem(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transcripts": views})
}

func (rt *Router) getTranscript(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/transcripts/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "transcription id is required"})
		return
	}

	item, err := rt.queue.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if item.OwnerID != ownerID {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "transcript not found"})
		return
	}
	writeJSON(w, http.StatusOK, transcriptViewFromItem(item))
}

func (rt *Router) commitReview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var submission domain.ReviewSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(submission.TranscriptionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "transcription_id is required"})
		return
	}

	err := rt.reviewer.Commit(r.Context(), ownerID, submission)
	if rt.metrics != nil {
		rt.metrics.RecordReview(rt.service, countReviewLines(submission), err)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) listHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	records, err := rt.reader.ListHistory(r.Context(), ownerID, r.URL.Query().Get("mrn"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

// transcriptView is the wire shape of a queue item. Extracted items carry the
// per-section editable seed blocks the review form is populated with.
type transcriptView struct {
	TranscriptionID string        `json:"transcription_id"`
	MRN             string        `json:"mrn"`
	Filename        string        `json:"filename"`
	Status          string        `json:"status"`
	SubmittedAt     time.Time     `json:"submitted_at"`
	Sections        []sectionView `json:"sections,omitempty"`
}

type sectionView struct {
	Name           string `json:"name"`
	Text           string `json:"text"`
	Present        bool   `json:"present"`
	DiseaseSeed    string `json:"disease_seed"`
	MedicationSeed string `json:"medication_seed"`
}

func transcriptViewFromItem(item *domain.QueueItem) transcriptView {
	view := transcriptView{
		TranscriptionID: item.TranscriptionID,
		MRN:             item.MRN,
		Filename:        item.Filename,
		Status:          string(item.Status),
		SubmittedAt:     item.SubmittedAt,
	}
	if item.Content == nil {
		return view
	}
	for _, section := range item.Content.Sections {
		view.Sections = append(view.Sections, sectionView{
			Name:           section.Name,
			Text:           section.Text,
			Present:        section.Present,
			DiseaseSeed:    section.DiseaseSeed(),
			MedicationSeed: section.MedicationSeed(),
		})
	}
	return view
}

func countReviewLines(submission domain.ReviewSubmission) int {
	count := 0
	for _, section := range submission.Sections {
		for _, block := range []string{section.Diseases, section.Medications} {
			for _, line := range strings.Split(block, "\n") {
				if strings.TrimSpace(line) != "" {
					count++
				}
			}
		}
	}
	return count
}

func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID := strings.TrimSpace(r.Header.Get(ownerIDHeader))
	if ownerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "X-Owner-Id header is required"})
		return "", false
	}
	return ownerID, true
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
