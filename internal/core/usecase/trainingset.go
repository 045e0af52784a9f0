package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tylerursuy/ARMR/internal/core/domain"
	"github.com/tylerursuy/ARMR/internal/core/ports"
)

// TrainingSetBuilder converts annotation rows from the trailing window into
// labeled training examples, one per distinct source text.
type TrainingSetBuilder struct {
	annotations ports.AnnotationRepository
	window      time.Duration
	now         func() time.Time
}

func NewTrainingSetBuilder(annotations ports.AnnotationRepository, window time.Duration) *TrainingSetBuilder {
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	return &TrainingSetBuilder{
		annotations: annotations,
		window:      window,
		now:         time.Now,
	}
}

// Build groups window rows by exact source text and converts each row into a
// (start, end, label) triple, normalizing the medication label to the
// recognizer's chemical label. Rows whose span carries no position
// information (start+end == 0, the reconciliation fallback) are excluded, and
// identical triples within a text are de-duplicated.
func (b *TrainingSetBuilder) Build(ctx context.Context) ([]domain.TrainingExample, error) {
	since := b.now().UTC().Add(-b.window)
	rows, err := b.annotations.ListSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("list annotations since %s: %w", since.Format(time.RFC3339), err)
	}

	order := make([]string, 0)
	grouped := make(map[string][]domain.TrainingTriple)
	seen := make(map[string]map[domain.TrainingTriple]bool)

	for _, row := range rows {
		if _, ok := grouped[row.SourceText]; !ok {
			order = append(order, row.SourceText)
			grouped[row.SourceText] = []domain.TrainingTriple{}
			seen[row.SourceText] = make(map[domain.TrainingTriple]bool)
		}
		if row.SpanStart+row.SpanEnd == 0 {
			continue
		}
		triple := domain.TrainingTriple{
			Start: row.SpanStart,
			End:   row.SpanEnd,
			Label: normalizeLabel(row.Label),
		}
		if seen[row.SourceText][triple] {
			continue
		}
		seen[row.SourceText][triple] = true
		grouped[row.SourceText] = append(grouped[row.SourceText], triple)
	}

	examples := make([]domain.TrainingExample, 0, len(order))
	for _, text := range order {
		examples = append(examples, domain.TrainingExample{
			Text:     text,
			Entities: grouped[text],
		})
	}
	return examples, nil
}

func normalizeLabel(label string) string {
	upper := strings.ToUpper(label)
	if upper == "MEDICATION" {
		return domain.LabelChemical
	}
	return upper
}
