package usecase

import (
	"context"
	"strconv"
	"strings"

	"github.com/tylerursuy/ARMR/internal/core/domain"
	"github.com/tylerursuy/ARMR/internal/core/ports"
)

// EntityExtractor runs the disease pass over recognizer spans and assembles
// medication records from the recognizer token stream.
type EntityExtractor struct {
	recognizer ports.Recognizer
}

func NewEntityExtractor(recognizer ports.Recognizer) *EntityExtractor {
	return &EntityExtractor{recognizer: recognizer}
}

// Extract returns the candidate diseases and medications for one section
// text, each in the order they occur. A recognizer failure fails the whole
// call; the caller must defer the item rather than record empty results.
func (e *EntityExtractor) Extract(ctx context.Context, text string) ([]domain.Disease, []domain.Medication, error) {
	rec, err := e.recognizer.Recognize(ctx, text)
	if err != nil {
		if domain.IsKind(err, domain.ErrRecognizerUnavailable) {
			return nil, nil, err
		}
		return nil, nil, domain.WrapError(domain.ErrRecognizerUnavailable, "recognize section", err)
	}

	diseases := make([]domain.Disease, 0)
	for _, span := range rec.Entities {
		if span.Label == domain.LabelDisease {
			diseases = append(diseases, domain.Disease{Name: span.Text})
		}
	}

	medications := assembleMedications(rec.Tokens)
	return diseases, medications, nil
}

// tokenMatch is a candidate medication pattern over token indices,
// half-open [start, end).
type tokenMatch struct {
	start int
	end   int
}

// assembleMedications scans for chemical-name tokens and matches three
// pattern shapes: chemical+number+"mg"+method, chemical+number+"mg", and a
// bare chemical. Matches sharing a start index are coalesced into the widest
// one.
func assembleMedications(tokens []domain.Token) []domain.Medication {
	var matches []tokenMatch
	for i, tok := range tokens {
		if tok.Label != domain.LabelChemical {
			continue
		}
		matches = append(matches, tokenMatch{start: i, end: i + 1})
		if i+2 < len(tokens) && likeNum(tokens[i+1].Text) && strings.ToLower(tokens[i+2].Text) == "mg" {
			matches = append(matches, tokenMatch{start: i, end: i + 3})
			if i+3 < len(tokens) {
				matches = append(matches, tokenMatch{start: i, end: i + 4})
			}
		}
	}
	if len(matches) == 0 {
		return []domain.Medication{}
	}

	medications := make([]domain.Medication, 0)
	flush := func(m tokenMatch) {
		med := parseMedication(tokens[m.start:m.end])
		// Abbreviation fragments are sometimes misread as drug names.
		if !strings.Contains(med.Name, ".") {
			medications = append(medications, med)
		}
	}

	last := matches[0]
	for _, m := range matches[1:] {
		if m.start != last.start {
			flush(last)
		}
		last = m
	}
	flush(last)
	return medications
}

func parseMedication(span []domain.Token) domain.Medication {
	if len(span) < 3 {
		return domain.Medication{Name: span[0].Text}
	}
	med := domain.Medication{
		Name:   span[0].Text,
		Amount: strPtr(span[1].Text),
		Unit:   strPtr(span[2].Text),
	}
	if len(span) == 4 && span[3].Text != "." {
		med.Method = strPtr(span[3].Text)
	}
	return med
}

func strPtr(s string) *string { return &s }

var numberWords = map[string]bool{
	"zero": true, "one": true, "two": true, "three": true, "four": true,
	"five": true, "six": true, "seven": true, "eight": true, "nine": true,
	"ten": true, "eleven": true, "twelve": true, "twenty": true,
	"thirty": true, "forty": true, "fifty": true, "hundred": true,
	"thousand": true,
}

// likeNum mirrors the recognizer's numeric-token test: digit strings with
// optional separators, or a spelled-out number word.
func likeNum(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	if t == "" {
		return false
	}
	if numberWords[t] {
		return true
	}
	t = strings.ReplaceAll(t, ",", "")
	if _, err := strconv.ParseFloat(t, 64); err == nil {
		return true
	}
	if num, den, ok := strings.Cut(t, "/"); ok {
		return isDigits(num) && isDigits(den)
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
