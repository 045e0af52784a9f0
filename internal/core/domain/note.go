package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SectionVocabulary is the fixed, ordered set of canonical section headers a
// clinical transcript is segmented by. Order matters: it is both the display
// order of a note and the tie-breaker when two headers match at the same
// offset (earlier entry wins).
var SectionVocabulary = []string{
	"history of present illness",
	"past medical and surgical history",
	"past medical history",
	"review of systems",
	"family history",
	"social history",
	"medications prior to admission",
	"allergies",
	"physical examination",
	"electrocardiogram",
	"impression",
	"recommendations",
}

// UnsetSectionText marks a vocabulary section whose header never occurred in
// the transcript.
const UnsetSectionText = "None"

// Entity labels used on recognizer spans and tokens.
const (
	LabelDisease  = "DISEASE"
	LabelChemical = "CHEMICAL"
)

// Section is a named contiguous span of the original transcript, delimited by
// recognized header phrases.
type Section struct {
	Name    string `json:"name"`
	Text    string `json:"text"`
	Present bool   `json:"present"`
}

// Disease is an unreviewed disease mention extracted from a section.
type Disease struct {
	Name string `json:"name"`
}

// Medication is an unreviewed medication record assembled from adjacent
// recognizer tokens. Amount, unit and method are absent for a bare drug-name
// match; method is nil when the captured token was sentence punctuation.
type Medication struct {
	Name   string  `json:"name"`
	Amount *string `json:"amount"`
	Unit   *string `json:"unit"`
	Method *string `json:"method"`
}

// SectionResult is one section of a processed note together with its
// candidate entities.
type SectionResult struct {
	Name        string       `json:"name"`
	Text        string       `json:"text"`
	Present     bool         `json:"present"`
	Diseases    []Disease    `json:"diseases"`
	Medications []Medication `json:"medications"`
}

// NoteResult is the full structured output of one pipeline run, stored as the
// queue item content and shown to the reviewer. Sections keep vocabulary
// order.
type NoteResult struct {
	Sections []SectionResult `json:"sections"`
}

// SectionByName returns the section with the given canonical name.
func (n *NoteResult) SectionByName(name string) (SectionResult, bool) {
	for _, s := range n.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return SectionResult{}, false
}

// DiseaseSeed renders the section's extracted diseases as the editable
// one-name-per-line block that seeds the review form.
func (s SectionResult) DiseaseSeed() string {
	var b strings.Builder
	for _, d := range s.Diseases {
		b.WriteString(titleCase(d.Name))
		b.WriteByte('\n')
	}
	return b.String()
}

// MedicationSeed renders the section's extracted medications as editable
// "Name amount unit method" lines.
func (s SectionResult) MedicationSeed() string {
	var b strings.Builder
	for _, m := range s.Medications {
		b.WriteString(titleCase(m.Name))
		for _, part := range []*string{m.Amount, m.Unit, m.Method} {
			if part != nil && *part != "" {
				b.WriteByte(' ')
				b.WriteString(*part)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// Token is one recognizer token with character offsets into the analyzed
// text. Label carries the entity type when the token is part of a labeled
// span, otherwise it is empty.
type Token struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label,omitempty"`
}

// EntitySpan is one labeled span returned by the recognition capability.
type EntitySpan struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// Recognition is the recognizer output for one text: labeled entity spans in
// document order plus the token boundaries the medication assembler scans.
type Recognition struct {
	Entities []EntitySpan `json:"entities"`
	Tokens   []Token      `json:"tokens"`
}
