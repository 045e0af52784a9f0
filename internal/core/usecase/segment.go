package usecase

import (
	"sort"
	"strings"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

// SectionSegmenter splits a raw transcript into the canonical section
// vocabulary. Header phrases are matched case-insensitively; each matched
// header owns the text from its own end up to the start of the next matched
// header. Text before the first header is discarded: headers delimit
// sections, not content.
type SectionSegmenter struct {
	vocabulary []string
}

func NewSectionSegmenter(vocabulary []string) *SectionSegmenter {
	if len(vocabulary) == 0 {
		vocabulary = domain.SectionVocabulary
	}
	return &SectionSegmenter{vocabulary: vocabulary}
}

type headerMatch struct {
	phrase string
	start  int
	end    int
}

// Segment returns one section per vocabulary entry, in vocabulary order.
// Entries whose header never occurs keep the unset placeholder.
func (s *SectionSegmenter) Segment(text string) []domain.Section {
	lowered := strings.ToLower(text)

	var matches []headerMatch
	seenStart := make(map[int]bool)
	for _, phrase := range s.vocabulary {
		needle := strings.ToLower(phrase)
		offset := 0
		for {
			idx := strings.Index(lowered[offset:], needle)
			if idx < 0 {
				break
			}
			start := offset + idx
			// Two phrases at the same offset: vocabulary order wins.
			if !seenStart[start] {
				seenStart[start] = true
				matches = append(matches, headerMatch{phrase: phrase, start: start, end: start + len(needle)})
			}
			offset = start + len(needle)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	byName := make(map[string]string, len(matches))
	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1].start
		}
		// Overlapping phrases, e.g. "family history of present illness"
		// matching both "family history" and "history of present illness":
		// the earlier header is swallowed by the next one and keeps an
		// empty body.
		if end < m.end {
			end = m.end
		}
		byName[m.phrase] = text[m.end:end]
	}

	sections := make([]domain.Section, 0, len(s.vocabulary))
	for _, phrase := range s.vocabulary {
		body, ok := byName[phrase]
		if !ok {
			sections = append(sections, domain.Section{Name: phrase, Text: domain.UnsetSectionText})
			continue
		}
		sections = append(sections, domain.Section{Name: phrase, Text: body, Present: true})
	}
	return sections
}
