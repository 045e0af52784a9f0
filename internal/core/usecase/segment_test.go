package usecase

import (
	"strings"
	"testing"

	"github.com/tylerursuy/ARMR/internal/core/domain"
)

func TestSegmentAllHeadersPresentCoversTextWithoutGaps(t *testing.T) {
	var b strings.Builder
	for i, phrase := range domain.SectionVocabulary {
		b.WriteString(strings.ToUpper(phrase))
		b.WriteString(" body ")
		b.WriteString(string(rune('a' + i)))
		b.WriteString(". ")
	}
	text := b.String()

	sections := NewSectionSegmenter(nil).Segment(text)
	if len(sections) != len(domain.SectionVocabulary) {
		t.Fatalf("expected %d sections, got %d", len(domain.SectionVocabulary), len(sections))
	}

	var concatenated strings.Builder
	for i, section := range sections {
		if section.Name != domain.SectionVocabulary[i] {
			t.Fatalf("section %d: expected name %q, got %q", i, domain.SectionVocabulary[i], section.Name)
		}
		if !section.Present {
			t.Fatalf("section %q expected present", section.Name)
		}
		concatenated.WriteString(section.Text)
		if i+1 < len(sections) {
			// The next header phrase sits between this section and the
			// next one; re-insert it to rebuild the original text.
			concatenated.WriteString(strings.ToUpper(domain.SectionVocabulary[i+1]))
		}
	}

	firstHeaderEnd := len(domain.SectionVocabulary[0])
	if got, want := concatenated.String(), text[firstHeaderEnd:]; got != want {
		t.Fatalf("concatenated sections diverge from input:\n got %q\nwant %q", got, want)
	}
}

func TestSegmentAbsentHeaderKeepsUnsetPlaceholder(t *testing.T) {
	sections := NewSectionSegmenter(nil).Segment("allergies penicillin. impression stable.")

	for _, section := range sections {
		switch section.Name {
		case "allergies":
			if !section.Present || section.Text != " penicillin. " {
				t.Fatalf("allergies section = %+v", section)
			}
		case "impression":
			if !section.Present || section.Text != " stable." {
				t.Fatalf("impression section = %+v", section)
			}
		default:
			if section.Present {
				t.Fatalf("section %q unexpectedly present", section.Name)
			}
			if section.Text != domain.UnsetSectionText {
				t.Fatalf("section %q text = %q, want unset placeholder", section.Name, section.Text)
			}
		}
	}
}

func TestSegmentDiscardsTextBeforeFirstHeader(t *testing.T) {
	sections := NewSectionSegmenter(nil).Segment("dictated by dr smith. allergies none known.")

	for _, section := range sections {
		if strings.Contains(section.Text, "dictated") {
			t.Fatalf("preamble leaked into section %q: %q", section.Name, section.Text)
		}
	}
}

func TestSegmentHeaderMatchIsCaseInsensitiveAgainstOriginalText(t *testing.T) {
	sections := NewSectionSegmenter(nil).Segment("Family History Mother With CHF. Social History denies tobacco.")

	family, social := sections[4], sections[5]
	if family.Text != " Mother With CHF. " {
		t.Fatalf("family history text = %q", family.Text)
	}
	if social.Text != " denies tobacco." {
		t.Fatalf("social history text = %q", social.Text)
	}
}

func TestSegmentSameOffsetTieKeepsEarlierVocabularyEntry(t *testing.T) {
	segmenter := NewSectionSegmenter([]string{"plan", "plan b"})
	sections := segmenter.Segment("plan b follow up in two weeks")

	if !sections[0].Present {
		t.Fatalf("expected earlier vocabulary entry to win the tie: %+v", sections)
	}
	if sections[1].Present {
		t.Fatalf("later vocabulary entry should lose the same-offset tie: %+v", sections[1])
	}
	if sections[0].Text != " b follow up in two weeks" {
		t.Fatalf("winning section text = %q", sections[0].Text)
	}
}

func TestSegmentOverlappingHeadersYieldEmptyEarlierSection(t *testing.T) {
	// "family history" ends inside "history of present illness"; the earlier
	// match must degrade to an empty body instead of slicing backwards.
	sections := NewSectionSegmenter(nil).Segment("family history of present illness patient reports chest pain")

	family, hopi := sections[4], sections[0]
	if !family.Present || family.Text != "" {
		t.Fatalf("family history section = %+v, want present with empty body", family)
	}
	if !hopi.Present || hopi.Text != " patient reports chest pain" {
		t.Fatalf("history of present illness section = %+v", hopi)
	}
}

func TestSegmentRepeatedHeaderKeepsLastOccurrence(t *testing.T) {
	sections := NewSectionSegmenter(nil).Segment("allergies none. allergies sulfa drugs.")

	if sections[7].Name != "allergies" {
		t.Fatalf("unexpected vocabulary order: %q", sections[7].Name)
	}
	if sections[7].Text != " sulfa drugs." {
		t.Fatalf("repeated header text = %q", sections[7].Text)
	}
}
