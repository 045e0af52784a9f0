package domain

import "testing"

func TestDiseaseSeedTitleCasesEachWord(t *testing.T) {
	section := SectionResult{
		Diseases: []Disease{{Name: "chronic heart failure"}, {Name: "diabetes"}},
	}
	if got, want := section.DiseaseSeed(), "Chronic Heart Failure\nDiabetes\n"; got != want {
		t.Fatalf("DiseaseSeed() = %q, want %q", got, want)
	}
}

func TestMedicationSeedUppercasesMultibyteInitial(t *testing.T) {
	amount, unit, method := "200", "mg", "oral"
	section := SectionResult{
		Medications: []Medication{{Name: "étodolac", Amount: &amount, Unit: &unit, Method: &method}},
	}
	if got, want := section.MedicationSeed(), "Étodolac 200 mg oral\n"; got != want {
		t.Fatalf("MedicationSeed() = %q, want %q", got, want)
	}
}

func TestMedicationSeedSkipsNilParts(t *testing.T) {
	section := SectionResult{
		Medications: []Medication{{Name: "metformin"}},
	}
	if got, want := section.MedicationSeed(), "Metformin\n"; got != want {
		t.Fatalf("MedicationSeed() = %q, want %q", got, want)
	}
}
