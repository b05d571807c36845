package runes

import "testing"

func TestParseSpacedRuneRoundTrip(t *testing.T) {
	sr, err := ParseSpacedRune("UNCOMMON•GOODS")
	if err != nil {
		t.Fatal(err)
	}
	if got := sr.String(); got != "UNCOMMON•GOODS" {
		t.Errorf("round trip = %q, want UNCOMMON•GOODS", got)
	}
}

func TestParseSpacedRuneAcceptsDotAndDash(t *testing.T) {
	for _, s := range []string{"A.B", "A-B"} {
		sr, err := ParseSpacedRune(s)
		if err != nil {
			t.Fatalf("ParseSpacedRune(%q): %v", s, err)
		}
		if sr.Rune.String() != "AB" {
			t.Errorf("ParseSpacedRune(%q).Rune = %q, want AB", s, sr.Rune.String())
		}
	}
}

func TestParseSpacedRuneRejectsLeadingTrailingDoubleSpacers(t *testing.T) {
	for _, s := range []string{"•AB", "AB•", "A••B"} {
		if _, err := ParseSpacedRune(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestParseSpacedRuneNoSpacers(t *testing.T) {
	sr, err := ParseSpacedRune("ABC")
	if err != nil {
		t.Fatal(err)
	}
	if sr.Spacers != 0 {
		t.Errorf("expected no spacers, got %b", sr.Spacers)
	}
	if sr.String() != "ABC" {
		t.Errorf("String() = %q, want ABC", sr.String())
	}
}
