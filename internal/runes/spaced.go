package runes

import (
	"fmt"
	"strings"
)

// SpacedRune pairs a Rune with a spacer bitfield: bit i set means a spacer
// ("•") is rendered between the i-th and (i+1)-th letter of the name, purely
// cosmetic and never part of the value used for comparisons or commitments.
type SpacedRune struct {
	Rune    Rune
	Spacers uint32
}

// ParseSpacedRune parses a name that may contain spacer characters
// ('•', '.', or '-', the set the protocol accepts as equivalent spacers).
func ParseSpacedRune(s string) (SpacedRune, error) {
	var letters strings.Builder
	var spacers uint32
	for _, c := range s {
		switch {
		case c == '•' || c == '.' || c == '-':
			if letters.Len() == 0 {
				return SpacedRune{}, fmt.Errorf("leading spacer in %q", s)
			}
			flag := uint32(1) << (letters.Len() - 1)
			if spacers&flag != 0 {
				return SpacedRune{}, fmt.Errorf("double spacer in %q", s)
			}
			spacers |= flag
		case c >= 'A' && c <= 'Z':
			letters.WriteRune(c)
		default:
			return SpacedRune{}, fmt.Errorf("invalid character %q in %q", c, s)
		}
	}
	if letters.Len() == 0 {
		return SpacedRune{}, fmt.Errorf("empty rune name")
	}
	if spacers>>uint(letters.Len()-1) != 0 {
		return SpacedRune{}, fmt.Errorf("trailing spacer in %q", s)
	}
	r, err := ParseRune(letters.String())
	if err != nil {
		return SpacedRune{}, err
	}
	return SpacedRune{Rune: r, Spacers: spacers}, nil
}

// String renders the spaced name, inserting "•" wherever a spacer bit is set.
func (sr SpacedRune) String() string {
	name := sr.Rune.String()
	var b strings.Builder
	for i, c := range name {
		b.WriteRune(c)
		if i < len(name)-1 && sr.Spacers&(uint32(1)<<i) != 0 {
			b.WriteRune('•')
		}
	}
	return b.String()
}
