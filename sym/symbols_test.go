package sym

import (
	"testing"
	"unicode/utf8"
)

func TestGlyphsAreSingleRunesAndUnique(t *testing.T) {
	seen := make(map[string]bool, len(All))
	for _, glyph := range All {
		if utf8.RuneCountInString(glyph) != 1 {
			t.Errorf("glyph %q should be a single rune", glyph)
		}
		if seen[glyph] {
			t.Errorf("glyph %q is used twice", glyph)
		}
		seen[glyph] = true
	}
}
