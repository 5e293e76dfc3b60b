package sanitizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// homoglyphs maps confusable characters to their canonical ASCII form so that
// obfuscated attack phrases still hit the catalog. Cyrillic and Greek
// lookalikes plus the common l33t substitutions.
var homoglyphs = map[rune]rune{
	// Cyrillic
	'а': 'a', 'е': 'e', 'о': 'o', 'р': 'p', 'с': 'c', 'х': 'x',
	'і': 'i', 'ѕ': 's', 'у': 'y', 'А': 'A', 'Е': 'E', 'О': 'O',
	'Р': 'P', 'С': 'C', 'Х': 'X', 'І': 'I', 'Ѕ': 'S', 'У': 'Y',
	// Greek
	'α': 'a', 'ο': 'o', 'ν': 'v', 'ε': 'e', 'ι': 'i', 'κ': 'k',
	'Α': 'A', 'Β': 'B', 'Ε': 'E', 'Ζ': 'Z', 'Η': 'H', 'Ι': 'I',
	'Κ': 'K', 'Μ': 'M', 'Ν': 'N', 'Ο': 'O', 'Ρ': 'P', 'Τ': 'T',
	// l33t
	'0': 'o', '1': 'l', '3': 'e', '4': 'a', '5': 's', '7': 't', '@': 'a',
	'$': 's',
}

// zeroWidth lists characters stripped outright before matching. Written as
// code points: they are invisible, and a literal BOM is not legal Go source
// past the first byte of a file.
var zeroWidth = map[rune]bool{
	0x200B: true, // zero-width space
	0x200C: true, // zero-width non-joiner
	0x200D: true, // zero-width joiner
	0xFEFF: true, // byte-order mark
	0x2060: true, // word joiner
}

// Normalize folds text to a canonical form for matching: NFKC composition
// (which also folds non-breaking spaces) plus zero-width removal. Idempotent.
func Normalize(text string) string {
	text = norm.NFKC.String(text)
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if zeroWidth[r] {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// foldConfusables additionally maps homoglyphs and l33t digits to lowercase
// ASCII. Used for a second matching pass only; the folded text is never
// returned to the caller since digit folding is lossy.
func foldConfusables(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if folded, ok := homoglyphs[r]; ok {
			b.WriteRune(unicode.ToLower(folded))
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
