package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Letters that carry no combining mark under NFD and would survive RemoveDiacritics.
var foldReplacer = strings.NewReplacer(
	"ø", "o", "Ø", "O",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ß", "ss",
	"ł", "l", "Ł", "L",
	"đ", "d", "Đ", "D",
	"ı", "i",
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Modrić" -> "Modric").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return foldReplacer.Replace(result)
}

// NormalizePersonName folds a player name into a lookup key: lowercase, no
// diacritics, dashes and dots as spaces, whitespace collapsed.
// "Martin Ødegaard" and "martin odegaard" share a key.
func NormalizePersonName(name string) string {
	name = RemoveDiacritics(name)
	name = strings.ToLower(name)
	name = strings.NewReplacer("-", " ", ".", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
