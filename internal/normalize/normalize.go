// Package normalize provides text normalization, tokenization, and
// transliteration used to compare organization names and localities.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords lists generic accommodation terms that carry no identity signal
// and are stripped before token matching.
var stopWords = map[string]bool{
	"отель": true, "гостиница": true, "гостиничный": true, "гостевой": true,
	"дом": true, "база": true, "отдыха": true, "пансионат": true,
	"санаторий": true, "хостел": true, "апартаменты": true, "комплекс": true,
	"мини": true, "туристическая": true, "турбаза": true,
	"hotel": true, "guest": true, "house": true, "resort": true, "inn": true,
	"hostel": true, "sanatorium": true, "apartments": true, "spa": true,
	"the": true, "and": true,
}

// translitTable maps Cyrillic letters to their common Latin renderings
// (GOST-style, the scheme Russian hotel domains typically use).
var translitTable = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "shch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
var spaceRe = regexp.MustCompile(`\s+`)

// foldTransform decomposes to NFKD and drops combining marks, so accented
// variants compare equal before transliteration.
var foldTransform = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Text lowercases, folds diacritics, strips punctuation, and collapses
// whitespace.
func Text(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if folded, _, err := transform.String(foldTransform, s); err == nil {
		s = folded
	}
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Tokens splits a normalized organization name into its important tokens:
// stop words are removed and tokens of length <= 2 are dropped.
func Tokens(name string) []string {
	var out []string
	for _, tok := range strings.Fields(Text(name)) {
		if stopWords[tok] {
			continue
		}
		if len([]rune(tok)) <= 2 {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// Transliterate renders Cyrillic text in Latin letters. Non-Cyrillic runes
// pass through unchanged.
func Transliterate(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if lat, ok := translitTable[r]; ok {
			b.WriteString(lat)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Locality normalizes a locality string for cache comparison: lowercase and
// trimmed, nothing more aggressive, so distinct places never collapse.
func Locality(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
