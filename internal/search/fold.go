package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer maps compatibility variants (full-width forms,
// mathematical alphanumerics) to their canonical codepoints and strips
// combining diacritical marks. Stateless, shared by all calls.
var foldTransformer = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// fold lowercases text and collapses Unicode variants to their Latin
// base. Used for the secondary fuzzy pass; the exact-Unicode pass only
// lowercases.
func fold(text string) string {
	out, _, err := transform.String(foldTransformer, text)
	if err != nil {
		// Folding is best effort; malformed input scores on the
		// exact pass instead.
		return strings.ToLower(text)
	}
	return strings.ToLower(out)
}

// splitWords breaks text into alphanumeric words. Everything else is a
// separator and is stripped from both sides of a comparison, for query
// terms and candidate text alike.
func splitWords(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
