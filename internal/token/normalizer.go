package token

import (
	"unicode"
	"unicode/utf8"
)

// WordMarker is the rune that replaces each whitespace run in normalized
// text, matching the convention vocabulary surfaces are trained with.
const WordMarker = '▁'

var wordMarkerBytes = []byte(string(WordMarker))

// NormalizedSpan is the output of normalization. PosMap has one entry per
// normalized byte plus a final entry, mapping each normalized byte offset
// back to the originating byte offset in the input.
type NormalizedSpan struct {
	Bytes  []byte
	PosMap []int
}

// Normalizer folds text through the rule table and collapses whitespace.
// It never fails: invalid UTF-8 bytes pass through raw.
type Normalizer struct {
	rules *RuleTable
}

// NewNormalizer creates a normalizer over the given rule table.
// A nil table is valid and leaves rune content untouched.
func NewNormalizer(rules *RuleTable) *Normalizer {
	return &Normalizer{rules: rules}
}

// Normalize produces the normalized form of input. Leading and trailing
// whitespace is dropped; interior whitespace runs collapse to a single
// word marker. Non-whitespace control characters are dropped.
func (n *Normalizer) Normalize(input string) NormalizedSpan {
	span := NormalizedSpan{
		Bytes:  make([]byte, 0, len(input)),
		PosMap: make([]int, 0, len(input)+1),
	}
	if input == "" {
		span.PosMap = append(span.PosMap, 0)
		return span
	}

	data := []byte(input)
	pendingSpaceAt := -1
	seenContent := false

	emit := func(b []byte, origin int) {
		if pendingSpaceAt >= 0 && seenContent {
			span.Bytes = append(span.Bytes, wordMarkerBytes...)
			for range wordMarkerBytes {
				span.PosMap = append(span.PosMap, pendingSpaceAt)
			}
		}
		pendingSpaceAt = -1
		seenContent = true
		span.Bytes = append(span.Bytes, b...)
		for range b {
			span.PosMap = append(span.PosMap, origin)
		}
	}

	for i := 0; i < len(data); {
		if replacement, consumed := n.rules.LongestMatch(data, i); consumed > 0 {
			if len(replacement) > 0 {
				emit(replacement, i)
			}
			i += consumed
			continue
		}

		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			// Invalid byte passes through raw
			emit(data[i:i+1], i)
			i++
			continue
		}

		if unicode.IsSpace(r) {
			if pendingSpaceAt < 0 {
				pendingSpaceAt = i
			}
			i += size
			continue
		}
		if unicode.IsControl(r) {
			i += size
			continue
		}

		emit(data[i:i+size], i)
		i += size
	}

	span.PosMap = append(span.PosMap, len(data))
	return span
}
