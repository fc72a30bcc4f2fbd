package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleTable(t *testing.T, rules map[string]string) *RuleTable {
	t.Helper()
	var sources, replacements [][]byte
	for src, dst := range rules {
		sources = append(sources, []byte(src))
		replacements = append(replacements, []byte(dst))
	}
	rt, err := NewRuleTable(sources, replacements)
	require.NoError(t, err)
	return rt
}

func TestNormalizeBasic(t *testing.T) {
	n := NewNormalizer(nil)

	span := n.Normalize("hello world")
	assert.Equal(t, "hello▁world", string(span.Bytes))
	assert.Len(t, span.PosMap, len(span.Bytes)+1)
}

func TestNormalizeWhitespaceCollapse(t *testing.T) {
	n := NewNormalizer(nil)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"interior run", "a  \t b", "a▁b"},
		{"leading trimmed", "   abc", "abc"},
		{"trailing trimmed", "abc \n", "abc"},
		{"only whitespace", " \t\n ", ""},
		{"newlines", "one\ntwo", "one▁two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span := n.Normalize(tt.input)
			assert.Equal(t, tt.want, string(span.Bytes))
		})
	}
}

func TestNormalizeEmpty(t *testing.T) {
	n := NewNormalizer(nil)
	span := n.Normalize("")
	assert.Empty(t, span.Bytes)
	assert.Equal(t, []int{0}, span.PosMap)
}

func TestNormalizeRules(t *testing.T) {
	rt := ruleTable(t, map[string]string{
		"é":  "e",
		"Ａ":  "A", // fullwidth
		"ae": "ä", // multi-rune source
	})
	n := NewNormalizer(rt)

	span := n.Normalize("café")
	assert.Equal(t, "cafe", string(span.Bytes))

	span = n.Normalize("Ａbc")
	assert.Equal(t, "Abc", string(span.Bytes))

	span = n.Normalize("aerial")
	assert.Equal(t, "ärial", string(span.Bytes))
}

func TestNormalizeRuleDeletion(t *testing.T) {
	rt := ruleTable(t, map[string]string{"­": ""}) // soft hyphen deleted
	n := NewNormalizer(rt)

	span := n.Normalize("co­op")
	assert.Equal(t, "coop", string(span.Bytes))
}

func TestNormalizeInvalidBytesPassThrough(t *testing.T) {
	n := NewNormalizer(nil)

	input := string([]byte{'a', 0xFF, 'b'})
	span := n.Normalize(input)
	assert.Equal(t, []byte{'a', 0xFF, 'b'}, span.Bytes)
}

func TestNormalizeControlCharsDropped(t *testing.T) {
	n := NewNormalizer(nil)

	span := n.Normalize("a\x00b\x07c")
	assert.Equal(t, "abc", string(span.Bytes))
}

func TestNormalizePosMap(t *testing.T) {
	n := NewNormalizer(nil)

	//       0123456
	input := "ab  cd"
	span := n.Normalize(input)
	require.Equal(t, "ab▁cd", string(span.Bytes))

	// 'a' at 0, 'b' at 1, marker bytes at 2 (run start), 'c' at 4, 'd' at 5
	assert.Equal(t, 0, span.PosMap[0])
	assert.Equal(t, 1, span.PosMap[1])
	assert.Equal(t, 2, span.PosMap[2])
	assert.Equal(t, 2, span.PosMap[3])
	assert.Equal(t, 2, span.PosMap[4])
	assert.Equal(t, 4, span.PosMap[5])
	assert.Equal(t, 5, span.PosMap[6])
	assert.Equal(t, len(input), span.PosMap[len(span.PosMap)-1])
}

func TestNormalizeNeverErrors(t *testing.T) {
	rt := ruleTable(t, map[string]string{"x": "y"})
	n := NewNormalizer(rt)

	inputs := []string{
		"",
		" ",
		string([]byte{0xC0, 0xAF}), // overlong encoding
		string([]byte{0xED, 0xA0, 0x80}), // surrogate half
		"mixed \xFF rubbish \xFE here",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { n.Normalize(in) })
	}
}
