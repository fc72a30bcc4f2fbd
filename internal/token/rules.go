// Package token implements text normalization and Viterbi subword
// tokenization over the static model artifacts.
package token

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	skyerrors "github.com/skysift/skysift/internal/errors"
	"github.com/skysift/skysift/internal/model"
)

// RuleTable holds the normalization rules as a prefix trie over the
// UTF-8 bytes of each source sequence. Rule sources are whole rune
// sequences, so byte-level longest match always ends on a rune boundary.
type RuleTable struct {
	trie         *model.Trie
	replacements [][]byte
}

// LoadRules reads a normalization rule table from a TSV file. Each line
// holds a source and a replacement column, both space-separated hex rune
// sequences. Blank lines and lines starting with '#' are skipped.
func LoadRules(path string) (*RuleTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeArtifactNotFound,
				"normalization rules %s", path)
		}
		return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeRulesCorrupt,
			"reading normalization rules %s", path)
	}
	defer f.Close()

	var (
		sources      [][]byte
		replacements [][]byte
		seen         = make(map[string]bool)
	)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 {
			return nil, skyerrors.Newf(skyerrors.ErrCodeRulesCorrupt,
				"line %d: expected two tab-separated columns", lineNo)
		}

		src, err := parseHexSequence(parts[0])
		if err != nil {
			return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeRulesCorrupt,
				"line %d: source column", lineNo)
		}
		if len(src) == 0 {
			return nil, skyerrors.Newf(skyerrors.ErrCodeRulesCorrupt,
				"line %d: empty source sequence", lineNo)
		}

		dst, err := parseHexSequence(parts[1])
		if err != nil {
			return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeRulesCorrupt,
				"line %d: replacement column", lineNo)
		}

		srcBytes := []byte(string(src))
		if seen[string(srcBytes)] {
			// Later rules never shadow earlier ones
			continue
		}
		seen[string(srcBytes)] = true

		sources = append(sources, srcBytes)
		replacements = append(replacements, []byte(string(dst)))
	}
	if err := scanner.Err(); err != nil {
		return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeRulesCorrupt,
			"reading normalization rules %s", path)
	}

	return NewRuleTable(sources, replacements)
}

// NewRuleTable builds a rule table from parallel source and replacement
// slices. An empty table is valid and matches nothing.
func NewRuleTable(sources, replacements [][]byte) (*RuleTable, error) {
	if len(sources) != len(replacements) {
		return nil, skyerrors.Newf(skyerrors.ErrCodeRulesCorrupt,
			"%d sources but %d replacements", len(sources), len(replacements))
	}
	if len(sources) == 0 {
		return &RuleTable{}, nil
	}

	trie, err := model.BuildTrie(sources)
	if err != nil {
		return nil, skyerrors.Wrap(err, skyerrors.ErrCodeRulesCorrupt, "building rule trie")
	}

	return &RuleTable{
		trie:         trie,
		replacements: replacements,
	}, nil
}

// LongestMatch returns the replacement and consumed byte count for the
// longest rule whose source matches at data[pos:], or (nil, 0) when no
// rule applies.
func (rt *RuleTable) LongestMatch(data []byte, pos int) ([]byte, int) {
	if rt == nil || rt.trie == nil {
		return nil, 0
	}

	id, length := rt.trie.LongestMatch(data, pos)
	if id < 0 {
		return nil, 0
	}
	return rt.replacements[id], length
}

// Len returns the number of rules.
func (rt *RuleTable) Len() int {
	return len(rt.replacements)
}

// parseHexSequence parses a space-separated list of hex code points.
func parseHexSequence(field string) ([]rune, error) {
	tokens := strings.Fields(field)
	result := make([]rune, 0, len(tokens))
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "#") {
			break
		}
		value, err := strconv.ParseUint(tok, 16, 32)
		if err != nil {
			return nil, err
		}
		if value > utf8.MaxRune {
			return nil, strconv.ErrRange
		}
		result = append(result, rune(value))
	}
	return result, nil
}
