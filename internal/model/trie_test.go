package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestTrie(t *testing.T, keys ...string) *Trie {
	t.Helper()
	byteKeys := make([][]byte, len(keys))
	for i, k := range keys {
		byteKeys[i] = []byte(k)
	}
	trie, err := BuildTrie(byteKeys)
	require.NoError(t, err)
	return trie
}

func collectMatches(trie *Trie, data string, pos int) map[int32]int {
	matches := make(map[int32]int)
	trie.CommonPrefixSearch([]byte(data), pos, func(value int32, length int) {
		matches[value] = length
	})
	return matches
}

func TestCommonPrefixSearch(t *testing.T) {
	trie := buildTestTrie(t, "a", "ab", "abc", "b", "xyz")

	matches := collectMatches(trie, "abcd", 0)
	assert.Equal(t, map[int32]int{0: 1, 1: 2, 2: 3}, matches)

	matches = collectMatches(trie, "abcd", 1)
	assert.Equal(t, map[int32]int{3: 1}, matches)

	matches = collectMatches(trie, "qqq", 0)
	assert.Empty(t, matches)
}

func TestCommonPrefixSearchShortestFirst(t *testing.T) {
	trie := buildTestTrie(t, "ab", "a", "abc")

	var lengths []int
	trie.CommonPrefixSearch([]byte("abc"), 0, func(_ int32, length int) {
		lengths = append(lengths, length)
	})
	assert.Equal(t, []int{1, 2, 3}, lengths)
}

func TestCommonPrefixSearchPastEnd(t *testing.T) {
	trie := buildTestTrie(t, "a")
	assert.Empty(t, collectMatches(trie, "a", 1))
	assert.Empty(t, collectMatches(trie, "", 0))
}

func TestLongestMatch(t *testing.T) {
	trie := buildTestTrie(t, "a", "ab", "abc")

	id, length := trie.LongestMatch([]byte("abx"), 0)
	assert.Equal(t, int32(1), id)
	assert.Equal(t, 2, length)

	id, length = trie.LongestMatch([]byte("zzz"), 0)
	assert.Equal(t, int32(-1), id)
	assert.Equal(t, 0, length)
}

func TestTrieMultibyteKeys(t *testing.T) {
	// UTF-8 encoded keys exercise high byte values
	trie := buildTestTrie(t, "héllo", "hé", "日本", "日本語")

	matches := collectMatches(trie, "héllo world", 0)
	assert.Equal(t, map[int32]int{0: 6, 1: 3}, matches)

	matches = collectMatches(trie, "日本語の", 0)
	assert.Equal(t, map[int32]int{2: 6, 3: 9}, matches)
}

func TestBuildTrieRejectsDuplicates(t *testing.T) {
	_, err := BuildTrie([][]byte{[]byte("dup"), []byte("dup")})
	assert.Error(t, err)
}

func TestBuildTrieRejectsEmpty(t *testing.T) {
	_, err := BuildTrie(nil)
	assert.Error(t, err)

	_, err = BuildTrie([][]byte{{}})
	assert.Error(t, err)
}

func TestTrieAllByteValues(t *testing.T) {
	keys := make([][]byte, 256)
	for i := range keys {
		keys[i] = []byte{byte(i)}
	}
	trie, err := BuildTrie(keys)
	require.NoError(t, err)

	for i := 0; i < 256; i++ {
		id, length := trie.LongestMatch([]byte{byte(i)}, 0)
		assert.Equal(t, int32(i), id)
		assert.Equal(t, 1, length)
	}
}
