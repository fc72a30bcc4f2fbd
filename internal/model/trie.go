package model

import (
	"fmt"
	"sort"
)

// Trie is a static double-array trie over byte sequences. Values are the
// indexes of the keys it was built from. Immutable after construction and
// safe for concurrent readers.
type Trie struct {
	base  []int32
	check []int32
	value []int32
	root  int32
}

// BuildTrie constructs a trie from the given keys. The value stored for
// each key is its index in the slice. Duplicate or empty keys are rejected.
func BuildTrie(keys [][]byte) (*Trie, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("trie: no keys provided")
	}

	b := newTrieBuilder()
	root := b.newNode()
	root.index = b.rootIndex

	b.ensure(root.index)
	b.check[root.index] = 0

	for idx, key := range keys {
		if len(key) == 0 {
			return nil, fmt.Errorf("trie: empty key at index %d", idx)
		}
		if err := b.insert(root, key, int32(idx)); err != nil {
			return nil, err
		}
	}

	if err := b.assign(root); err != nil {
		return nil, err
	}

	b.trim()

	return &Trie{
		base:  b.base,
		check: b.check,
		value: b.value,
		root:  b.rootIndex,
	}, nil
}

// CommonPrefixSearch invokes fn for every key that is a prefix of
// data[pos:], with the key's value and its length in bytes. Matches are
// reported shortest first. The callback form keeps the hot tokenizer loop
// allocation-free.
func (t *Trie) CommonPrefixSearch(data []byte, pos int, fn func(value int32, length int)) {
	if t == nil || fn == nil || pos >= len(data) {
		return
	}

	index := t.root
	if int(index) >= len(t.base) {
		return
	}
	base := t.base[index]

	for i := pos; i < len(data); i++ {
		next := base + byteCode(data[i])
		if next <= 0 || int(next) >= len(t.check) || t.check[next] != index {
			break
		}

		if val := t.value[next]; val >= 0 {
			fn(val, i-pos+1)
		}

		index = next
		if int(index) >= len(t.base) {
			break
		}
		base = t.base[index]
	}
}

// LongestMatch returns the value and byte length of the longest key that
// is a prefix of data[pos:], or (-1, 0) when nothing matches.
func (t *Trie) LongestMatch(data []byte, pos int) (int32, int) {
	var (
		bestVal int32 = -1
		bestLen int
	)

	t.CommonPrefixSearch(data, pos, func(value int32, length int) {
		if length > bestLen {
			bestVal = value
			bestLen = length
		}
	})

	if bestVal < 0 {
		return -1, 0
	}
	return bestVal, bestLen
}

// byteCode maps a byte to its transition code. Code 0 is reserved so that
// base+code never collides with the root slot.
func byteCode(b byte) int32 {
	return int32(b) + 1
}

type builderNode struct {
	children map[int32]*builderNode
	index    int32
	value    int32
	terminal bool
}

type trieBuilder struct {
	base      []int32
	check     []int32
	value     []int32
	rootIndex int32
}

func newTrieBuilder() *trieBuilder {
	b := &trieBuilder{
		base:      make([]int32, 2),
		check:     make([]int32, 2),
		value:     make([]int32, 2),
		rootIndex: 1,
	}

	for i := range b.check {
		b.check[i] = -1
		b.value[i] = -1
	}

	return b
}

func (b *trieBuilder) newNode() *builderNode {
	return &builderNode{
		children: make(map[int32]*builderNode),
		value:    -1,
	}
}

func (b *trieBuilder) insert(root *builderNode, key []byte, value int32) error {
	node := root

	for _, c := range key {
		code := byteCode(c)
		child, ok := node.children[code]
		if !ok {
			child = b.newNode()
			node.children[code] = child
		}
		node = child
	}

	if node.terminal {
		return fmt.Errorf("trie: duplicate key %q", key)
	}

	node.terminal = true
	node.value = value
	return nil
}

func (b *trieBuilder) assign(node *builderNode) error {
	if len(node.children) == 0 {
		return nil
	}

	codes := make([]int32, 0, len(node.children))
	for code := range node.children {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })

	base := b.findBase(codes)
	b.base[node.index] = base

	for _, code := range codes {
		child := node.children[code]
		childIndex := base + code
		b.ensure(childIndex)
		b.check[childIndex] = node.index
		child.index = childIndex
		if child.terminal {
			b.value[childIndex] = child.value
		}
	}

	for _, code := range codes {
		if err := b.assign(node.children[code]); err != nil {
			return err
		}
	}

	return nil
}

func (b *trieBuilder) findBase(codes []int32) int32 {
	base := int32(1)
	for {
		conflict := false
		for _, code := range codes {
			idx := base + code
			b.ensure(idx)
			if b.check[idx] != -1 {
				conflict = true
				break
			}
		}

		if !conflict {
			return base
		}

		base++
	}
}

func (b *trieBuilder) ensure(idx int32) {
	if int(idx) < len(b.base) {
		return
	}

	oldLen := len(b.base)
	newLen := oldLen
	if newLen == 0 {
		newLen = 2
	}
	for int(idx) >= newLen {
		newLen *= 2
	}

	base := make([]int32, newLen)
	copy(base, b.base)
	check := make([]int32, newLen)
	copy(check, b.check)
	value := make([]int32, newLen)
	copy(value, b.value)

	for i := oldLen; i < newLen; i++ {
		check[i] = -1
		value[i] = -1
	}

	b.base = base
	b.check = check
	b.value = value
}

func (b *trieBuilder) trim() {
	last := len(b.base) - 1
	for last > int(b.rootIndex) && b.check[last] == -1 && b.value[last] == -1 && b.base[last] == 0 {
		last--
	}

	b.base = b.base[:last+1]
	b.check = b.check[:last+1]
	b.value = b.value[:last+1]
}
