package token

import (
	"math"
	"sync"

	"github.com/skysift/skysift/internal/model"
)

const negInf float32 = -math.MaxFloat32

// unkPenalty is the per-byte score for synthesized unknown tokens. Strongly
// negative so any in-vocabulary segmentation wins, but finite so every byte
// offset stays reachable.
const unkPenalty float32 = -1e4

// Tokenizer segments normalized text into subword token ids with a Viterbi
// DP over byte offsets. Immutable after construction and safe for
// concurrent use; per-call scratch comes from a pool.
type Tokenizer struct {
	vocab *model.Vocabulary
	norm  *Normalizer

	scratchPool sync.Pool
}

// dpScratch holds the per-call DP state. Index i covers the first i bytes
// of the normalized input.
type dpScratch struct {
	scores  []float32
	backPos []int32
	backTok []int32
	out     []int32
}

// NewTokenizer creates a tokenizer over the given vocabulary and normalizer.
func NewTokenizer(vocab *model.Vocabulary, norm *Normalizer) *Tokenizer {
	return &Tokenizer{
		vocab: vocab,
		norm:  norm,
		scratchPool: sync.Pool{
			New: func() any { return &dpScratch{} },
		},
	}
}

// Tokenize normalizes text and returns its token ids. It never fails:
// bytes with no vocabulary match become unknown tokens, so the token
// sequence always covers the whole normalized input. Empty or whitespace
// only input yields an empty sequence.
func (t *Tokenizer) Tokenize(text string) []int32 {
	span := t.norm.Normalize(text)
	return t.TokenizeNormalized(span.Bytes)
}

// TokenizeNormalized runs the Viterbi segmentation over already
// normalized bytes.
func (t *Tokenizer) TokenizeNormalized(data []byte) []int32 {
	n := len(data)
	if n == 0 {
		return nil
	}

	s := t.scratchPool.Get().(*dpScratch)
	defer t.scratchPool.Put(s)
	s.grow(n + 1)

	scores := s.scores[:n+1]
	backPos := s.backPos[:n+1]
	backTok := s.backTok[:n+1]

	for i := range scores {
		scores[i] = negInf
		backPos[i] = -1
		backTok[i] = -1
	}
	scores[0] = 0

	unkID := t.vocab.UnkID()

	for pos := 0; pos < n; pos++ {
		if scores[pos] == negInf {
			continue
		}

		matched := false
		t.vocab.CommonPrefixSearch(data, pos, func(id int32, length int) {
			matched = true
			next := pos + length
			newScore := scores[pos] + t.vocab.Entry(id).LogScore
			if newScore > scores[next] {
				scores[next] = newScore
				backPos[next] = int32(pos)
				backTok[next] = id
			}
		})

		if !matched {
			// Single-byte unknown keeps every offset reachable
			next := pos + 1
			newScore := scores[pos] + unkPenalty
			if newScore > scores[next] {
				scores[next] = newScore
				backPos[next] = int32(pos)
				backTok[next] = unkID
			}
		}
	}

	out := s.out[:0]
	for pos := n; pos > 0; {
		prev := backPos[pos]
		id := backTok[pos]
		if prev < 0 || id < 0 {
			// Unreachable by construction; bail to unknown rather than loop
			id = unkID
			prev = int32(pos - 1)
		}
		out = append(out, id)
		pos = int(prev)
	}
	reverseInt32(out)
	s.out = out

	result := make([]int32, len(out))
	copy(result, out)
	return result
}

func (s *dpScratch) grow(size int) {
	if cap(s.scores) < size {
		s.scores = make([]float32, size)
		s.backPos = make([]int32, size)
		s.backTok = make([]int32, size)
	}
}

func reverseInt32(s []int32) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
