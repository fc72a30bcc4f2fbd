package embed

import (
	"math"

	"github.com/viterin/vek/vek32"

	skyerrors "github.com/skysift/skysift/internal/errors"
)

// Embedder turns token id sequences into unit-length text embeddings.
// Pure and deterministic: the same ids always produce bit-identical output.
type Embedder struct {
	table *Table
}

// NewEmbedder wraps a loaded table. vocabSize is the tokenizer's
// vocabulary size; a mismatch with the table is fatal.
func NewEmbedder(table *Table, vocabSize int) (*Embedder, error) {
	if table.VocabSize() != vocabSize {
		return nil, skyerrors.Newf(skyerrors.ErrCodeVocabMismatch,
			"embedding table has %d rows but vocabulary has %d entries",
			table.VocabSize(), vocabSize).
			WithContext("table_rows", table.VocabSize()).
			WithContext("vocab_size", vocabSize)
	}
	return &Embedder{table: table}, nil
}

// Dim returns the embedding dimensionality.
func (e *Embedder) Dim() int {
	return e.table.Dim()
}

// Embed returns the L2-normalized mean of the token rows. An empty
// sequence yields the zero vector, the defined "no signal" embedding.
func (e *Embedder) Embed(tokenIDs []int32) []float32 {
	dim := e.table.Dim()
	out := make([]float32, dim)
	if len(tokenIDs) == 0 {
		return out
	}

	row := make([]float32, dim)
	counted := 0
	for _, id := range tokenIDs {
		if id < 0 || int(id) >= e.table.VocabSize() {
			continue
		}
		e.table.DequantizeInto(id, row)
		vek32.Add_Inplace(out, row)
		counted++
	}
	if counted == 0 {
		return out
	}

	vek32.MulNumber_Inplace(out, 1/float32(counted))

	normSq := vek32.Dot(out, out)
	if normSq > 0 {
		vek32.MulNumber_Inplace(out, float32(1/math.Sqrt(float64(normSq))))
	}
	return out
}

// Similarity is the dot product of two unit vectors, in [-1, 1].
// Zero vectors yield 0.
func Similarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	return vek32.Dot(a, b)
}
