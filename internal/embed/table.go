// Package embed provides the quantized static embedding table and the
// deterministic text embedder built on it.
package embed

import (
	"encoding/binary"
	"math"
	"os"

	"github.com/edsrzf/mmap-go"

	skyerrors "github.com/skysift/skysift/internal/errors"
)

// Embedding artifact format (SEMB):
//
//	magic     4 bytes  "SEMB"
//	version   u32 LE
//	vocabSize u32 LE
//	dim       u32 LE
//	reserved  16 bytes
//	scales    vocabSize float32 LE (one per row)
//	rows      vocabSize*dim bytes, uint8-quantized
//
// A row value q dequantizes to (q-128)*scale.
const (
	tableMagic   = "SEMB"
	tableVersion = uint32(1)
	headerSize   = 32
)

// Table is the memory-mapped quantized embedding table. Read-only for the
// process lifetime and safe for concurrent use.
type Table struct {
	mapped    mmap.MMap
	file      *os.File
	vocabSize int
	dim       int
	scales    []float32
	rows      []byte
}

// OpenTable memory-maps and validates an embedding artifact.
func OpenTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeArtifactNotFound,
				"embedding artifact %s", path)
		}
		return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeEmbeddingCorrupt,
			"opening embedding artifact %s", path)
	}

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		_ = f.Close()
		return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeEmbeddingCorrupt,
			"mapping embedding artifact %s", path)
	}

	t, err := parseTable(mapped)
	if err != nil {
		_ = mapped.Unmap()
		_ = f.Close()
		return nil, err
	}
	t.mapped = mapped
	t.file = f
	return t, nil
}

// NewTableFromBytes parses an in-memory artifact. Used by tests and tools.
func NewTableFromBytes(data []byte) (*Table, error) {
	return parseTable(data)
}

func parseTable(data []byte) (*Table, error) {
	if len(data) < headerSize {
		return nil, skyerrors.New(skyerrors.ErrCodeEmbeddingCorrupt, "embedding artifact truncated")
	}
	if string(data[:4]) != tableMagic {
		return nil, skyerrors.Newf(skyerrors.ErrCodeEmbeddingCorrupt,
			"bad embedding magic %q", data[:4])
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != tableVersion {
		return nil, skyerrors.Newf(skyerrors.ErrCodeEmbeddingCorrupt,
			"unsupported embedding version %d", v)
	}

	vocabSize := int(binary.LittleEndian.Uint32(data[8:12]))
	dim := int(binary.LittleEndian.Uint32(data[12:16]))
	if vocabSize <= 0 || dim <= 0 {
		return nil, skyerrors.Newf(skyerrors.ErrCodeEmbeddingCorrupt,
			"invalid dimensions %dx%d", vocabSize, dim)
	}

	want := headerSize + 4*vocabSize + vocabSize*dim
	if len(data) != want {
		return nil, skyerrors.Newf(skyerrors.ErrCodeEmbeddingCorrupt,
			"artifact size %d does not match %d rows of dim %d (want %d)",
			len(data), vocabSize, dim, want)
	}

	// Scales are copied out so row access needs no alignment tricks;
	// the quantized rows stay as a view into the mapping.
	scales := make([]float32, vocabSize)
	off := headerSize
	for i := range scales {
		bits := binary.LittleEndian.Uint32(data[off : off+4])
		scales[i] = math.Float32frombits(bits)
		off += 4
	}

	return &Table{
		vocabSize: vocabSize,
		dim:       dim,
		scales:    scales,
		rows:      data[off:],
	}, nil
}

// Close unmaps the artifact.
func (t *Table) Close() error {
	var err error
	if t.mapped != nil {
		err = t.mapped.Unmap()
		t.mapped = nil
	}
	if t.file != nil {
		if cerr := t.file.Close(); err == nil {
			err = cerr
		}
		t.file = nil
	}
	return err
}

// VocabSize returns the number of rows.
func (t *Table) VocabSize() int {
	return t.vocabSize
}

// Dim returns the embedding dimensionality.
func (t *Table) Dim() int {
	return t.dim
}

// DequantizeInto writes the dequantized row for id into out, which must
// have length Dim().
func (t *Table) DequantizeInto(id int32, out []float32) {
	scale := t.scales[id]
	row := t.rows[int(id)*t.dim : (int(id)+1)*t.dim]
	for i, q := range row {
		out[i] = (float32(q) - 128) * scale
	}
}

// EncodeTable renders scales and quantized rows into the SEMB format.
// Used by artifact tooling and tests.
func EncodeTable(scales []float32, rows []byte, dim int) ([]byte, error) {
	vocabSize := len(scales)
	if vocabSize == 0 || dim <= 0 || len(rows) != vocabSize*dim {
		return nil, skyerrors.Newf(skyerrors.ErrCodeEmbeddingCorrupt,
			"inconsistent table shape: %d scales, %d row bytes, dim %d",
			vocabSize, len(rows), dim)
	}

	buf := make([]byte, headerSize+4*vocabSize+len(rows))
	copy(buf, tableMagic)
	binary.LittleEndian.PutUint32(buf[4:8], tableVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(vocabSize))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(dim))

	off := headerSize
	for _, s := range scales {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(s))
		off += 4
	}
	copy(buf[off:], rows)
	return buf, nil
}
