// Package model loads and validates the static model artifacts: the
// vocabulary table with its prefix trie, and the normalization rule table.
// All artifacts are immutable after load and shared by every search.
package model

import (
	"fmt"
	"os"

	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"

	skyerrors "github.com/skysift/skysift/internal/errors"
)

// Vocabulary artifact format (SVOC):
//
//	magic    4 bytes  "SVOC"
//	version  1 byte
//	count    varint int32
//	unkID    varint int32
//	entries  count times:
//	  surfaceLen varint int
//	  surface    surfaceLen bytes
//	  logScore   raw float32
//	  flags      1 byte (bit 0: user-defined)
const (
	vocabMagic   = "SVOC"
	vocabVersion = byte(1)

	flagUserDefined = byte(0x01)
)

// Entry is one vocabulary entry.
type Entry struct {
	// Surface is the entry's byte sequence.
	Surface []byte
	// LogScore is the entry's log probability, used by the tokenizer DP.
	LogScore float32
	// UserDefined marks entries injected outside training.
	UserDefined bool
}

// Vocabulary is the static subword vocabulary with its prefix trie.
// Token ids are dense in [0, Size()).
type Vocabulary struct {
	entries []Entry
	unkID   int32
	trie    *Trie
}

// NewVocabulary builds a vocabulary from in-memory entries. The unknown
// token id must be a valid index.
func NewVocabulary(entries []Entry, unkID int32) (*Vocabulary, error) {
	if len(entries) == 0 {
		return nil, skyerrors.New(skyerrors.ErrCodeVocabCorrupt, "vocabulary has no entries")
	}
	if unkID < 0 || int(unkID) >= len(entries) {
		return nil, skyerrors.Newf(skyerrors.ErrCodeVocabCorrupt,
			"unknown token id %d out of range [0, %d)", unkID, len(entries))
	}

	keys := make([][]byte, len(entries))
	for i, e := range entries {
		if len(e.Surface) == 0 {
			return nil, skyerrors.Newf(skyerrors.ErrCodeVocabCorrupt, "entry %d has empty surface", i)
		}
		keys[i] = e.Surface
	}

	trie, err := BuildTrie(keys)
	if err != nil {
		return nil, skyerrors.Wrap(err, skyerrors.ErrCodeVocabCorrupt, "building vocabulary trie")
	}

	return &Vocabulary{
		entries: entries,
		unkID:   unkID,
		trie:    trie,
	}, nil
}

// LoadVocabulary reads and validates a vocabulary artifact.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeArtifactNotFound,
				"vocabulary artifact %s", path)
		}
		return nil, skyerrors.Wrapf(err, skyerrors.ErrCodeVocabCorrupt,
			"reading vocabulary artifact %s", path)
	}

	entries, unkID, err := DecodeVocabulary(data)
	if err != nil {
		return nil, err
	}

	return NewVocabulary(entries, unkID)
}

// DecodeVocabulary parses the SVOC binary format.
func DecodeVocabulary(data []byte) ([]Entry, int32, error) {
	if len(data) < len(vocabMagic)+1 {
		return nil, 0, skyerrors.New(skyerrors.ErrCodeVocabCorrupt, "vocabulary artifact truncated")
	}
	if string(data[:len(vocabMagic)]) != vocabMagic {
		return nil, 0, skyerrors.Newf(skyerrors.ErrCodeVocabCorrupt,
			"bad vocabulary magic %q", data[:len(vocabMagic)])
	}
	if v := data[len(vocabMagic)]; v != vocabVersion {
		return nil, 0, skyerrors.Newf(skyerrors.ErrCodeVocabCorrupt,
			"unsupported vocabulary version %d", v)
	}

	off := len(vocabMagic) + 1

	count, n, err := varint.Int32.Unmarshal(data[off:])
	if err != nil {
		return nil, 0, skyerrors.Wrap(err, skyerrors.ErrCodeVocabCorrupt, "decoding entry count")
	}
	off += n
	if count <= 0 {
		return nil, 0, skyerrors.Newf(skyerrors.ErrCodeVocabCorrupt, "invalid entry count %d", count)
	}

	unkID, n, err := varint.Int32.Unmarshal(data[off:])
	if err != nil {
		return nil, 0, skyerrors.Wrap(err, skyerrors.ErrCodeVocabCorrupt, "decoding unknown token id")
	}
	off += n

	entries := make([]Entry, count)
	for i := range entries {
		surfaceLen, n, err := varint.Int.Unmarshal(data[off:])
		if err != nil {
			return nil, 0, skyerrors.Wrapf(err, skyerrors.ErrCodeVocabCorrupt,
				"decoding surface length of entry %d", i)
		}
		off += n
		if surfaceLen <= 0 || off+surfaceLen > len(data) {
			return nil, 0, skyerrors.Newf(skyerrors.ErrCodeVocabCorrupt,
				"entry %d surface length %d out of bounds", i, surfaceLen)
		}

		surface := make([]byte, surfaceLen)
		copy(surface, data[off:off+surfaceLen])
		off += surfaceLen

		score, n, err := raw.Float32.Unmarshal(data[off:])
		if err != nil {
			return nil, 0, skyerrors.Wrapf(err, skyerrors.ErrCodeVocabCorrupt,
				"decoding score of entry %d", i)
		}
		off += n

		flags, n, err := raw.Byte.Unmarshal(data[off:])
		if err != nil {
			return nil, 0, skyerrors.Wrapf(err, skyerrors.ErrCodeVocabCorrupt,
				"decoding flags of entry %d", i)
		}
		off += n

		entries[i] = Entry{
			Surface:     surface,
			LogScore:    score,
			UserDefined: flags&flagUserDefined != 0,
		}
	}

	if off != len(data) {
		return nil, 0, skyerrors.Newf(skyerrors.ErrCodeVocabCorrupt,
			"%d trailing bytes after last entry", len(data)-off)
	}

	return entries, unkID, nil
}

// EncodeVocabulary renders entries into the SVOC binary format.
// Used by artifact tooling and tests.
func EncodeVocabulary(entries []Entry, unkID int32) ([]byte, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries to encode")
	}

	size := len(vocabMagic) + 1
	size += varint.Int32.Size(int32(len(entries)))
	size += varint.Int32.Size(unkID)
	for _, e := range entries {
		size += varint.Int.Size(len(e.Surface))
		size += len(e.Surface)
		size += raw.Float32.Size(e.LogScore)
		size += raw.Byte.Size(0)
	}

	buf := make([]byte, size)
	off := copy(buf, vocabMagic)
	buf[off] = vocabVersion
	off++

	off += varint.Int32.Marshal(int32(len(entries)), buf[off:])
	off += varint.Int32.Marshal(unkID, buf[off:])

	for _, e := range entries {
		off += varint.Int.Marshal(len(e.Surface), buf[off:])
		off += copy(buf[off:], e.Surface)
		off += raw.Float32.Marshal(e.LogScore, buf[off:])

		var flags byte
		if e.UserDefined {
			flags |= flagUserDefined
		}
		off += raw.Byte.Marshal(flags, buf[off:])
	}

	return buf[:off], nil
}

// Size returns the number of vocabulary entries.
func (v *Vocabulary) Size() int {
	return len(v.entries)
}

// UnkID returns the unknown token id.
func (v *Vocabulary) UnkID() int32 {
	return v.unkID
}

// Entry returns the entry for the given token id.
func (v *Vocabulary) Entry(id int32) Entry {
	return v.entries[id]
}

// CommonPrefixSearch enumerates vocabulary entries whose surface is a
// prefix of data[pos:].
func (v *Vocabulary) CommonPrefixSearch(data []byte, pos int, fn func(id int32, length int)) {
	v.trie.CommonPrefixSearch(data, pos, fn)
}
