package layout

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
	"github.com/vaporyorg/util-contracts/common"
)

// WordReader returns count consecutive words starting at start, 32 bytes
// per word, as StorageReader does.
type WordReader interface {
	ReadWords(start common.Hash, count uint64) ([]byte, error)
}

// Read fetches the raw value of path: the full word for scalars and array
// elements, the Width bytes for packed fields, every member word for a
// whole struct, the length word for an array without an index.
func (l *Layout) Read(r WordReader, path string, keys ...common.Hash) ([]byte, error) {
	f, _, err := l.Resolve(path)
	if err != nil {
		return nil, err
	}
	slot, err := l.Slot(path, keys...)
	if err != nil {
		return nil, err
	}
	count := f.Words()
	if f.Kind == Array && len(keys) == 1 {
		count = f.ElemWords
	}
	raw, err := r.ReadWords(slot, count)
	if err != nil {
		return nil, fmt.Errorf("read %s.%s: %w", l.ID(), path, err)
	}
	if uint64(len(raw)) != count*common.WordSize {
		return nil, fmt.Errorf("read %s.%s: got %d bytes for %d words", l.ID(), path, len(raw), count)
	}
	if f.Kind == Packed {
		return f.Extract(common.BytesToHash(raw)), nil
	}
	return raw, nil
}

// ReadUint reads a field of at most one word as an unsigned integer.
func (l *Layout) ReadUint(r WordReader, path string, keys ...common.Hash) (*uint256.Int, error) {
	raw, err := l.Read(r, path, keys...)
	if err != nil {
		return nil, err
	}
	if len(raw) > common.WordSize {
		return nil, fmt.Errorf("read %s.%s: %d bytes do not fit one word", l.ID(), path, len(raw))
	}
	return new(uint256.Int).SetBytes(raw), nil
}

// ReadArray reads the length of an array and then all of its elements in
// one contiguous read.
func (l *Layout) ReadArray(r WordReader, path string) ([]common.Hash, error) {
	f, base, err := l.Resolve(path)
	if err != nil {
		return nil, err
	}
	if f.Kind != Array {
		return nil, fmt.Errorf("%s: %q is a %s, not an array", l.ID(), path, f.Kind)
	}
	lenWord, err := r.ReadWords(base, 1)
	if err != nil {
		return nil, err
	}
	length := new(uint256.Int).SetBytes(lenWord)
	if !length.IsUint64() {
		return nil, fmt.Errorf("%s: %q length %s out of range", l.ID(), path, length)
	}
	hi, words := bits.Mul64(length.Uint64(), f.ElemWords)
	if hi != 0 {
		return nil, fmt.Errorf("%s: %q length %s times %d words per element overflows", l.ID(), path, length, f.ElemWords)
	}
	if words == 0 {
		return nil, nil
	}
	raw, err := r.ReadWords(DataSlot(base), words)
	if err != nil {
		return nil, err
	}
	return common.BytesToWords(raw)
}
