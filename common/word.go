package common

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

// WordSize is the size in bytes of one persistent store word.
const WordSize = 32

// Uint64ToHash encodes v as a big-endian 32-byte word.
func Uint64ToHash(v uint64) Hash {
	return Hash(uint256.NewInt(v).Bytes32())
}

func BigToHash(v *big.Int) Hash {
	return Hash(uint256.MustFromBig(v).Bytes32())
}

func IntToHash(v *uint256.Int) Hash {
	return Hash(v.Bytes32())
}

func HashToInt(h Hash) *uint256.Int {
	return new(uint256.Int).SetBytes32(h[:])
}

// AddToHash returns h + n modulo 2^256. Array element slots wrap around the
// address space the same way.
func AddToHash(h Hash, n *uint256.Int) Hash {
	v := HashToInt(h)
	v.Add(v, n)
	return IntToHash(v)
}

// ParseWord accepts a 0x-prefixed hex string (at most 32 bytes) or an
// unsigned decimal below 2^256.
func ParseWord(s string) (Hash, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		raw := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		if len(raw) > 2*WordSize {
			return Hash{}, fmt.Errorf("word %q longer than 32 bytes", s)
		}
		if len(raw)%2 == 1 {
			raw = "0" + raw
		}
		b, err := hexutil.Decode("0x" + raw)
		if err != nil {
			return Hash{}, fmt.Errorf("invalid word %q: %w", s, err)
		}
		return BytesToHash(b), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Hash{}, fmt.Errorf("invalid word %q: %w", s, err)
	}
	return IntToHash(v), nil
}

// WordsToBytes concatenates words in order, most-significant byte first
// within each word.
func WordsToBytes(words []Hash) []byte {
	out := make([]byte, 0, len(words)*WordSize)
	for _, w := range words {
		out = append(out, w[:]...)
	}
	return out
}

// BytesToWords splits b into 32-byte words. len(b) must be a multiple of 32.
func BytesToWords(b []byte) ([]Hash, error) {
	if len(b)%WordSize != 0 {
		return nil, fmt.Errorf("length %d is not a multiple of %d", len(b), WordSize)
	}
	words := make([]Hash, len(b)/WordSize)
	for i := range words {
		copy(words[i][:], b[i*WordSize:(i+1)*WordSize])
	}
	return words, nil
}
