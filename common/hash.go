package common

import (
	"golang.org/x/crypto/sha3"
)

func Keccak256(data ...[]byte) Hash {
	hash := sha3.NewLegacyKeccak256()
	for _, d := range data {
		hash.Write(d)
	}
	return BytesToHash(hash.Sum(nil))
}

// Selector returns the 4-byte call selector of a method signature such as
// "getStorageAt(uint256,uint256)".
func Selector(signature string) []byte {
	h := Keccak256([]byte(signature))
	return h[:4]
}
