package common

import (
	"fmt"

	ethereumCommon "github.com/ethereum/go-ethereum/common"
)

// Hash is a 32-byte word. Slot indices and slot values share this type.
type Hash = ethereumCommon.Hash

// Address identifies a unit.
type Address = ethereumCommon.Address

const (
	HashLength    = ethereumCommon.HashLength
	AddressLength = ethereumCommon.AddressLength
)

// BytesToHash left-pads b to 32 bytes; longer inputs keep the trailing 32 bytes.
func BytesToHash(b []byte) Hash {
	return ethereumCommon.BytesToHash(b)
}

// HexToHash converts a hexadecimal string to a Hash.
func HexToHash(s string) Hash {
	return ethereumCommon.HexToHash(s)
}

func HexToAddress(s string) Address {
	return ethereumCommon.HexToAddress(s)
}

// ParseAddress is the strict form of HexToAddress used for user input.
func ParseAddress(s string) (Address, error) {
	if !ethereumCommon.IsHexAddress(s) {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}
	return ethereumCommon.HexToAddress(s), nil
}

// ShortAddr prints a shortened address.
func ShortAddr(addr Address) string {
	a := addr.Hex()
	return fmt.Sprintf("%s..%s", a[:6], a[len(a)-4:])
}
