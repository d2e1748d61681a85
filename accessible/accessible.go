// Package accessible lets callers inspect a unit without the unit exposing
// an accessor per field. A unit that mixes it in answers raw word-range
// reads of its own store (getStorageAt) and can run another unit's code
// against its own store and identity without keeping any of the writes
// (simulate).
package accessible

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/vm"
)

// ABI is the interface every accessible unit serves. simulateAndRevert is
// the internal entry point of simulate and always fails.
const ABI = `[
	{"type":"function","name":"getStorageAt","stateMutability":"view",
	 "inputs":[{"name":"offset","type":"uint256"},{"name":"length","type":"uint256"}],
	 "outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"simulate","stateMutability":"nonpayable",
	 "inputs":[{"name":"targetUnit","type":"address"},{"name":"payload","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"simulateAndRevert","stateMutability":"nonpayable",
	 "inputs":[{"name":"targetUnit","type":"address"},{"name":"payload","type":"bytes"}],
	 "outputs":[]}
]`

// DelegateABI is the non-simulated borrowed-execution entry point. Its
// writes persist, so it cannot be served from a read-only context.
const DelegateABI = `[
	{"type":"function","name":"delegate","stateMutability":"nonpayable",
	 "inputs":[{"name":"targetUnit","type":"address"},{"name":"payload","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes"}]}
]`

var (
	accessibleABI = mustParse(ABI)
	delegateABI   = mustParse(DelegateABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Mixin adds getStorageAt, simulate and simulateAndRevert to c.
func Mixin(c *vm.Contract) error {
	if err := c.Extend(ABI); err != nil {
		return err
	}
	handlers := map[string]vm.Method{
		"getStorageAt":      getStorageAt,
		"simulate":          simulate,
		"simulateAndRevert": simulateAndRevert,
	}
	for name, fn := range handlers {
		if err := c.Handle(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// MixinDelegate adds the committing delegate entry point to c.
func MixinDelegate(c *vm.Contract) error {
	if err := c.Extend(DelegateABI); err != nil {
		return err
	}
	return c.Handle("delegate", delegate)
}

// PackGetStorageAt encodes a getStorageAt call.
func PackGetStorageAt(offset common.Hash, length uint64) ([]byte, error) {
	return accessibleABI.Pack("getStorageAt", offset.Big(), new(big.Int).SetUint64(length))
}

// PackSimulate encodes a simulate call.
func PackSimulate(target common.Address, payload []byte) ([]byte, error) {
	return accessibleABI.Pack("simulate", target, payload)
}

// PackDelegate encodes a delegate call.
func PackDelegate(target common.Address, payload []byte) ([]byte, error) {
	return delegateABI.Pack("delegate", target, payload)
}

// UnpackBytes decodes the single bytes result shared by getStorageAt,
// simulate and delegate.
func UnpackBytes(ret []byte) ([]byte, error) {
	outs, err := accessibleABI.Methods["simulate"].Outputs.Unpack(ret)
	if err != nil {
		return nil, fmt.Errorf("unpack bytes result: %w", err)
	}
	return outs[0].([]byte), nil
}

// delegate runs target's code against the caller's store and keeps the
// result, failing with target's reason when target fails.
func delegate(env *vm.Env, args []interface{}) ([]interface{}, error) {
	target := args[0].(common.Address)
	payload := args[1].([]byte)
	out := env.DelegateCall(target, payload)
	if !out.Success {
		return nil, out.AsError()
	}
	return []interface{}{out.Data}, nil
}
