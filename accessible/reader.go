package accessible

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/simerrors"
	"github.com/vaporyorg/util-contracts/vm"
)

// readPrealloc caps the up-front allocation of a read; larger reads grow
// as gas allows.
const readPrealloc = 1024

func getStorageAt(env *vm.Env, args []interface{}) ([]interface{}, error) {
	offset := common.BigToHash(args[0].(*big.Int))
	length := args[1].(*big.Int)
	if !length.IsUint64() {
		// cannot be paid for with any gas limit
		return nil, simerrors.ErrOutOfGas
	}
	data, err := ReadWords(env, offset, length.Uint64())
	if err != nil {
		return nil, err
	}
	return []interface{}{data}, nil
}

// ReadWords returns count consecutive words of env.Self()'s store starting
// at start, big-endian and in slot order. Slot indices wrap modulo 2^256.
// Unwritten slots read as zero.
func ReadWords(env *vm.Env, start common.Hash, count uint64) ([]byte, error) {
	out := make([]byte, 0, min(count, readPrealloc)*common.WordSize)
	one := uint256.NewInt(1)
	slot := start
	for i := uint64(0); i < count; i++ {
		w, err := env.Load(slot)
		if err != nil {
			return nil, err
		}
		out = append(out, w[:]...)
		slot = common.AddToHash(slot, one)
	}
	log.Trace(log.ReaderMonitoring, "getStorageAt", "unit", env.Self().Hex(), "start", start.Hex(), "words", count)
	return out, nil
}
