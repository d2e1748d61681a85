package units

import (
	"math/big"

	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/vm"
)

const libraryABI = `[
	{"type":"function","name":"getFoo","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"setAndGetFoo","inputs":[{"name":"foo","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"doRevert","inputs":[],"outputs":[]},
	{"type":"function","name":"doRevertWithReason","inputs":[{"name":"reason","type":"string"}],"outputs":[]}
]`

// NewLibrary returns code meant to be borrowed by a Fixture: it operates on
// the foo field of whatever store it runs against. Empty or unknown call
// data returns the identity it runs as.
func NewLibrary() (*vm.Contract, error) {
	c, err := vm.NewContract("Library", libraryABI)
	if err != nil {
		return nil, err
	}
	fooSlot, err := FixtureLayout.Slot("foo")
	if err != nil {
		return nil, err
	}
	handlers := map[string]vm.Method{
		"getFoo": func(env *vm.Env, _ []interface{}) ([]interface{}, error) {
			v, err := env.Load(fooSlot)
			if err != nil {
				return nil, err
			}
			return []interface{}{v.Big()}, nil
		},
		"setAndGetFoo": func(env *vm.Env, args []interface{}) ([]interface{}, error) {
			if err := env.Store(fooSlot, common.BigToHash(args[0].(*big.Int))); err != nil {
				return nil, err
			}
			v, err := env.Load(fooSlot)
			if err != nil {
				return nil, err
			}
			return []interface{}{v.Big()}, nil
		},
		"doRevert": func(*vm.Env, []interface{}) ([]interface{}, error) {
			return nil, vm.NewRevert(nil)
		},
		"doRevertWithReason": func(_ *vm.Env, args []interface{}) ([]interface{}, error) {
			return nil, vm.RevertWithMessage(args[0].(string))
		},
	}
	for name, fn := range handlers {
		if err := c.Handle(name, fn); err != nil {
			return nil, err
		}
	}
	c.SetFallback(func(env *vm.Env, _ []byte) ([]byte, error) {
		return common.BytesToHash(env.Self().Bytes()).Bytes(), nil
	})
	return c, nil
}
