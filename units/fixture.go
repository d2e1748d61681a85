// Package units holds the concrete units the tools and tests deploy.
package units

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/vaporyorg/util-contracts/accessible"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/layout"
	"github.com/vaporyorg/util-contracts/vm"
)

// FixtureLayout is where Fixture keeps its fields.
var FixtureLayout = layout.MustNew("Fixture", 1,
	layout.ScalarField("foo", 0),
	layout.PackedField("bar", 1, 0, 16),
	layout.PackedField("bam", 1, 16, 8),
	layout.ArrayField("baz", 2),
	layout.MappingField("qux", 3),
	layout.StructField("foobar", 4,
		layout.ScalarField("foo", 0),
		layout.ScalarField("bar", 1),
	),
)

const fixtureABI = `[
	{"type":"function","name":"setFoo","inputs":[{"name":"foo","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setBar","inputs":[{"name":"bar","type":"uint128"}],"outputs":[]},
	{"type":"function","name":"setBam","inputs":[{"name":"bam","type":"uint64"}],"outputs":[]},
	{"type":"function","name":"setBaz","inputs":[{"name":"baz","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"setQuxKeyValue","inputs":[{"name":"key","type":"uint256"},{"name":"value","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"setFoobar","inputs":[{"name":"foo","type":"uint256"},{"name":"bar","type":"uint256"}],"outputs":[]}
]`

// NewFixture returns a unit with one field of every layout kind, setters
// for each, and the accessible and delegate entry points. It has no
// getters: its fields are read with getStorageAt.
func NewFixture() (*vm.Contract, error) {
	c, err := vm.NewContract("Fixture", fixtureABI)
	if err != nil {
		return nil, err
	}
	if err := accessible.Mixin(c); err != nil {
		return nil, err
	}
	if err := accessible.MixinDelegate(c); err != nil {
		return nil, err
	}
	handlers := map[string]vm.Method{
		"setFoo": func(env *vm.Env, args []interface{}) ([]interface{}, error) {
			return nil, storeField(env, "foo", common.BigToHash(args[0].(*big.Int)))
		},
		"setBar": func(env *vm.Env, args []interface{}) ([]interface{}, error) {
			return nil, storePacked(env, "bar", args[0].(*big.Int).Bytes())
		},
		"setBam": func(env *vm.Env, args []interface{}) ([]interface{}, error) {
			return nil, storePacked(env, "bam", new(big.Int).SetUint64(args[0].(uint64)).Bytes())
		},
		"setBaz":         setBaz,
		"setQuxKeyValue": setQuxKeyValue,
		"setFoobar": func(env *vm.Env, args []interface{}) ([]interface{}, error) {
			if err := storeField(env, "foobar.foo", common.BigToHash(args[0].(*big.Int))); err != nil {
				return nil, err
			}
			return nil, storeField(env, "foobar.bar", common.BigToHash(args[1].(*big.Int)))
		},
	}
	for name, fn := range handlers {
		if err := c.Handle(name, fn); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func storeField(env *vm.Env, path string, v common.Hash, keys ...common.Hash) error {
	slot, err := FixtureLayout.Slot(path, keys...)
	if err != nil {
		return err
	}
	return env.Store(slot, v)
}

// storePacked rewrites one packed field, keeping the other fields sharing
// its slot.
func storePacked(env *vm.Env, path string, value []byte) error {
	f, slot, err := FixtureLayout.Resolve(path)
	if err != nil {
		return err
	}
	word, err := env.Load(slot)
	if err != nil {
		return err
	}
	return env.Store(slot, f.Insert(word, value))
}

func setBaz(env *vm.Env, args []interface{}) ([]interface{}, error) {
	values := args[0].([]*big.Int)
	lenSlot, err := FixtureLayout.Slot("baz")
	if err != nil {
		return nil, err
	}
	prev, err := env.Load(lenSlot)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		if err := storeField(env, "baz", common.BigToHash(v), common.Uint64ToHash(uint64(i))); err != nil {
			return nil, err
		}
	}
	// clear the tail of a longer previous array
	oldLen := common.HashToInt(prev)
	for i := uint256.NewInt(uint64(len(values))); i.Lt(oldLen); i.AddUint64(i, 1) {
		if err := storeField(env, "baz", common.Hash{}, common.IntToHash(i)); err != nil {
			return nil, err
		}
	}
	return nil, env.Store(lenSlot, common.Uint64ToHash(uint64(len(values))))
}

func setQuxKeyValue(env *vm.Env, args []interface{}) ([]interface{}, error) {
	key := common.BigToHash(args[0].(*big.Int))
	return nil, storeField(env, "qux", common.BigToHash(args[1].(*big.Int)), key)
}
