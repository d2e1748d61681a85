package units

import (
	"github.com/vaporyorg/util-contracts/accessible"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/vm"
)

const relayABI = `[
	{"type":"function","name":"simulateThrough","inputs":[{"name":"accessible","type":"address"},{"name":"targetUnit","type":"address"},{"name":"payload","type":"bytes"}],"outputs":[{"name":"","type":"bytes"}]}
]`

// NewRelay returns a unit that calls simulate on another unit and passes
// the outcome on unchanged.
func NewRelay() (*vm.Contract, error) {
	c, err := vm.NewContract("Relay", relayABI)
	if err != nil {
		return nil, err
	}
	err = c.Handle("simulateThrough", func(env *vm.Env, args []interface{}) ([]interface{}, error) {
		input, err := accessible.PackSimulate(args[1].(common.Address), args[2].([]byte))
		if err != nil {
			return nil, err
		}
		out := env.Call(args[0].(common.Address), input)
		if !out.Success {
			return nil, out.AsError()
		}
		data, err := accessible.UnpackBytes(out.Data)
		if err != nil {
			return nil, err
		}
		return []interface{}{data}, nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
