package accessible

import (
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/vm"
)

// ViewABI is served by the read-only adapter unit. Both methods reach the
// accessible unit through a StaticCall.
const ViewABI = `[
	{"type":"function","name":"viewSimulate","stateMutability":"view",
	 "inputs":[{"name":"accessible","type":"address"},{"name":"targetUnit","type":"address"},{"name":"payload","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"viewDelegate","stateMutability":"view",
	 "inputs":[{"name":"accessible","type":"address"},{"name":"targetUnit","type":"address"},{"name":"payload","type":"bytes"}],
	 "outputs":[{"name":"","type":"bytes"}]}
]`

// NewView returns the read-only adapter. viewSimulate succeeds even when
// the simulated code writes; viewDelegate goes through the committing
// delegate entry point and fails as soon as a write would survive.
func NewView() (*vm.Contract, error) {
	c, err := vm.NewContract("View", ViewABI)
	if err != nil {
		return nil, err
	}
	if err := c.Handle("viewSimulate", viewVia(PackSimulate)); err != nil {
		return nil, err
	}
	if err := c.Handle("viewDelegate", viewVia(PackDelegate)); err != nil {
		return nil, err
	}
	return c, nil
}

func viewVia(pack func(common.Address, []byte) ([]byte, error)) vm.Method {
	return func(env *vm.Env, args []interface{}) ([]interface{}, error) {
		unit := args[0].(common.Address)
		input, err := pack(args[1].(common.Address), args[2].([]byte))
		if err != nil {
			return nil, err
		}
		out := env.StaticCall(unit, input)
		if !out.Success {
			return nil, out.AsError()
		}
		data, err := UnpackBytes(out.Data)
		if err != nil {
			return nil, err
		}
		return []interface{}{data}, nil
	}
}
