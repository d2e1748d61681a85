package accessible

import (
	"context"
	"fmt"

	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/layout"
	"github.com/vaporyorg/util-contracts/vm"
)

// Inspector is the tooling side of an accessible unit: it issues reads and
// simulations as read-only invocations on a Host.
type Inspector struct {
	host *vm.Host
	from common.Address
}

// NewInspector returns an Inspector that invokes as from.
func NewInspector(host *vm.Host, from common.Address) *Inspector {
	return &Inspector{host: host, from: from}
}

func (i *Inspector) Host() *vm.Host { return i.host }

// CallError is a failed invocation seen from outside the substrate.
type CallError struct {
	Method string
	Unit   common.Address
	Result *vm.Result
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Method, e.Unit.Hex(), failure(e.Result.Outcome))
}

// Unwrap exposes the substrate error or the *vm.RevertError.
func (e *CallError) Unwrap() error {
	if e.Result.Err != nil {
		return e.Result.Err
	}
	return e.Result.AsError()
}

func failure(out vm.Outcome) error {
	if out.Err != nil {
		return out.Err
	}
	return out.AsError()
}

// Read returns count words of unit's store starting at start.
func (i *Inspector) Read(ctx context.Context, unit common.Address, start common.Hash, count uint64) ([]byte, error) {
	input, err := PackGetStorageAt(start, count)
	if err != nil {
		return nil, err
	}
	res, err := i.host.Query(ctx, vm.Message{From: i.from, To: unit, Input: input})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, &CallError{Method: "getStorageAt", Unit: unit, Result: res}
	}
	return UnpackBytes(res.Data)
}

// Words is Read split into words.
func (i *Inspector) Words(ctx context.Context, unit common.Address, start common.Hash, count uint64) ([]common.Hash, error) {
	raw, err := i.Read(ctx, unit, start, count)
	if err != nil {
		return nil, err
	}
	return common.BytesToWords(raw)
}

// Reader binds the Inspector to one unit for layout reads.
func (i *Inspector) Reader(ctx context.Context, unit common.Address) layout.WordReader {
	return unitReader{ctx: ctx, in: i, unit: unit}
}

type unitReader struct {
	ctx  context.Context
	in   *Inspector
	unit common.Address
}

func (r unitReader) ReadWords(start common.Hash, count uint64) ([]byte, error) {
	return r.in.Read(r.ctx, r.unit, start, count)
}

// ReadField reads a named field of unit as described by l.
func (i *Inspector) ReadField(ctx context.Context, unit common.Address, l *layout.Layout, path string, keys ...common.Hash) ([]byte, error) {
	return l.Read(i.Reader(ctx, unit), path, keys...)
}

// Simulate calls simulate on unit from a read-only invocation. A failure of
// target comes back as an unsuccessful Result carrying target's reason,
// not as an error. On success Result.Data is target's raw return data.
func (i *Inspector) Simulate(ctx context.Context, unit, target common.Address, payload []byte) (*vm.Result, error) {
	input, err := PackSimulate(target, payload)
	if err != nil {
		return nil, err
	}
	res, err := i.host.Query(ctx, vm.Message{From: i.from, To: unit, Input: input})
	if err != nil {
		return nil, err
	}
	if res.Success {
		data, err := UnpackBytes(res.Data)
		if err != nil {
			return nil, err
		}
		res.Data = data
	}
	return res, nil
}

// Preview runs target's code against unit's store inside a savepoint that
// is always rolled back, and reports the writes it made.
func (i *Inspector) Preview(ctx context.Context, unit, target common.Address, payload []byte) (*vm.Simulation, error) {
	return i.host.SimulateDelegate(ctx, unit, target, payload)
}
