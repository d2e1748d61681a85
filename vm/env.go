package vm

import (
	"bytes"

	"github.com/vaporyorg/util-contracts/common"
)

// Env is the view a running program has of its frame.
type Env struct {
	host   *Host
	kind   CallKind
	caller common.Address
	self   common.Address
	code   common.Address
	input  []byte
	static bool
	depth  int
	gas    *gasMeter
	trace  *TraceFrame
}

// Self is the identity and store owner of the frame. Under DelegateCall it
// is the borrowing unit, not the unit whose code runs.
func (e *Env) Self() common.Address { return e.self }

// CodeAddress is the unit whose code is running.
func (e *Env) CodeAddress() common.Address { return e.code }

// Caller is the sender of the frame.
func (e *Env) Caller() common.Address { return e.caller }

func (e *Env) Kind() CallKind { return e.kind }

func (e *Env) Input() []byte { return bytes.Clone(e.input) }

// Static reports whether the frame runs in a read-only context.
func (e *Env) Static() bool { return e.static }

func (e *Env) Depth() int { return e.depth }

func (e *Env) GasLeft() uint64 { return e.gas.left }

// Load reads a word of Self's persistent store.
func (e *Env) Load(slot common.Hash) (common.Hash, error) {
	if err := e.gas.consume(e.host.cfg.SloadGas); err != nil {
		return common.Hash{}, err
	}
	return e.host.state.GetState(e.self, slot)
}

// Store writes a word of Self's persistent store. In a read-only context
// the write is journaled like any other; the read-only frame rejects it
// only if it survives.
func (e *Env) Store(slot common.Hash, value common.Hash) error {
	if err := e.gas.consume(e.host.cfg.SstoreGas); err != nil {
		return err
	}
	e.host.state.SetState(e.self, slot, value)
	return nil
}

// Call invokes to's code against to's own store.
func (e *Env) Call(to common.Address, input []byte) Outcome {
	return e.sub(Call, to, to, e.self, input, e.static)
}

// DelegateCall borrows to's code and runs it against Self's store and
// identity.
func (e *Env) DelegateCall(to common.Address, input []byte) Outcome {
	return e.sub(DelegateCall, e.self, to, e.caller, input, e.static)
}

// StaticCall invokes to's code in a read-only context.
func (e *Env) StaticCall(to common.Address, input []byte) Outcome {
	return e.sub(StaticCall, to, to, e.self, input, true)
}

func (e *Env) sub(kind CallKind, self, code, caller common.Address, input []byte, static bool) Outcome {
	if err := e.gas.consume(e.host.cfg.CallGas); err != nil {
		return Outcome{Err: err}
	}
	forwarded := allButOne64th(e.gas.left)
	e.gas.left -= forwarded

	child := &TraceFrame{}
	e.trace.Children = append(e.trace.Children, child)
	out := e.host.call(frameParams{
		kind:   kind,
		caller: caller,
		self:   self,
		code:   code,
		input:  bytes.Clone(input),
		gas:    forwarded,
		depth:  e.depth + 1,
		static: static,
		trace:  child,
	}, e.static)
	e.gas.refund(out.GasLeft)
	return out
}
