// Package rpc serves a world over JSON messages on a websocket: raw and
// layout-aware reads, simulations, and committing or read-only calls.
package rpc

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/simerrors"
	"github.com/vaporyorg/util-contracts/vm"
)

const (
	MethodUnits     = "unit_units"
	MethodRead      = "unit_read"
	MethodReadField = "unit_readField"
	MethodSimulate  = "unit_simulate"
	MethodPreview   = "unit_preview"
	MethodCall      = "unit_call"
	MethodQuery     = "unit_query"
	MethodSubscribe = "unit_subscribe"

	// NotifyCommitted is pushed to subscribers after every committed call.
	NotifyCommitted = "unit_committed"
)

// Error codes follow JSON-RPC 2.0.
const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeServerError    = -32000
)

type Request struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	ID     uint64          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Name is the simerrors name of the cause, when there is one.
	Name string `json:"name,omitempty"`
}

func (e *Error) Error() string { return e.Message }

func newError(code int, err error) *Error {
	e := &Error{Code: code, Message: err.Error()}
	if s := simerrors.Sentinel(err); s != nil {
		e.Name = simerrors.GetErrorName(s)
	}
	return e
}

type UnitInfo struct {
	Address common.Address `json:"address"`
	Kind    string         `json:"kind"`
	Layout  string         `json:"layout,omitempty"`
}

type ReadParams struct {
	Unit  common.Address `json:"unit"`
	Start common.Hash    `json:"start"`
	Count hexutil.Uint64 `json:"count"`
}

type ReadResult struct {
	Data  hexutil.Bytes `json:"data"`
	Words []common.Hash `json:"words"`
}

type ReadFieldParams struct {
	Unit  common.Address `json:"unit"`
	Field string         `json:"field"`
	Keys  []common.Hash  `json:"keys,omitempty"`
}

type ReadFieldResult struct {
	Layout string        `json:"layout"`
	Field  string        `json:"field"`
	Slot   common.Hash   `json:"slot"`
	Value  hexutil.Bytes `json:"value"`
}

type SimulateParams struct {
	Unit    common.Address `json:"unit"`
	Target  common.Address `json:"target"`
	Payload hexutil.Bytes  `json:"payload"`
}

type CallParams struct {
	Unit common.Address `json:"unit"`
	Data hexutil.Bytes  `json:"data"`
	Gas  hexutil.Uint64 `json:"gas,omitempty"`
}

// Outcome is a call outcome as seen by RPC clients. Data is the return data
// on success and the raw failure reason otherwise.
type Outcome struct {
	Success bool           `json:"success"`
	Data    hexutil.Bytes  `json:"data"`
	Message string         `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
	GasUsed hexutil.Uint64 `json:"gasUsed"`
}

func outcomeOf(out vm.Outcome, gasUsed uint64) Outcome {
	o := Outcome{Success: out.Success, Data: out.Data, GasUsed: hexutil.Uint64(gasUsed)}
	if o.Data == nil {
		o.Data = hexutil.Bytes{}
	}
	if !out.Success {
		if msg, ok := vm.DecodeRevertMessage(out.Data); ok {
			o.Message = msg
		}
		if out.Err != nil {
			if s := simerrors.Sentinel(out.Err); s != nil {
				o.Error = simerrors.GetErrorName(s)
			}
		}
	}
	return o
}

type Change struct {
	Slot   common.Hash `json:"slot"`
	Before common.Hash `json:"before"`
	After  common.Hash `json:"after"`
}

type PreviewResult struct {
	Outcome
	Changes []Change `json:"changes"`
}

type Committed struct {
	Unit    common.Address `json:"unit"`
	GasUsed hexutil.Uint64 `json:"gasUsed"`
}
