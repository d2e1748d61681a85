package accessible

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/simerrors"
	"github.com/vaporyorg/util-contracts/vm"
)

var envelopeArgs = func() abi.Arguments {
	boolTy, _ := abi.NewType("bool", "", nil)
	bytesTy, _ := abi.NewType("bytes", "", nil)
	return abi.Arguments{{Name: "success", Type: boolTy}, {Name: "data", Type: bytesTy}}
}()

// EncodeEnvelope encodes the outcome of the inner borrowed execution as
// (bool success, bytes data).
func EncodeEnvelope(success bool, data []byte) []byte {
	if data == nil {
		data = []byte{}
	}
	enc, err := envelopeArgs.Pack(success, data)
	if err != nil {
		// bool and bytes always pack
		panic(err)
	}
	return enc
}

// DecodeEnvelope is the inverse of EncodeEnvelope. Only the canonical
// encoding is accepted and data is a fresh copy of the embedded bytes.
func DecodeEnvelope(reason []byte) (bool, []byte, error) {
	vals, err := envelopeArgs.Unpack(reason)
	if err != nil {
		return false, nil, fmt.Errorf("%v: %w", err, simerrors.ErrEnvelopeMalformed)
	}
	success := vals[0].(bool)
	data := bytes.Clone(vals[1].([]byte))
	if !bytes.Equal(EncodeEnvelope(success, data), reason) {
		return false, nil, fmt.Errorf("non-canonical envelope: %w", simerrors.ErrEnvelopeMalformed)
	}
	return success, data, nil
}

// simulate re-enters the unit through simulateAndRevert so the borrowed
// execution runs in a frame that always fails, then turns the envelope
// back into the target's own outcome.
func simulate(env *vm.Env, args []interface{}) ([]interface{}, error) {
	target := args[0].(common.Address)
	payload := args[1].([]byte)

	input, err := accessibleABI.Pack("simulateAndRevert", target, payload)
	if err != nil {
		return nil, err
	}
	out := env.Call(env.Self(), input)
	if out.Success {
		return nil, fmt.Errorf("simulate %s: %w", target.Hex(), simerrors.ErrEnvelopeMissing)
	}
	success, data, err := DecodeEnvelope(out.Data)
	if err != nil {
		// the internal frame itself was aborted (depth or gas); pass the
		// opaque failure on unchanged
		log.Debug(log.SimMonitoring, "simulate: no envelope", "unit", env.Self().Hex(), "target", target.Hex(), "err", out.Err)
		return nil, out.AsError()
	}
	log.Debug(log.SimMonitoring, "simulate", "unit", env.Self().Hex(), "target", target.Hex(), "success", success, "data", len(data))
	if !success {
		return nil, vm.NewRevert(data)
	}
	return []interface{}{data}, nil
}

// simulateAndRevert runs target's code against the store and identity of
// the frame that called it and always fails with the envelope.
func simulateAndRevert(env *vm.Env, args []interface{}) ([]interface{}, error) {
	target := args[0].(common.Address)
	payload := args[1].([]byte)
	out := env.DelegateCall(target, payload)
	return nil, vm.NewRevert(EncodeEnvelope(out.Success, out.Data))
}
