package vm

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/vaporyorg/util-contracts/common"
)

// revertSelector is the selector of Error(string).
var revertSelector = common.Selector("Error(string)")

// RevertError is a failure signalled by a unit's own code. Its reason is
// the only payload that crosses a failing call boundary and is never
// modified after construction.
type RevertError struct {
	reason []byte
}

// NewRevert builds a failure carrying reason verbatim.
func NewRevert(reason []byte) *RevertError {
	return &RevertError{reason: bytes.Clone(reason)}
}

// RevertWithMessage builds a failure whose reason is the standard
// Error(string) encoding of msg.
func RevertWithMessage(msg string) *RevertError {
	return &RevertError{reason: EncodeRevertMessage(msg)}
}

// Reason returns a copy of the raw failure reason.
func (e *RevertError) Reason() []byte {
	return bytes.Clone(e.reason)
}

func (e *RevertError) Error() string {
	if msg, err := abi.UnpackRevert(e.reason); err == nil {
		return "execution reverted: " + msg
	}
	if len(e.reason) == 0 {
		return "execution reverted"
	}
	return fmt.Sprintf("execution reverted: 0x%x", e.reason)
}

// EncodeRevertMessage returns Error(string) call data for msg.
func EncodeRevertMessage(msg string) []byte {
	stringTy, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(msg)
	if err != nil {
		// packing a string cannot fail
		panic(err)
	}
	return append(bytes.Clone(revertSelector), packed...)
}

// DecodeRevertMessage returns the message of an Error(string) reason.
func DecodeRevertMessage(reason []byte) (string, bool) {
	msg, err := abi.UnpackRevert(reason)
	if err != nil {
		return "", false
	}
	return msg, true
}

// Outcome is the tagged result of any call: Success(Data) or
// Failure(Data), where Data is the return data or the failure reason.
type Outcome struct {
	Success bool
	Data    []byte
	// Err is the cause of a failure: a *RevertError, or a substrate error
	// (depth, gas, write protection) whose reason is always empty.
	Err     error
	GasLeft uint64
}

// Reason returns the failure reason, nil on success.
func (o Outcome) Reason() []byte {
	if o.Success {
		return nil
	}
	return o.Data
}

// AsError turns a failure into a *RevertError carrying the same reason, so
// a program can re-raise what it observed unchanged. Nil on success.
func (o Outcome) AsError() error {
	if o.Success {
		return nil
	}
	return NewRevert(o.Data)
}

func (o Outcome) String() string {
	if o.Success {
		return fmt.Sprintf("Success(0x%x)", o.Data)
	}
	if o.Err != nil {
		return fmt.Sprintf("Failure(0x%x: %v)", o.Data, o.Err)
	}
	return fmt.Sprintf("Failure(0x%x)", o.Data)
}
