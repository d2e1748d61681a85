package simerrors

import (
	"errors"
	"strings"
)

// Substrate (V) Errors. These abort a frame without a usable failure reason.
var (
	ErrDepthExceeded   = errors.New("V1|DepthExceeded: Call depth limit exceeded.")
	ErrOutOfGas        = errors.New("V2|OutOfGas: Frame ran out of gas.")
	ErrWriteProtection = errors.New("V3|WriteProtection: Store mutation survives a read-only context.")
	ErrNoFallback      = errors.New("V4|NoFallback: Unit has no handler for the call data.")
	ErrBadInput        = errors.New("V5|BadInput: Call data could not be decoded.")
	ErrUnknownUnit     = errors.New("V6|UnknownUnit: No unit deployed at address.")
	ErrUnitExists      = errors.New("V7|UnitExists: A unit is already deployed at address.")
)

// Simulator (S) Errors
var (
	ErrEnvelopeMalformed = errors.New("S1|EnvelopeMalformed: Simulation envelope could not be decoded.")
	ErrEnvelopeMissing   = errors.New("S2|EnvelopeMissing: Internal simulation entry point returned without failing.")
	ErrSavepointUnknown  = errors.New("S3|SavepointUnknown: Savepoint is not active.")
)

// Layout (L) Errors
var (
	ErrLayoutField   = errors.New("L1|LayoutField: Field is not part of the layout.")
	ErrLayoutKind    = errors.New("L2|LayoutKind: Operation does not apply to the field kind.")
	ErrLayoutInvalid = errors.New("L3|LayoutInvalid: Layout descriptor is inconsistent.")
	ErrLayoutKeys    = errors.New("L4|LayoutKeys: Wrong number of keys for the field.")
)

// Configuration (C) Errors
var (
	ErrConfig = errors.New("C1|Config: Invalid configuration.")
)

var all = []error{
	ErrDepthExceeded, ErrOutOfGas, ErrWriteProtection, ErrNoFallback, ErrBadInput, ErrUnknownUnit, ErrUnitExists,
	ErrEnvelopeMalformed, ErrEnvelopeMissing, ErrSavepointUnknown,
	ErrLayoutField, ErrLayoutKind, ErrLayoutInvalid, ErrLayoutKeys,
	ErrConfig,
}

// Sentinel returns the sentinel wrapped by err, or nil.
func Sentinel(err error) error {
	for _, s := range all {
		if errors.Is(err, s) {
			return s
		}
	}
	return nil
}

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	if s := Sentinel(err); s != nil {
		err = s
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if s := Sentinel(err); s != nil {
		err = s
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	return strings.TrimSpace(parts[0])
}

// GetErrorDesc extracts the error description from the error message.
func GetErrorDesc(err error) string {
	if err == nil {
		return ""
	}
	if s := Sentinel(err); s != nil {
		err = s
	}
	parts := strings.SplitN(err.Error(), ":", 2)
	if len(parts) < 2 {
		return "DESC NOT SET"
	}
	return strings.TrimSpace(parts[1])
}
