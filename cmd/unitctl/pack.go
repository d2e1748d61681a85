package main

import (
	"fmt"
	"io"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/config"
	"github.com/vaporyorg/util-contracts/units"
	"github.com/vaporyorg/util-contracts/vm"
)

func (a *app) packCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <kind> <method> [args...]",
		Short: "Print the call data of a unit method",
		Long: "Encodes a call to method of a unit kind (" + strings.Join(units.Kinds(), ", ") + ").\n" +
			"Integers are decimal or 0x-prefixed, bytes are hex, arrays are comma-separated.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := units.Build(args[0])
			if err != nil {
				return err
			}
			data, _, err := packMethod(c.ABI(), args[1], args[2:])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(data))
			return nil
		},
	}
}

// encodeCall returns the call data for method on unit. A 0x-prefixed method
// is taken as raw call data, and no method is returned.
func encodeCall(w *config.World, unit common.Address, method string, args []string) ([]byte, *abi.Method, error) {
	if strings.HasPrefix(method, "0x") {
		if len(args) > 0 {
			return nil, nil, fmt.Errorf("raw call data takes no arguments")
		}
		data, err := hexutil.Decode(method)
		return data, nil, err
	}
	kind, ok := w.Kind(unit)
	if !ok {
		return nil, nil, fmt.Errorf("%s is not a configured unit", unit.Hex())
	}
	if kind == config.KindScript {
		return nil, nil, fmt.Errorf("unit %s is a script; pass raw 0x call data", unit.Hex())
	}
	c, err := units.Build(kind)
	if err != nil {
		return nil, nil, err
	}
	return packMethod(c.ABI(), method, args)
}

func packMethod(contract abi.ABI, name string, args []string) ([]byte, *abi.Method, error) {
	m, ok := contract.Methods[name]
	if !ok {
		return nil, nil, fmt.Errorf("no method %q", name)
	}
	if len(args) != len(m.Inputs) {
		return nil, nil, fmt.Errorf("%s takes %d arguments, got %d", m.Sig, len(m.Inputs), len(args))
	}
	values := make([]interface{}, len(args))
	for i, s := range args {
		v, err := convertArg(m.Inputs[i].Type, s)
		if err != nil {
			return nil, nil, fmt.Errorf("argument %d (%s): %w", i, m.Inputs[i].Type, err)
		}
		values[i] = v
	}
	data, err := contract.Pack(name, values...)
	if err != nil {
		return nil, nil, err
	}
	return data, &m, nil
}

// convertArg parses s into the Go value abi packs for t.
func convertArg(t abi.Type, s string) (interface{}, error) {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", s)
		}
		if t.T == abi.UintTy {
			if n.Sign() < 0 {
				return nil, fmt.Errorf("negative value %q", s)
			}
			if n.BitLen() > t.Size {
				return nil, fmt.Errorf("%q overflows %s", s, t)
			}
		} else {
			limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
			if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
				return nil, fmt.Errorf("%q overflows %s", s, t)
			}
		}
		if t.Size > 64 {
			return n, nil
		}
		v := reflect.New(t.GetType()).Elem()
		if t.T == abi.UintTy {
			v.SetUint(n.Uint64())
		} else {
			v.SetInt(n.Int64())
		}
		return v.Interface(), nil
	case abi.AddressTy:
		return common.ParseAddress(s)
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		return s, nil
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("%d bytes do not fit %s", len(b), t)
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v.Interface(), nil
	case abi.SliceTy:
		var parts []string
		if s != "" {
			parts = strings.Split(s, ",")
		}
		v := reflect.MakeSlice(t.GetType(), len(parts), len(parts))
		for i, p := range parts {
			elem, err := convertArg(*t.Elem, strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			v.Index(i).Set(reflect.ValueOf(elem))
		}
		return v.Interface(), nil
	}
	return nil, fmt.Errorf("unsupported type %s", t)
}

// formatValue renders an unpacked abi value.
func formatValue(v interface{}) string {
	switch x := v.(type) {
	case []byte:
		return hexutil.Encode(x)
	case common.Address:
		return x.Hex()
	case *big.Int:
		return x.String()
	}
	return fmt.Sprint(v)
}

// printOutcome writes a success with its data, decoded through m when
// known, or a failure with its reason.
func printOutcome(out io.Writer, o vm.Outcome, m *abi.Method) {
	if o.Success {
		fmt.Fprintf(out, "success: %s\n", hexutil.Encode(o.Data))
		if m == nil || len(m.Outputs) == 0 {
			return
		}
		values, err := m.Outputs.Unpack(o.Data)
		if err != nil {
			fmt.Fprintf(out, "  (not %s outputs: %v)\n", m.Name, err)
			return
		}
		for i, v := range values {
			name := m.Outputs[i].Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			fmt.Fprintf(out, "  %s %s = %s\n", m.Outputs[i].Type, name, formatValue(v))
		}
		return
	}
	fmt.Fprintf(out, "failure: %s\n", hexutil.Encode(o.Data))
	if msg, ok := vm.DecodeRevertMessage(o.Data); ok {
		fmt.Fprintf(out, "  reason: %q\n", msg)
	}
	if o.Err != nil {
		if _, isRevert := o.Err.(*vm.RevertError); !isRevert {
			fmt.Fprintf(out, "  error: %v\n", o.Err)
		}
	}
}
