// Package script runs units written in JavaScript. A script defines
// main(input) where input is the call data as a 0x-prefixed hex string, and
// returns the return data the same way (or nothing).
//
// Host functions available to scripts:
//
//	sload(slot) string                store word of self
//	sstore(slot, value)
//	self() / caller() / codeAddress() string
//	isStatic() bool
//	call(to, data) / delegatecall(to, data) / staticcall(to, data)
//	                                  {success: bool, data: string}
//	revert(reason)                    fails the frame with reason (hex)
//	revertMessage(msg)                fails the frame with Error(msg)
//	keccak(data) string
//	log(...args)
//
// Slots and values are hex or decimal words; data arguments are hex.
package script

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/simerrors"
	"github.com/vaporyorg/util-contracts/vm"
)

// DefaultTimeout bounds the wall time of one frame. Scripts do not meter
// their own instructions, so a frame that overruns fails like one that ran
// out of gas.
const DefaultTimeout = 2 * time.Second

// Program is a compiled script unit.
type Program struct {
	name    string
	prog    *goja.Program
	Timeout time.Duration
}

// Compile parses src.
func Compile(name, src string) (*Program, error) {
	prog, err := goja.Compile(name, src, true)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	return &Program{name: name, prog: prog, Timeout: DefaultTimeout}, nil
}

// Load compiles the script at path.
func Load(path string) (*Program, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Compile(filepath.Base(path), string(src))
}

func (p *Program) Name() string { return p.name }

// frame is the state of one Run.
type frame struct {
	env *vm.Env
	rt  *goja.Runtime
	// failed is the error that ends the frame, set before a host function
	// throws
	failed error
}

func (p *Program) Run(env *vm.Env, input []byte) ([]byte, error) {
	rt := goja.New()
	f := &frame{env: env, rt: rt}
	f.bind()

	if p.Timeout > 0 {
		timer := time.AfterFunc(p.Timeout, func() { rt.Interrupt("timeout") })
		defer timer.Stop()
	}

	if _, err := rt.RunProgram(p.prog); err != nil {
		return nil, f.result(err)
	}
	main, ok := goja.AssertFunction(rt.Get("main"))
	if !ok {
		return nil, fmt.Errorf("script %s: no main function: %w", p.name, simerrors.ErrNoFallback)
	}
	ret, err := main(goja.Undefined(), rt.ToValue(hexOf(input)))
	if err != nil {
		return nil, f.result(err)
	}
	if f.failed != nil {
		// the script caught the exception; the frame still fails
		return nil, f.failed
	}
	if goja.IsUndefined(ret) || goja.IsNull(ret) {
		return nil, nil
	}
	out, err := parseData(ret.String())
	if err != nil {
		return nil, fmt.Errorf("script %s: return value: %v: %w", p.name, err, simerrors.ErrBadInput)
	}
	return out, nil
}

// result maps a script exception to the error that fails the frame.
func (f *frame) result(err error) error {
	if f.failed != nil {
		return f.failed
	}
	if _, ok := err.(*goja.InterruptedError); ok {
		log.Debug(log.ScriptMonitoring, "script interrupted", "code", f.env.CodeAddress().Hex())
		return simerrors.ErrOutOfGas
	}
	log.Debug(log.ScriptMonitoring, "script exception", "code", f.env.CodeAddress().Hex(), "err", err)
	return fmt.Errorf("script exception: %v", err)
}

// throw ends the frame with err.
func (f *frame) throw(err error) {
	f.failed = err
	panic(f.rt.NewGoError(err))
}

func (f *frame) bind() {
	set := func(name string, fn interface{}) {
		if err := f.rt.Set(name, fn); err != nil {
			panic(err)
		}
	}
	set("sload", func(slot string) string {
		w, err := f.word(slot)
		if err != nil {
			f.throw(err)
		}
		v, err := f.env.Load(w)
		if err != nil {
			f.throw(err)
		}
		return v.Hex()
	})
	set("sstore", func(slot, value string) {
		s, err := f.word(slot)
		if err != nil {
			f.throw(err)
		}
		v, err := f.word(value)
		if err != nil {
			f.throw(err)
		}
		if err := f.env.Store(s, v); err != nil {
			f.throw(err)
		}
	})
	set("self", func() string { return f.env.Self().Hex() })
	set("caller", func() string { return f.env.Caller().Hex() })
	set("codeAddress", func() string { return f.env.CodeAddress().Hex() })
	set("isStatic", func() bool { return f.env.Static() })
	set("call", f.caller(f.env.Call))
	set("delegatecall", f.caller(f.env.DelegateCall))
	set("staticcall", f.caller(f.env.StaticCall))
	set("revert", func(reason string) {
		b, err := parseData(reason)
		if err != nil {
			f.throw(fmt.Errorf("revert: %v: %w", err, simerrors.ErrBadInput))
		}
		f.throw(vm.NewRevert(b))
	})
	set("revertMessage", func(msg string) {
		f.throw(vm.RevertWithMessage(msg))
	})
	set("keccak", func(data string) string {
		b, err := parseData(data)
		if err != nil {
			f.throw(fmt.Errorf("keccak: %v: %w", err, simerrors.ErrBadInput))
		}
		return common.Keccak256(b).Hex()
	})
	set("log", func(args ...goja.Value) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = a.String()
		}
		log.Debug(log.ScriptMonitoring, "script log", "code", f.env.CodeAddress().Hex(), "msg", strings.Join(parts, " "))
	})
}

func (f *frame) caller(call func(common.Address, []byte) vm.Outcome) func(string, string) map[string]interface{} {
	return func(to, data string) map[string]interface{} {
		addr, err := common.ParseAddress(to)
		if err != nil {
			f.throw(fmt.Errorf("%v: %w", err, simerrors.ErrBadInput))
		}
		input, err := parseData(data)
		if err != nil {
			f.throw(fmt.Errorf("call data: %v: %w", err, simerrors.ErrBadInput))
		}
		out := call(addr, input)
		return map[string]interface{}{
			"success": out.Success,
			"data":    hexOf(out.Data),
		}
	}
}

func (f *frame) word(s string) (common.Hash, error) {
	w, err := common.ParseWord(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("%v: %w", err, simerrors.ErrBadInput)
	}
	return w, nil
}

func hexOf(b []byte) string {
	return hexutil.Encode(b)
}

// parseData decodes hex with or without the 0x prefix.
func parseData(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %w", s, err)
	}
	return b, nil
}
