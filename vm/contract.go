package vm

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/vaporyorg/util-contracts/simerrors"
)

// Method handles one ABI method. args are the decoded inputs; the returned
// values are packed against the method's outputs.
type Method func(env *Env, args []interface{}) ([]interface{}, error)

// Fallback handles call data that names no known method.
type Fallback func(env *Env, input []byte) ([]byte, error)

// Contract is a Program that dispatches call data by 4-byte selector to Go
// handlers, using the standard ABI encoding for arguments and results.
type Contract struct {
	name     string
	abi      abi.ABI
	methods  map[string]Method
	fallback Fallback
}

// NewContract parses abiJSON. Every method in it needs a handler before the
// contract can serve it; unhandled methods fail like unknown selectors.
func NewContract(name string, abiJSON string) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("contract %s: parse abi: %w", name, err)
	}
	return &Contract{
		name:    name,
		abi:     parsed,
		methods: make(map[string]Method),
	}, nil
}

// Extend adds the methods of another ABI fragment, used by mixins.
func (c *Contract) Extend(abiJSON string) error {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return fmt.Errorf("contract %s: parse abi: %w", c.name, err)
	}
	for name, m := range parsed.Methods {
		if _, dup := c.abi.Methods[name]; dup {
			return fmt.Errorf("contract %s: method %s declared twice", c.name, name)
		}
		c.abi.Methods[name] = m
	}
	return nil
}

// Handle binds fn to the named method.
func (c *Contract) Handle(name string, fn Method) error {
	if _, ok := c.abi.Methods[name]; !ok {
		return fmt.Errorf("contract %s: no method %q in abi", c.name, name)
	}
	c.methods[name] = fn
	return nil
}

// SetFallback installs the handler for empty or unrecognised call data.
func (c *Contract) SetFallback(fn Fallback) {
	c.fallback = fn
}

func (c *Contract) Name() string { return c.name }

func (c *Contract) ABI() abi.ABI { return c.abi }

// Pack encodes a call to the named method.
func (c *Contract) Pack(name string, args ...interface{}) ([]byte, error) {
	return c.abi.Pack(name, args...)
}

// Unpack decodes the return data of the named method.
func (c *Contract) Unpack(name string, data []byte) ([]interface{}, error) {
	return c.abi.Unpack(name, data)
}

func (c *Contract) Run(env *Env, input []byte) ([]byte, error) {
	if len(input) < 4 {
		return c.runFallback(env, input)
	}
	method, err := c.abi.MethodById(input[:4])
	if err != nil {
		return c.runFallback(env, input)
	}
	fn, ok := c.methods[method.Name]
	if !ok {
		return c.runFallback(env, input)
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %v: %w", c.name, method.Name, err, simerrors.ErrBadInput)
	}
	outs, err := fn(env, args)
	if err != nil {
		return nil, err
	}
	ret, err := method.Outputs.Pack(outs...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: pack outputs: %w", c.name, method.Name, err)
	}
	return ret, nil
}

func (c *Contract) runFallback(env *Env, input []byte) ([]byte, error) {
	if c.fallback == nil {
		return nil, fmt.Errorf("%s: %w", c.name, simerrors.ErrNoFallback)
	}
	return c.fallback(env, input)
}
