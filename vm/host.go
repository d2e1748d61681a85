package vm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/simerrors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/vaporyorg/util-contracts/vm"

// Config holds the substrate limits.
type Config struct {
	GasLimit  uint64 // default gas of a top-level invocation
	MaxDepth  int    // deepest permitted frame; the top-level frame has depth 0
	SloadGas  uint64
	SstoreGas uint64
	CallGas   uint64
}

func DefaultConfig() Config {
	return Config{
		GasLimit:  30_000_000,
		MaxDepth:  1024,
		SloadGas:  800,
		SstoreGas: 5_000,
		CallGas:   700,
	}
}

// Message is a top-level invocation.
type Message struct {
	From  common.Address
	To    common.Address
	Input []byte
	Gas   uint64 // zero means Config.GasLimit
}

// Result is the outcome of a top-level invocation.
type Result struct {
	Outcome
	GasUsed uint64
	Trace   *TraceFrame
}

// Host is the execution substrate. It owns the unit registry and the
// persistent store, and processes one top-level invocation at a time.
type Host struct {
	mu       sync.Mutex
	cfg      Config
	state    StateDB
	programs map[common.Address]Program
	tracer   trace.Tracer
}

func NewHost(db StateDB, cfg Config) *Host {
	return &Host{
		cfg:      cfg,
		state:    db,
		programs: make(map[common.Address]Program),
		tracer:   otel.Tracer(tracerName),
	}
}

func (h *Host) Config() Config {
	return h.cfg
}

// Deploy installs prog as the code of addr.
func (h *Host) Deploy(addr common.Address, prog Program) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.programs[addr]; ok {
		return fmt.Errorf("deploy %s: %w", addr.Hex(), simerrors.ErrUnitExists)
	}
	h.programs[addr] = prog
	log.Debug(log.HostMonitoring, "unit deployed", "unit", addr.Hex(), "program", fmt.Sprintf("%T", prog))
	return nil
}

// Program returns the code deployed at addr.
func (h *Host) Program(addr common.Address) (Program, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	prog, ok := h.programs[addr]
	if !ok {
		return nil, fmt.Errorf("%s: %w", addr.Hex(), simerrors.ErrUnknownUnit)
	}
	return prog, nil
}

// Units returns every deployed address.
func (h *Host) Units() []common.Address {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]common.Address, 0, len(h.programs))
	for addr := range h.programs {
		out = append(out, addr)
	}
	return out
}

// ReadState returns the current value of a slot outside any invocation.
func (h *Host) ReadState(unit common.Address, slot common.Hash) (common.Hash, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state.GetState(unit, slot)
}

// Execute runs msg as a state-committing invocation: on success every
// surviving write is committed.
func (h *Host) Execute(ctx context.Context, msg Message) (*Result, error) {
	return h.invoke(ctx, "unit.execute", msg, false)
}

// Query runs msg in a read-only context. Nothing is ever committed and the
// invocation fails if any write would survive it.
func (h *Host) Query(ctx context.Context, msg Message) (*Result, error) {
	return h.invoke(ctx, "unit.query", msg, true)
}

func (h *Host) invoke(ctx context.Context, spanName string, msg Message, static bool) (*Result, error) {
	ctx, span := h.tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("unit.from", msg.From.Hex()),
		attribute.String("unit.to", msg.To.Hex()),
		attribute.Int("unit.input_len", len(msg.Input)),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	gas := msg.Gas
	if gas == 0 {
		gas = h.cfg.GasLimit
	}
	kind := Call
	if static {
		kind = StaticCall
	}
	root := &TraceFrame{}
	out := h.call(frameParams{
		kind:   kind,
		caller: msg.From,
		self:   msg.To,
		code:   msg.To,
		input:  msg.Input,
		gas:    gas,
		depth:  0,
		static: static,
		trace:  root,
	}, false)

	res := &Result{Outcome: out, GasUsed: gas - out.GasLeft, Trace: root}
	span.SetAttributes(attribute.Bool("unit.success", out.Success), attribute.Int64("unit.gas_used", int64(res.GasUsed)))
	if !out.Success {
		span.SetStatus(codes.Error, failureText(out))
	}

	if static || !out.Success {
		h.state.Discard()
		return res, nil
	}
	if err := h.state.Commit(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return res, nil
}

func failureText(out Outcome) string {
	if out.Err != nil {
		return out.Err.Error()
	}
	return NewRevert(out.Data).Error()
}

type frameParams struct {
	kind   CallKind
	caller common.Address
	self   common.Address
	code   common.Address
	input  []byte
	gas    uint64
	depth  int
	static bool
	trace  *TraceFrame
}

// call runs one frame. parentStatic tells whether the caller was already in
// a read-only context; the frame that introduces read-only mode is the one
// that enforces it.
func (h *Host) call(p frameParams, parentStatic bool) Outcome {
	p.trace.Kind = p.kind
	p.trace.Caller = p.caller
	p.trace.Self = p.self
	p.trace.Code = p.code
	p.trace.Depth = p.depth
	p.trace.Static = p.static
	p.trace.Input = p.input
	p.trace.GasIn = p.gas

	finish := func(out Outcome) Outcome {
		p.trace.Success = out.Success
		p.trace.Output = out.Data
		p.trace.Err = out.Err
		p.trace.GasUsed = p.gas - out.GasLeft
		return out
	}

	if p.depth > h.cfg.MaxDepth {
		log.Debug(log.HostMonitoring, "depth exceeded", "depth", p.depth, "code", p.code.Hex())
		return finish(Outcome{Err: simerrors.ErrDepthExceeded, GasLeft: p.gas})
	}

	prog, ok := h.programs[p.code]
	if !ok {
		// borrowed or direct execution of an empty unit trivially succeeds
		return finish(Outcome{Success: true, GasLeft: p.gas})
	}

	snap := h.state.Snapshot()
	env := &Env{
		host:   h,
		kind:   p.kind,
		caller: p.caller,
		self:   p.self,
		code:   p.code,
		input:  p.input,
		static: p.static,
		depth:  p.depth,
		gas:    &gasMeter{left: p.gas},
		trace:  p.trace,
	}
	log.Trace(log.HostMonitoring, "frame enter", "kind", p.kind, "self", p.self.Hex(), "code", p.code.Hex(), "depth", p.depth, "static", p.static)

	data, err := prog.Run(env, p.input)
	if err == nil && p.static && !parentStatic && h.state.HasWritesSince(snap) {
		err = simerrors.ErrWriteProtection
	}
	if err != nil {
		if rerr := h.state.RevertToSnapshot(snap); rerr != nil {
			log.Error(log.HostMonitoring, "revert failed", "err", rerr)
		}
		var revert *RevertError
		if errors.As(err, &revert) {
			log.Trace(log.HostMonitoring, "frame reverted", "code", p.code.Hex(), "depth", p.depth, "reason", fmt.Sprintf("%x", revert.reason))
			return finish(Outcome{Data: revert.Reason(), Err: revert, GasLeft: env.gas.left})
		}
		log.Debug(log.HostMonitoring, "frame failed", "code", p.code.Hex(), "depth", p.depth, "err", err)
		return finish(Outcome{Err: err})
	}
	log.Trace(log.HostMonitoring, "frame exit", "code", p.code.Hex(), "depth", p.depth, "out", len(data))
	return finish(Outcome{Success: true, Data: data, GasLeft: env.gas.left})
}
