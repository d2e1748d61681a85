package vm

import (
	"context"
	"fmt"

	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/log"
	"github.com/vaporyorg/util-contracts/state"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Simulation is the captured result of a rolled-back borrowed execution.
type Simulation struct {
	Outcome
	GasUsed uint64
	// Changes are the writes the borrowed code made to the owner's store
	// before they were rolled back. Empty when the execution failed.
	Changes []state.SlotChange
	Trace   *TraceFrame
}

// SimulateDelegate runs target's code against owner's store and identity
// inside a savepoint, captures the outcome and the writes it made, and
// always rolls the savepoint back. The outcome is returned as a plain
// value: a genuine failure of target is reported in Simulation, not as an
// error.
func (h *Host) SimulateDelegate(ctx context.Context, owner, target common.Address, payload []byte) (*Simulation, error) {
	ctx, span := h.tracer.Start(ctx, "unit.simulate_delegate", trace.WithAttributes(
		attribute.String("unit.owner", owner.Hex()),
		attribute.String("unit.target", target.Hex()),
	))
	defer span.End()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	sp := h.state.Begin("simulate")
	root := &TraceFrame{}
	out := h.call(frameParams{
		kind:   DelegateCall,
		caller: owner,
		self:   owner,
		code:   target,
		input:  payload,
		gas:    h.cfg.GasLimit,
		trace:  root,
	}, false)

	changes, cerr := h.state.Changes(sp)
	if err := h.state.Rollback(sp); err != nil {
		h.state.Discard()
		return nil, fmt.Errorf("simulate %s on %s: %w", target.Hex(), owner.Hex(), err)
	}
	h.state.Discard()
	if cerr != nil {
		return nil, cerr
	}

	span.SetAttributes(attribute.Bool("unit.success", out.Success), attribute.Int("unit.changes", len(changes)))
	log.Debug(log.SimMonitoring, "savepoint simulation", "owner", owner.Hex(), "target", target.Hex(), "success", out.Success, "changes", len(changes))
	return &Simulation{
		Outcome: out,
		GasUsed: h.cfg.GasLimit - out.GasLeft,
		Changes: changes,
		Trace:   root,
	}, nil
}
