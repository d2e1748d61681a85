package main

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/config"
	"github.com/vaporyorg/util-contracts/units"
	"github.com/vaporyorg/util-contracts/vm"
)

func (a *app) demoCmd() *cobra.Command {
	var showTrace bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through reads and simulations on a fresh in-memory world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.VM = a.cfg.VM
			cfg.From = a.cfg.From
			cfg.CacheSize = a.cfg.CacheSize
			w, err := config.Open(cfg)
			if err != nil {
				return err
			}
			defer w.Close()
			d := &demo{ctx: cmd.Context(), w: w, out: cmd.OutOrStdout(), trace: showTrace}
			return d.run()
		},
	}
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print the call tree of every invocation")
	return cmd
}

type demo struct {
	ctx   context.Context
	w     *config.World
	out   io.Writer
	trace bool
}

const demoSteps = 6

func (d *demo) step(n int, title string) {
	fmt.Fprintf(d.out, "\n[%d/%d] %s\n", n, demoSteps, title)
}

func (d *demo) showTrace(t *vm.TraceFrame) {
	if d.trace && t != nil {
		fmt.Fprint(d.out, t.String())
	}
}

func (d *demo) pack(kind, method string, args ...interface{}) ([]byte, error) {
	c, err := units.Build(kind)
	if err != nil {
		return nil, err
	}
	return c.Pack(method, args...)
}

func (d *demo) execute(kind string, unit common.Address, method string, args ...interface{}) error {
	input, err := d.pack(kind, method, args...)
	if err != nil {
		return err
	}
	res, err := d.w.Host.Execute(d.ctx, vm.Message{From: d.w.Config.From, To: unit, Input: input})
	if err != nil {
		return err
	}
	d.showTrace(res.Trace)
	if !res.Success {
		return fmt.Errorf("%s failed: %s", method, res.Outcome)
	}
	return nil
}

func (d *demo) run() error {
	fixture, library, view := config.DefaultFixture, config.DefaultLibrary, config.DefaultView
	in := d.w.Inspector

	d.step(1, "Writing the fixture through its own methods")
	if err := d.execute(units.KindFixture, fixture, "setFoo", big.NewInt(42)); err != nil {
		return err
	}
	if err := d.execute(units.KindFixture, fixture, "setBaz", []*big.Int{big.NewInt(42), big.NewInt(1337)}); err != nil {
		return err
	}
	fmt.Fprintln(d.out, "✓ foo = 42, baz = [42, 1337]")

	d.step(2, "Reading raw words with getStorageAt")
	words, err := in.Words(d.ctx, fixture, common.Hash{}, 1)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "  slot 0: %s\n", words[0].Hex())
	l := units.FixtureLayout
	elems, err := l.ReadArray(in.Reader(d.ctx, fixture), "baz")
	if err != nil {
		return err
	}
	for i, e := range elems {
		fmt.Fprintf(d.out, "  baz[%d]: %s\n", i, e.Big())
	}

	d.step(3, "Simulating the library against the fixture's store")
	payload, err := d.pack(units.KindLibrary, "setAndGetFoo", big.NewInt(7))
	if err != nil {
		return err
	}
	res, err := in.Simulate(d.ctx, fixture, library, payload)
	if err != nil {
		return err
	}
	d.showTrace(res.Trace)
	fmt.Fprintf(d.out, "  simulate returned %s\n", hexutil.Encode(res.Data))
	foo, err := l.ReadUint(in.Reader(d.ctx, fixture), "foo")
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "✓ foo is still %s\n", foo.Dec())

	d.step(4, "Simulating a failure")
	payload, err = d.pack(units.KindLibrary, "doRevertWithReason", "not today")
	if err != nil {
		return err
	}
	res, err = in.Simulate(d.ctx, fixture, library, payload)
	if err != nil {
		return err
	}
	d.showTrace(res.Trace)
	msg, _ := vm.DecodeRevertMessage(res.Data)
	fmt.Fprintf(d.out, "  success=%v reason=%q\n", res.Success, msg)

	d.step(5, "Simulating from a read-only context")
	payload, err = d.pack(units.KindLibrary, "setAndGetFoo", big.NewInt(9))
	if err != nil {
		return err
	}
	for _, method := range []string{"viewSimulate", "viewDelegate"} {
		input, err := d.pack(units.KindView, method, fixture, library, payload)
		if err != nil {
			return err
		}
		qres, err := d.w.Host.Query(d.ctx, vm.Message{From: d.w.Config.From, To: view, Input: input})
		if err != nil {
			return err
		}
		d.showTrace(qres.Trace)
		status := "success"
		if !qres.Success {
			status = "failure"
			qres.Trace.Walk(func(f *vm.TraceFrame) {
				if f.Err != nil {
					if _, isRevert := f.Err.(*vm.RevertError); !isRevert {
						status = "failure: " + f.Err.Error()
					}
				}
			})
		}
		fmt.Fprintf(d.out, "  %s: %s\n", method, status)
	}

	d.step(6, "Previewing writes in a host savepoint")
	sim, err := in.Preview(d.ctx, fixture, library, payload)
	if err != nil {
		return err
	}
	d.showTrace(sim.Trace)
	for _, c := range sim.Changes {
		fmt.Fprintf(d.out, "  %s: %s -> %s\n", c.Slot.Hex(), c.Before.Big(), c.After.Big())
	}
	raw, err := in.Read(d.ctx, fixture, common.Hash{}, 1)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.out, "✓ slot 0 after preview: %s\n", hexutil.Encode(raw))
	return nil
}
