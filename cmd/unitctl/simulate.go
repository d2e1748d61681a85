package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/config"
	"github.com/vaporyorg/util-contracts/state"
	"github.com/vaporyorg/util-contracts/vm"
)

func (a *app) simulateCmd() *cobra.Command {
	var preview, diff, showTrace bool
	cmd := &cobra.Command{
		Use:   "simulate <unit> <target> <method|0xpayload> [args...]",
		Short: "Run target's code against unit's store and discard its effects",
		Long: "Calls simulate on unit from a read-only invocation. The payload is a method\n" +
			"of target's kind with its arguments, or raw 0x call data. --preview runs the\n" +
			"same code in a host savepoint instead and lists the writes it would make.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := common.ParseAddress(args[0])
			if err != nil {
				return err
			}
			target, err := common.ParseAddress(args[1])
			if err != nil {
				return err
			}
			return a.withWorld(func(w *config.World) error {
				payload, m, err := encodeCall(w, target, args[2], args[3:])
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				if !preview && !diff {
					res, err := w.Inspector.Simulate(ctx, unit, target, payload)
					if err != nil {
						return err
					}
					printOutcome(out, res.Outcome, m)
					fmt.Fprintf(out, "gas used: %d\n", res.GasUsed)
					if showTrace {
						fmt.Fprint(out, res.Trace.String())
					}
					return nil
				}
				sim, err := w.Inspector.Preview(ctx, unit, target, payload)
				if err != nil {
					return err
				}
				printOutcome(out, sim.Outcome, m)
				fmt.Fprintf(out, "gas used: %d\n", sim.GasUsed)
				for _, c := range sim.Changes {
					fmt.Fprintf(out, "  %s: %s -> %s\n", c.Slot.Hex(), c.Before.Hex(), c.After.Hex())
				}
				if diff {
					if err := printDiff(out, w, unit, sim); err != nil {
						return err
					}
				}
				if showTrace {
					fmt.Fprint(out, sim.Trace.String())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&preview, "preview", false, "Simulate in a host savepoint and list the writes")
	cmd.Flags().BoolVar(&diff, "diff", false, "Show the store before and after the previewed writes (implies --preview)")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print the call tree")
	return cmd
}

func printDiff(out io.Writer, w *config.World, unit common.Address, sim *vm.Simulation) error {
	before, err := w.State.Dump(unit)
	if err != nil {
		return err
	}
	rendered, modified, err := state.DiffDumps(before, before.Apply(sim.Changes))
	if err != nil {
		return err
	}
	if !modified {
		fmt.Fprintln(out, "store unchanged")
		return nil
	}
	fmt.Fprint(out, rendered)
	return nil
}

func (a *app) callCmd() *cobra.Command {
	var query, showTrace bool
	cmd := &cobra.Command{
		Use:   "call <unit> <method|0xdata> [args...]",
		Short: "Invoke a unit and commit its writes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := common.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return a.withWorld(func(w *config.World) error {
				data, m, err := encodeCall(w, unit, args[1], args[2:])
				if err != nil {
					return err
				}
				res, err := invoke(cmd, w, query, vm.Message{From: a.cfg.From, To: unit, Input: data})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printOutcome(out, res.Outcome, m)
				fmt.Fprintf(out, "gas used: %d\n", res.GasUsed)
				if showTrace {
					fmt.Fprint(out, res.Trace.String())
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&query, "query", false, "Invoke read-only; any surviving write fails the call")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Print the call tree")
	return cmd
}

func invoke(cmd *cobra.Command, w *config.World, readOnly bool, msg vm.Message) (*vm.Result, error) {
	if readOnly {
		return w.Host.Query(cmd.Context(), msg)
	}
	return w.Host.Execute(cmd.Context(), msg)
}
