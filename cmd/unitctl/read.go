package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/config"
)

func (a *app) readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <unit> <start> [count]",
		Short: "Read raw words of a unit's store through getStorageAt",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := common.ParseAddress(args[0])
			if err != nil {
				return err
			}
			start, err := common.ParseWord(args[1])
			if err != nil {
				return err
			}
			count := uint64(1)
			if len(args) == 3 {
				if count, err = strconv.ParseUint(args[2], 0, 64); err != nil {
					return fmt.Errorf("invalid count %q: %w", args[2], err)
				}
			}
			return a.withWorld(func(w *config.World) error {
				words, err := w.Inspector.Words(cmd.Context(), unit, start, count)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				one := common.HashToInt(common.Uint64ToHash(1))
				slot := start
				for _, word := range words {
					fmt.Fprintf(out, "%s: %s\n", slot.Hex(), word.Hex())
					slot = common.AddToHash(slot, one)
				}
				return nil
			})
		},
	}
}

func (a *app) fieldCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "field <unit> <path> [keys...]",
		Short: "Read a named field of a unit through its storage layout",
		Long:  "Reads path (for example foo, bar, baz, baz[], qux or foobar.bar) of a unit\nwhose kind publishes a layout. Array and mapping fields take one key.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := common.ParseAddress(args[0])
			if err != nil {
				return err
			}
			keys := make([]common.Hash, 0, len(args)-2)
			for _, k := range args[2:] {
				key, err := common.ParseWord(k)
				if err != nil {
					return err
				}
				keys = append(keys, key)
			}
			return a.withWorld(func(w *config.World) error {
				l, err := w.Layout(unit)
				if err != nil {
					return err
				}
				ctx := cmd.Context()
				out := cmd.OutOrStdout()
				if path, ok := arrayPath(args[1]); ok && len(keys) == 0 {
					elems, err := l.ReadArray(w.Inspector.Reader(ctx, unit), path)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s.%s (%d elements)\n", l.ID(), path, len(elems))
					for i, e := range elems {
						fmt.Fprintf(out, "  [%d] %s\n", i, e.Hex())
					}
					return nil
				}
				value, err := w.Inspector.ReadField(ctx, unit, l, args[1], keys...)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s.%s = %s\n", l.ID(), args[1], hexutil.Encode(value))
				return nil
			})
		},
	}
}

func arrayPath(p string) (string, bool) {
	if len(p) > 2 && p[len(p)-2:] == "[]" {
		return p[:len(p)-2], true
	}
	return p, false
}

func (a *app) dumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <unit>",
		Short: "Print every non-zero slot of a unit as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := common.ParseAddress(args[0])
			if err != nil {
				return err
			}
			return a.withWorld(func(w *config.World) error {
				d, err := w.State.Dump(unit)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(d)
			})
		},
	}
}
