package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/dop251/goja"
	"github.com/spf13/cobra"
	"github.com/vaporyorg/util-contracts/rpc"
)

func (a *app) consoleCmd() *cobra.Command {
	var url, history string
	cmd := &cobra.Command{
		Use:   "console",
		Short: "JavaScript console against a running unitctl serve",
		Long: "Evaluates JavaScript lines with a `unit` object bound to the unit_* RPC\n" +
			"methods, e.g. unit.readField({unit: \"0x...f1\", field: \"foo\"}).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = "ws://" + a.cfg.RPCAddr
			}
			ctx := cmd.Context()
			conn, err := rpc.Dial(ctx, url)
			if err != nil {
				return err
			}
			defer conn.Close()

			con, err := newConsole(ctx, conn, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			rl, err := readline.NewEx(&readline.Config{
				Prompt:      "> ",
				HistoryFile: history,
			})
			if err != nil {
				return fmt.Errorf("failed to start readline: %w", err)
			}
			defer rl.Close()
			go con.printNotifications(conn.Notifications, rl.Stdout())
			return con.loop(rl)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "Server URL (default ws://<rpc_addr>)")
	cmd.Flags().StringVar(&history, "history", filepath.Join(".", ".unitctl_history"), "Readline history file")
	return cmd
}

type console struct {
	ctx  context.Context
	rt   *goja.Runtime
	conn *rpc.Conn
	out  io.Writer
}

const consolePrelude = `
var unit = new Proxy({}, {
	get: function(target, method) {
		return function(params) {
			return rpc_call("unit_" + method, params);
		};
	}
});
`

func newConsole(ctx context.Context, conn *rpc.Conn, out io.Writer) (*console, error) {
	c := &console{ctx: ctx, rt: goja.New(), conn: conn, out: out}
	c.rt.Set("rpc_call", c.rpcCall)
	c.rt.Set("print", func(args ...goja.Value) {
		for _, arg := range args {
			fmt.Fprintln(c.out, render(arg))
		}
	})
	if _, err := c.rt.RunString(consolePrelude); err != nil {
		return nil, err
	}
	return c, nil
}

// rpcCall forwards one call and returns the decoded result. Failures are
// thrown as JavaScript errors.
func (c *console) rpcCall(method string, params goja.Value) goja.Value {
	var p interface{}
	if params != nil && !goja.IsUndefined(params) && !goja.IsNull(params) {
		p = params.Export()
	}
	var raw json.RawMessage
	if err := c.conn.Call(c.ctx, method, p, &raw); err != nil {
		panic(c.rt.NewGoError(err))
	}
	if len(raw) == 0 {
		return goja.Undefined()
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		panic(c.rt.NewGoError(err))
	}
	return c.rt.ToValue(v)
}

func (c *console) eval(line string) (goja.Value, error) {
	return c.rt.RunString(line)
}

func (c *console) loop(rl *readline.Instance) error {
	if v, err := c.eval("unit.units()"); err != nil {
		fmt.Fprintln(c.out, "startup:", err)
	} else {
		fmt.Fprintln(c.out, "units:", render(v))
	}
	fmt.Fprintln(c.out, "Type 'exit' to quit.")
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit":
			return nil
		}
		v, err := c.eval(line)
		if err != nil {
			fmt.Fprintln(c.out, "error:", err)
			continue
		}
		fmt.Fprintln(c.out, render(v))
	}
}

func (c *console) printNotifications(ch <-chan *rpc.Response, w io.Writer) {
	for n := range ch {
		fmt.Fprintf(w, "\n%s %s\n", n.Method, string(n.Result))
	}
}

// render prints objects as indented JSON and everything else as is.
func render(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	switch exp := v.Export().(type) {
	case map[string]interface{}, []interface{}:
		b, err := json.MarshalIndent(exp, "", "  ")
		if err == nil {
			return string(b)
		}
	}
	return v.String()
}
