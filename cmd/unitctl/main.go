// unitctl inspects and simulates accessible units on a local host.
//
// Every command opens the world described by --config (or the default set
// of units), runs one invocation and prints the outcome. With --datadir the
// store persists between commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/vaporyorg/util-contracts/common"
	"github.com/vaporyorg/util-contracts/config"
	"github.com/vaporyorg/util-contracts/log"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

type app struct {
	configPath string
	dataDir    string
	logLevel   string
	logJSON    bool
	debug      string
	gas        uint64
	from       string

	cfg *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:               "unitctl",
		Short:             "Read and simulate accessible units",
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
	}
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "World file (TOML)")
	pf.StringVar(&a.dataDir, "datadir", "", "LevelDB directory for the store (empty keeps it in memory)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	pf.BoolVar(&a.logJSON, "log-json", false, "Log as JSON")
	pf.StringVar(&a.debug, "debug", "", "Comma-separated log modules to enable, or \"all\"")
	pf.Uint64Var(&a.gas, "gas", 0, "Gas limit per invocation")
	pf.StringVar(&a.from, "from", "", "Sender of top-level invocations")

	rootCmd.AddCommand(
		a.readCmd(),
		a.fieldCmd(),
		a.dumpCmd(),
		a.simulateCmd(),
		a.callCmd(),
		a.packCmd(),
		a.serveCmd(),
		a.consoleCmd(),
		a.demoCmd(),
		versionCmd(),
	)
	return rootCmd
}

// load reads the world file and lets explicitly set flags override it.
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("datadir") {
		cfg.DataDir = a.dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-json") {
		cfg.LogJSON = a.logJSON
	}
	if flags.Changed("debug") {
		cfg.LogModules = a.debug
	}
	if flags.Changed("gas") {
		cfg.VM.GasLimit = a.gas
	}
	if flags.Changed("from") {
		from, err := common.ParseAddress(a.from)
		if err != nil {
			return err
		}
		cfg.From = from
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.InitLoggerTo(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogJSON); err != nil {
		return err
	}
	log.EnableModules(cfg.LogModules)
	a.cfg = cfg
	return nil
}

// withWorld opens the configured world for the duration of fn.
func (a *app) withWorld(fn func(w *config.World) error) error {
	w, err := config.Open(a.cfg)
	if err != nil {
		return err
	}
	defer w.Close()
	return fn(w)
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "unitctl %s (commit %s, built %s)\n", Version, Commit, BuildTime)
		},
	}
}
