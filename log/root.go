package log

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	ethlog "github.com/ethereum/go-ethereum/log"
)

const (
	HostMonitoring   = "host_mod"   // call frames, gas, read-only checks
	StateMonitoring  = "state_mod"  // journal, savepoints, commits
	SimMonitoring    = "sim_mod"    // delegated execution simulator
	ReaderMonitoring = "reader_mod" // raw storage reads
	RPCMonitoring    = "rpc_mod"    // websocket JSON-RPC
	ScriptMonitoring = "script_mod" // goja script units
)

var knownModules = []string{HostMonitoring, StateMonitoring, SimMonitoring, ReaderMonitoring, RPCMonitoring, ScriptMonitoring}

var root atomic.Value

func init() {
	root.Store(NewLogger(ethlog.DiscardHandler()))
}

func ParseLevel(lvl string) (slog.Level, error) {
	switch strings.ToUpper(lvl) {
	case "MAX", "MAXVERBOSITY":
		return levelMaxVerbosity, nil
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	case "CRIT", "CRITICAL":
		return LevelCrit, nil
	default:
		return 0, fmt.Errorf("invalid level: %s", lvl)
	}
}

// InitLoggerTo installs a terminal or JSON logger writing to w.
func InitLoggerTo(w io.Writer, logLevel string, json bool) error {
	logLvl, err := ParseLevel(logLevel)
	if err != nil {
		return err
	}
	if json {
		SetDefault(NewLogger(ethlog.JSONHandlerWithLevel(w, logLvl)))
	} else {
		SetDefault(NewLogger(ethlog.NewTerminalHandlerWithLevel(w, logLvl, false)))
	}
	return nil
}

// SetDefault sets the default global logger
func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

// Root returns the root logger
func Root() Logger {
	return root.Load().(Logger)
}

var (
	moduleMu      sync.RWMutex
	moduleEnabled = map[string]bool{}
)

// EnableModule enables debug and trace logging for the specified module.
func EnableModule(module string) {
	moduleMu.Lock()
	defer moduleMu.Unlock()
	moduleEnabled[module] = true
}

// EnableModules takes a comma separated list; "all" enables every known module.
func EnableModules(modules string) {
	for _, m := range strings.Split(modules, ",") {
		m = strings.TrimSpace(m)
		switch m {
		case "":
		case "all":
			for _, known := range knownModules {
				EnableModule(known)
			}
		default:
			EnableModule(m)
		}
	}
}

// DisableModule disables logging for the specified module.
func DisableModule(module string) {
	moduleMu.Lock()
	defer moduleMu.Unlock()
	moduleEnabled[module] = false
}

func isModuleEnabled(module string) bool {
	moduleMu.RLock()
	defer moduleMu.RUnlock()
	return moduleEnabled[module]
}

// Trace logs a message at the trace level for a specific module.
func Trace(module string, msg string, ctx ...interface{}) {
	if !isModuleEnabled(module) {
		return
	}
	Root().write(LevelTrace, 1, module, msg, ctx)
}

// Debug logs a message at the debug level for a specific module.
func Debug(module string, msg string, ctx ...interface{}) {
	if !isModuleEnabled(module) {
		return
	}
	Root().write(slog.LevelDebug, 1, module, msg, ctx)
}

// Info and above are emitted whatever the module state.
func Info(module string, msg string, ctx ...interface{}) {
	Root().write(slog.LevelInfo, 1, module, msg, ctx)
}

func Warn(module string, msg string, ctx ...interface{}) {
	Root().write(slog.LevelWarn, 1, module, msg, ctx)
}

func Error(module string, msg string, ctx ...interface{}) {
	Root().write(slog.LevelError, 1, module, msg, ctx)
}
