package log

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"time"
)

const (
	levelMaxVerbosity slog.Level = math.MinInt
	LevelTrace        slog.Level = -8
	LevelDebug                   = slog.LevelDebug
	LevelInfo                    = slog.LevelInfo
	LevelWarn                    = slog.LevelWarn
	LevelError                   = slog.LevelError
	LevelCrit         slog.Level = 12
)

// Logger writes module-tagged key/value records to a slog.Handler.
type Logger interface {
	// With returns a Logger that adds ctx to every record.
	With(ctx ...interface{}) Logger

	Trace(module string, msg string, ctx ...interface{})
	Debug(module string, msg string, ctx ...interface{})
	Info(module string, msg string, ctx ...interface{})
	Warn(module string, msg string, ctx ...interface{})
	Error(module string, msg string, ctx ...interface{})

	Enabled(ctx context.Context, level slog.Level) bool
	Handler() slog.Handler

	// write skips skip frames when recording the call site.
	write(level slog.Level, skip int, module string, msg string, ctx []interface{})
}

type logger struct {
	inner *slog.Logger
}

func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (l *logger) Handler() slog.Handler { return l.inner.Handler() }

func (l *logger) With(ctx ...interface{}) Logger {
	return &logger{inner: l.inner.With(ctx...)}
}

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.inner.Enabled(ctx, level)
}

func (l *logger) write(level slog.Level, skip int, module string, msg string, ctx []interface{}) {
	if !l.inner.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(skip+2, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if module != "" {
		r.AddAttrs(slog.String("module", module))
	}
	r.Add(ctx...)
	_ = l.inner.Handler().Handle(context.Background(), r)
}

func (l *logger) Trace(module string, msg string, ctx ...interface{}) {
	l.write(LevelTrace, 1, module, msg, ctx)
}

func (l *logger) Debug(module string, msg string, ctx ...interface{}) {
	l.write(LevelDebug, 1, module, msg, ctx)
}

func (l *logger) Info(module string, msg string, ctx ...interface{}) {
	l.write(LevelInfo, 1, module, msg, ctx)
}

func (l *logger) Warn(module string, msg string, ctx ...interface{}) {
	l.write(LevelWarn, 1, module, msg, ctx)
}

func (l *logger) Error(module string, msg string, ctx ...interface{}) {
	l.write(LevelError, 1, module, msg, ctx)
}
