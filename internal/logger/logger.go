// Package logger provides a context-aware structured logger backed by zap.
package logger

import (
	"context"
	"io"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level is the minimum severity a Logger writes.
type Level int8

const (
	LevelDebug Level = iota - 1
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// TraceIDFn extracts a trace id from a context.
type TraceIDFn func(ctx context.Context) string

// LoggerInterface is the logging surface consumed by every package.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	Debugc(ctx context.Context, caller int, msg string, args ...any)
	Infoc(ctx context.Context, caller int, msg string, args ...any)
	Warnc(ctx context.Context, caller int, msg string, args ...any)
	Errorc(ctx context.Context, caller int, msg string, args ...any)
}

// Logger writes key/value structured records.
type Logger struct {
	base      *zap.Logger
	traceIDFn TraceIDFn
}

var _ LoggerInterface = (*Logger)(nil)

// New builds a JSON logger writing to w. A nil traceIDFn falls back to the
// OpenTelemetry span in the context.
func New(w io.Writer, level Level, serviceName string, traceIDFn TraceIDFn) *Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	return build(zapcore.NewJSONEncoder(encCfg), w, level, serviceName, traceIDFn)
}

// NewConsole builds a human-readable logger for local runs.
func NewConsole(w io.Writer, level Level, serviceName string) *Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")

	return build(zapcore.NewConsoleEncoder(encCfg), w, level, serviceName, nil)
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{base: zap.NewNop(), traceIDFn: spanTraceID}
}

func build(enc zapcore.Encoder, w io.Writer, level Level, serviceName string, traceIDFn TraceIDFn) *Logger {
	core := zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.Level(level))
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	if serviceName != "" {
		base = base.With(zap.String("service", serviceName))
	}
	if traceIDFn == nil {
		traceIDFn = spanTraceID
	}
	return &Logger{base: base, traceIDFn: traceIDFn}
}

func spanTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.base.Sync()
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.write(ctx, 0, zapcore.DebugLevel, msg, args)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.write(ctx, 0, zapcore.InfoLevel, msg, args)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.write(ctx, 0, zapcore.WarnLevel, msg, args)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.write(ctx, 0, zapcore.ErrorLevel, msg, args)
}

func (l *Logger) Debugc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, caller, zapcore.DebugLevel, msg, args)
}

func (l *Logger) Infoc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, caller, zapcore.InfoLevel, msg, args)
}

func (l *Logger) Warnc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, caller, zapcore.WarnLevel, msg, args)
}

func (l *Logger) Errorc(ctx context.Context, caller int, msg string, args ...any) {
	l.write(ctx, caller, zapcore.ErrorLevel, msg, args)
}

func (l *Logger) write(ctx context.Context, caller int, lvl zapcore.Level, msg string, args []any) {
	base := l.base
	if caller > 0 {
		base = base.WithOptions(zap.AddCallerSkip(caller))
	}
	if !base.Core().Enabled(lvl) {
		return
	}

	sugar := base.Sugar()
	if ctx != nil {
		if id := l.traceIDFn(ctx); id != "" {
			sugar = sugar.With("trace_id", id)
		}
	}

	switch lvl {
	case zapcore.DebugLevel:
		sugar.Debugw(msg, args...)
	case zapcore.InfoLevel:
		sugar.Infow(msg, args...)
	case zapcore.WarnLevel:
		sugar.Warnw(msg, args...)
	default:
		sugar.Errorw(msg, args...)
	}
}
