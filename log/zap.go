package log

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"moul.io/zapfilter"
)

type Level = zapcore.Level

const (
	DebugLevel = zapcore.DebugLevel
	InfoLevel  = zapcore.InfoLevel
	WarnLevel  = zapcore.WarnLevel
	ErrorLevel = zapcore.ErrorLevel
	FatalLevel = zapcore.FatalLevel
)

type Option = zap.Option

var (
	WithCaller    = zap.WithCaller
	AddCallerSkip = zap.AddCallerSkip
	AddStacktrace = zap.AddStacktrace
)

// ParseLevel converts a textual level (debug, info, ...) into a Level
func ParseLevel(text string) (Level, error) {
	return zapcore.ParseLevel(text)
}

// New creates a logger writing json formatted entries to writer
func New(writer io.Writer, level Level, opts ...Option) *Logger {
	cfg := zap.NewProductionConfig().EncoderConfig
	cfg.EncodeTime = zapcore.RFC3339TimeEncoder
	return newLogger(zapcore.NewJSONEncoder(cfg), writer, level, opts...)
}

// DevLogger creates a logger with console output suitable for development
func DevLogger(writer io.Writer, level Level, opts ...Option) *Logger {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	return newLogger(zapcore.NewConsoleEncoder(cfg), writer, level, opts...)
}

// WithFilter restricts the output of l by zapfilter rules.
// Example: "debug:montecarlo* info:*"
func WithFilter(l *Logger, rules string) (*Logger, error) {
	if rules == "" {
		return l, nil
	}
	filter, err := zapfilter.ParseRules(rules)
	if err != nil {
		return nil, err
	}
	filtered := l.l.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapfilter.NewFilteringCore(c, filter)
	}))
	return &Logger{l: filtered, level: l.level}, nil
}

func newLogger(enc zapcore.Encoder, writer io.Writer, level Level, opts ...Option) *Logger {
	atomicLevel := zap.NewAtomicLevelAt(level)
	core := zapcore.NewCore(enc, zapcore.AddSync(writer), atomicLevel)
	return &Logger{
		l:     zap.New(core, opts...),
		level: atomicLevel,
	}
}
