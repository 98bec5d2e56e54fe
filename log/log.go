package log

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Field = zap.Field

type Logger struct {
	l     *zap.Logger
	level zap.AtomicLevel
}

type ctxKey struct{}

var (
	mu  sync.RWMutex
	std = DevLogger(os.Stderr, InfoLevel)
)

// Default returns the application wide logger
func Default() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// ResetDefault replaces the application wide logger.
// Not safe to call while other goroutines are logging via package functions.
func ResetDefault(l *Logger) {
	mu.Lock()
	defer mu.Unlock()
	std = l
}

// AddToContext stores l in ctx
func AddToContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// GetFromContext returns the logger stored in ctx or the default logger
func GetFromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
			return l
		}
	}
	return Default()
}

func (l *Logger) Named(name string) *Logger {
	return &Logger{l: l.l.Named(name), level: l.level}
}

func (l *Logger) WithOptions(opts ...Option) *Logger {
	return &Logger{l: l.l.WithOptions(opts...), level: l.level}
}

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{l: l.l.With(fields...), level: l.level}
}

func (l *Logger) Level() Level {
	return l.level.Level()
}

func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level)
}

func (l *Logger) Debug(msg string, fields ...Field) {
	l.l.Debug(msg, fields...)
}

func (l *Logger) Info(msg string, fields ...Field) {
	l.l.Info(msg, fields...)
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.l.Warn(msg, fields...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.l.Error(msg, fields...)
}

func (l *Logger) Fatal(msg string, fields ...Field) {
	l.l.Fatal(msg, fields...)
}

func (l *Logger) Sync() error {
	return l.l.Sync()
}

func Debug(msg string, fields ...Field) { Default().l.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { Default().l.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { Default().l.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { Default().l.Error(msg, fields...) }
func Fatal(msg string, fields ...Field) { Default().l.Fatal(msg, fields...) }

func Fatalf(template string, args ...any) {
	Default().l.Sugar().Fatalf(template, args...)
}

// field helpers
var (
	Skip       = zap.Skip
	Binary     = zap.Binary
	Bool       = zap.Bool
	ByteString = zap.ByteString
	Float64    = zap.Float64
	Float32    = zap.Float32
	Int        = zap.Int
	Int64      = zap.Int64
	Int32      = zap.Int32
	Uint32     = zap.Uint32
	Uint64     = zap.Uint64
	String     = zap.String
	Strings    = zap.Strings
	Reflect    = zap.Reflect
	Stringer   = zap.Stringer
	Time       = zap.Time
	Any        = zap.Any
	ErrorField = zap.Error
)

func Duration(key string, val time.Duration) Field {
	return zap.Duration(key, val)
}
