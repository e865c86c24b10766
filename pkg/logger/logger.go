package logger

import (
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Package-level zap logger. Services log through Info/Error for plain lines
// and InfoJ/ErrorJ for structured audit events keyed by event name.

var (
	mu  sync.RWMutex
	log = newDefault()
)

func newDefault() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Set replaces the package logger; intended for tests.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l != nil {
		log = l
	}
}

func get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func Info(msg string)  { get().Info(msg) }
func Error(msg string) { get().Error(msg) }

// InfoJ logs a structured event with deterministic field order.
func InfoJ(event string, fields map[string]any) { get().Info(event, zfields(fields)...) }

// ErrorJ logs a structured error event with deterministic field order.
func ErrorJ(event string, fields map[string]any) { get().Error(event, zfields(fields)...) }

func zfields(fields map[string]any) []zap.Field {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}
