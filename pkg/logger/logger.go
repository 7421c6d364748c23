package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides one leveled logging entry point for the whole client.
// It is backed by a zap SugaredLogger writing to stderr.

var (
	mu    sync.RWMutex
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	base  = newBase()
	sugar = skipped(base)
)

// newBase builds the unskipped logger; With hands it to callers directly
func newBase() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// skipped reports the caller of the package-level helpers
func skipped(l *zap.SugaredLogger) *zap.SugaredLogger {
	return l.Desugar().WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// Debugf logs a debug message
func Debugf(format string, args ...interface{}) {
	current().Debugf(format, args...)
}

// Infof logs an info message
func Infof(format string, args ...interface{}) {
	current().Infof(format, args...)
}

// Warnf logs a warning message
func Warnf(format string, args ...interface{}) {
	current().Warnf(format, args...)
}

// Errorf logs an error message
func Errorf(format string, args ...interface{}) {
	current().Errorf(format, args...)
}

// With returns a logger carrying structured fields, e.g. With("task_id", id)
func With(keysAndValues ...interface{}) *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With(keysAndValues...)
}

// SetLevel sets the minimum log level by name (debug, info, warn, error).
// Unknown names leave the level unchanged.
func SetLevel(name string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(name)))); err != nil {
		return
	}
	level.SetLevel(l)
}

// Use replaces the backing logger, e.g. with zaptest.NewLogger in tests
func Use(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l.Sugar()
	sugar = skipped(base)
}

// UseNop silences all logging
func UseNop() {
	mu.Lock()
	defer mu.Unlock()
	base = zap.NewNop().Sugar()
	sugar = base
}

// Sync flushes buffered entries
func Sync() {
	_ = current().Sync()
}
