// Package output carries envprep's diagnostics: a small structured Logger
// interface that library packages depend on, a zap-backed implementation
// installed once by the CLI, and a Console that adds raw writes and
// terminal detection for progress reporting.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging for envprep operations.
type Logger interface {
	// Debug logs debug-level messages with optional key-value pairs.
	Debug(msg string, keysAndValues ...interface{})

	// Info logs info-level messages with optional key-value pairs.
	Info(msg string, keysAndValues ...interface{})

	// Warn logs warning-level messages with optional key-value pairs.
	Warn(msg string, keysAndValues ...interface{})

	// Error logs error-level messages with optional key-value pairs.
	Error(msg string, keysAndValues ...interface{})
}

// noopLogger discards everything. It is returned before Init is called.
type noopLogger struct{}

func (noopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Nop returns a Logger that drops all messages.
func Nop() Logger {
	return noopLogger{}
}

// zapLogger adapts a SugaredLogger to Logger.
type zapLogger struct {
	s *zap.SugaredLogger
}

func (z zapLogger) Debug(msg string, kv ...interface{}) { z.s.Debugw(msg, kv...) }
func (z zapLogger) Info(msg string, kv ...interface{})  { z.s.Infow(msg, kv...) }
func (z zapLogger) Warn(msg string, kv ...interface{})  { z.s.Warnw(msg, kv...) }
func (z zapLogger) Error(msg string, kv ...interface{}) { z.s.Errorw(msg, kv...) }

// FromZap wraps a SugaredLogger.
func FromZap(s *zap.SugaredLogger) Logger {
	if s == nil {
		return Nop()
	}
	return zapLogger{s: s}
}

var (
	mu     sync.RWMutex
	global Logger = noopLogger{}
)

// Init installs l as the process-wide logger.
func Init(l Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = noopLogger{}
	}
	global = l
}

// L returns the process-wide logger, or a no-op logger if Init was never called.
func L() Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// NewZap builds a console-encoded zap logger writing to w at the given level
// ("debug", "info", "warn", "error").
func NewZap(level string, w io.Writer) (*zap.SugaredLogger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), lvl)
	return zap.New(core).Sugar(), nil
}
