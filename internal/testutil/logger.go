package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// Logger records every message it receives. It satisfies output.Logger.
type Logger struct {
	mu    sync.Mutex
	lines []string
}

func (l *Logger) record(level, msg string, kv []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	line := level + " " + msg
	for i := 0; i+1 < len(kv); i += 2 {
		line += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	l.lines = append(l.lines, line)
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.record("DEBUG", msg, kv) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.record("INFO", msg, kv) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.record("WARN", msg, kv) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.record("ERROR", msg, kv) }

// Lines returns a copy of the recorded lines, formatted "LEVEL msg k=v".
func (l *Logger) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}

// Contains reports whether any recorded line at level contains substr.
func (l *Logger) Contains(level, substr string) bool {
	for _, line := range l.Lines() {
		if strings.HasPrefix(line, level+" ") && strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
