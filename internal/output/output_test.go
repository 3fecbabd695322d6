package output

import (
	"bytes"
	"strings"
	"testing"
)

// recorder is a Logger that keeps every message for assertions.
type recorder struct {
	lines []string
}

func (r *recorder) Debug(msg string, kv ...interface{}) { r.lines = append(r.lines, "DEBUG "+msg) }
func (r *recorder) Info(msg string, kv ...interface{})  { r.lines = append(r.lines, "INFO "+msg) }
func (r *recorder) Warn(msg string, kv ...interface{})  { r.lines = append(r.lines, "WARN "+msg) }
func (r *recorder) Error(msg string, kv ...interface{}) { r.lines = append(r.lines, "ERROR "+msg) }

func TestGlobalLoggerDefaultsToNop(t *testing.T) {
	Init(nil)
	if _, ok := L().(noopLogger); !ok {
		t.Fatalf("L() = %T, want noopLogger", L())
	}

	rec := &recorder{}
	Init(rec)
	t.Cleanup(func() { Init(nil) })

	L().Info("hello")
	if len(rec.lines) != 1 || rec.lines[0] != "INFO hello" {
		t.Errorf("lines = %v", rec.lines)
	}
}

func TestNewZap(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewZap("warn", &buf)
	if err != nil {
		t.Fatalf("NewZap: %v", err)
	}
	log := FromZap(s)

	log.Info("dropped")
	log.Warn("kept", "file", "a.zip")
	_ = s.Sync()

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info message written at warn level: %q", out)
	}
	if !strings.Contains(out, "WARN") || !strings.Contains(out, "kept") || !strings.Contains(out, "a.zip") {
		t.Errorf("missing warn output: %q", out)
	}
}

func TestNewZapRejectsUnknownLevel(t *testing.T) {
	if _, err := NewZap("loud", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	rec := &recorder{}
	c := NewConsole(&buf, rec)

	if c.Interactive() {
		t.Error("bytes.Buffer reported as terminal")
	}

	c.Write("\r50%")
	c.Warn("careful")

	if buf.String() != "\r50%" {
		t.Errorf("raw output = %q", buf.String())
	}
	if len(rec.lines) != 1 || rec.lines[0] != "WARN careful" {
		t.Errorf("lines = %v", rec.lines)
	}
}

func TestFromZapNil(t *testing.T) {
	if _, ok := FromZap(nil).(noopLogger); !ok {
		t.Error("FromZap(nil) should be a no-op logger")
	}
}
