package output

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Console is the sink long-running operations report through. Messages go
// to the Logger; Write sends raw text (progress bars) to the underlying
// writer.
type Console struct {
	Logger
	out         io.Writer
	interactive bool
}

// NewConsole returns a Console writing raw output to out. Terminal
// detection is done once, here.
func NewConsole(out io.Writer, log Logger) *Console {
	if log == nil {
		log = Nop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Console{
		Logger:      log,
		out:         out,
		interactive: isTerminal(out),
	}
}

// Discard is a Console that drops everything.
func Discard() *Console {
	return NewConsole(io.Discard, Nop())
}

// Write sends s to the underlying writer without decoration.
func (c *Console) Write(s string) {
	_, _ = io.WriteString(c.out, s)
}

// Writer exposes the underlying writer.
func (c *Console) Writer() io.Writer {
	return c.out
}

// Interactive reports whether the underlying writer is a terminal.
func (c *Console) Interactive() bool {
	return c.interactive
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
