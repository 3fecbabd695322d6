// Package runner executes shell command strings and reports their exit code.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
)

// Runner runs a command line through the system shell. The error is
// reserved for commands that could not be started; a command that ran and
// failed reports a non-zero exit code and a nil error.
type Runner interface {
	Run(ctx context.Context, command string, showOutput bool) (int, error)
}

// Shell is the Runner backed by os/exec.
type Shell struct {
	log   output.Logger
	shell []string
}

// NewShell returns a Runner that uses bash when available, /bin/sh
// otherwise, and cmd.exe on Windows. Streamed output goes to log.
func NewShell(log output.Logger) *Shell {
	if log == nil {
		log = output.Nop()
	}
	return &Shell{log: log, shell: shellCommand(runtime.GOOS)}
}

func shellCommand(goos string) []string {
	if goos == "windows" {
		return []string{"cmd", "/C"}
	}
	for _, sh := range []string{"/bin/bash", "/usr/bin/bash", "/bin/sh"} {
		if _, err := os.Stat(sh); err == nil {
			return []string{sh, "-c"}
		}
	}
	return []string{"/bin/sh", "-c"}
}

// Run executes command. With showOutput the command's stdout and stderr
// are streamed line by line to the logger; otherwise they are discarded.
func (s *Shell) Run(ctx context.Context, command string, showOutput bool) (int, error) {
	args := append(append([]string(nil), s.shell[1:]...), command)
	cmd := exec.CommandContext(ctx, s.shell[0], args...)

	var wg sync.WaitGroup
	if showOutput {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return -1, fmt.Errorf("stdout pipe for %q: %w", command, err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return -1, fmt.Errorf("stderr pipe for %q: %w", command, err)
		}
		wg.Add(2)
		go s.stream(&wg, stdout, false)
		go s.stream(&wg, stderr, true)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("start %q: %w", command, err)
	}
	wg.Wait()

	err := cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return 0, nil
	case errors.As(err, &exitErr):
		return exitErr.ExitCode(), nil
	default:
		return -1, fmt.Errorf("wait for %q: %w", command, err)
	}
}

// stream logs r line by line until EOF. Lines have no length limit so the
// child never blocks on a full pipe.
func (s *Shell) stream(wg *sync.WaitGroup, r io.Reader, stderr bool) {
	defer wg.Done()
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimRight(line, "\r\n"); line != "" {
			if stderr {
				s.log.Warn(line)
			} else {
				s.log.Info(line)
			}
		}
		if err != nil {
			_, _ = io.Copy(io.Discard, br)
			return
		}
	}
}
