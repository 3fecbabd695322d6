package sysreq

import (
	"fmt"
	"strings"
)

// CommandFailedError reports a package manager command that exited non-zero
// or could not be started.
type CommandFailedError struct {
	Command  string
	ExitCode int
	Err      error // set when the command did not start
}

func (e *CommandFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Command '%s' failed: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("Command '%s' failed", e.Command)
}

func (e *CommandFailedError) Unwrap() error {
	return e.Err
}

// NoPackageAvailableError is returned when every candidate name failed to
// install.
type NoPackageAvailableError struct {
	Candidates []string
}

func (e *NoPackageAvailableError) Error() string {
	return fmt.Sprintf("Could not install any of %s", strings.Join(e.Candidates, ", "))
}

// MissingPackagesError is returned in verify mode when no candidate is
// installed.
type MissingPackagesError struct {
	Candidates []string
}

func (e *MissingPackagesError) Error() string {
	return fmt.Sprintf("system requirements missing: none of %s is installed", strings.Join(e.Candidates, ", "))
}
