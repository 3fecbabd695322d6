// Package sysreq installs native packages through whichever package manager
// the host provides.
package sysreq

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
	"github.com/ZebulonRouseFrantzich/envprep/internal/runner"
)

// Tool is one package manager binding.
type Tool interface {
	Name() string
	Update(ctx context.Context) error
	Install(ctx context.Context, pkg string) error
	Installed(ctx context.Context, pkg string) bool
}

// commandSet holds the command templates of a shell-driven package manager.
// update and install take the sudo prefix; install and check take the
// package name.
type commandSet struct {
	name      string
	update    string
	install   string
	check     string
	sudoAware bool
}

var commandSets = map[string]commandSet{
	"apt": {
		name:      "apt",
		update:    "%sapt-get update",
		install:   "%sapt-get install -y %s",
		check:     "dpkg -s %s",
		sudoAware: true,
	},
	"yum": {
		name:      "yum",
		update:    "%syum check-update",
		install:   "%syum install -y %s",
		check:     "rpm -q %s",
		sudoAware: true,
	},
	"brew": {
		name:    "brew",
		update:  "brew update",
		install: "brew install %s",
		check:   `test -n "$(brew ls --versions %s)"`,
	},
	"pacman": {
		name:      "pacman",
		update:    "%spacman -Syyu --noconfirm",
		install:   "%spacman -S --noconfirm %s",
		check:     "pacman -Qi %s",
		sudoAware: true,
	},
	"zypper": {
		name:      "zypper",
		update:    "%szypper --non-interactive ref",
		install:   "%szypper --non-interactive in %s",
		check:     "rpm -q %s",
		sudoAware: true,
	},
	"pkg": {
		name:      "pkg",
		update:    "%spkg update",
		install:   "%spkg install -y %s",
		check:     "pkg info %s",
		sudoAware: true,
	},
	"choco": {
		name:    "choco",
		update:  "choco outdated",
		install: "choco install --yes %s",
		check:   `choco search --local-only --exact %s | findstr /c:"1 packages installed."`,
	},
}

// ShellTool drives a package manager through shell command strings.
type ShellTool struct {
	cmds   commandSet
	sudo   string
	runner runner.Runner
	log    output.Logger
}

func newShellTool(cmds commandSet, sudo bool, r runner.Runner, log output.Logger) *ShellTool {
	if log == nil {
		log = output.Nop()
	}
	t := &ShellTool{cmds: cmds, runner: r, log: log}
	if sudo && cmds.sudoAware {
		t.sudo = "sudo "
	}
	return t
}

// NewApt returns the apt-get binding.
func NewApt(sudo bool, r runner.Runner, log output.Logger) *ShellTool {
	return newShellTool(commandSets["apt"], sudo, r, log)
}

// NewYum returns the yum binding.
func NewYum(sudo bool, r runner.Runner, log output.Logger) *ShellTool {
	return newShellTool(commandSets["yum"], sudo, r, log)
}

// NewBrew returns the Homebrew binding. Homebrew refuses to run as root, so
// it never takes the sudo prefix.
func NewBrew(r runner.Runner, log output.Logger) *ShellTool {
	return newShellTool(commandSets["brew"], false, r, log)
}

func (t *ShellTool) Name() string { return t.cmds.name }

func (t *ShellTool) Update(ctx context.Context) error {
	return t.run(ctx, t.format(t.cmds.update, ""))
}

func (t *ShellTool) Install(ctx context.Context, pkg string) error {
	return t.run(ctx, t.format(t.cmds.install, pkg))
}

func (t *ShellTool) Installed(ctx context.Context, pkg string) bool {
	code, err := t.runner.Run(ctx, fmt.Sprintf(t.cmds.check, pkg), false)
	return err == nil && code == 0
}

// format fills the sudo prefix and package name into tmpl. Templates without
// a sudo verb only take the package.
func (t *ShellTool) format(tmpl, pkg string) string {
	var args []interface{}
	if strings.HasPrefix(tmpl, "%s") {
		args = append(args, t.sudo)
	}
	if pkg != "" {
		args = append(args, pkg)
	}
	return fmt.Sprintf(tmpl, args...)
}

func (t *ShellTool) run(ctx context.Context, command string) error {
	t.log.Info("Running: " + command)
	code, err := t.runner.Run(ctx, command, true)
	if err != nil {
		return &CommandFailedError{Command: command, ExitCode: code, Err: err}
	}
	if code != 0 {
		return &CommandFailedError{Command: command, ExitCode: code}
	}
	return nil
}

// NullTool is selected on platforms without a supported package manager.
type NullTool struct {
	log output.Logger
}

// NewNull returns the no-op binding.
func NewNull(log output.Logger) *NullTool {
	if log == nil {
		log = output.Nop()
	}
	return &NullTool{log: log}
}

func (t *NullTool) Name() string { return "null" }

func (t *NullTool) Update(ctx context.Context) error { return nil }

func (t *NullTool) Install(ctx context.Context, pkg string) error {
	t.log.Warn("unsupported platform: only available for linux with apt-get or yum, or macOS with brew", "package", pkg)
	return nil
}

func (t *NullTool) Installed(ctx context.Context, pkg string) bool { return false }

// ToolNames lists the names ToolByName accepts.
func ToolNames() []string {
	names := []string{"null"}
	for name := range commandSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolByName returns the named binding.
func ToolByName(name string, sudo bool, r runner.Runner, log output.Logger) (Tool, error) {
	if name == "null" {
		return NewNull(log), nil
	}
	cmds, ok := commandSets[name]
	if !ok {
		return nil, fmt.Errorf("unknown package tool %q (known: %s)", name, strings.Join(ToolNames(), ", "))
	}
	return newShellTool(cmds, sudo, r, log), nil
}
