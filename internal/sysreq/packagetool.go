package sysreq

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
	"github.com/ZebulonRouseFrantzich/envprep/internal/platform"
	"github.com/ZebulonRouseFrantzich/envprep/internal/runner"
)

const (
	// EnvSudo disables the sudo prefix when set to "False" or "0".
	EnvSudo = "ENVPREP_SYSREQUIRES_SUDO"
	// EnvMode selects the Mode.
	EnvMode = "ENVPREP_SYSREQUIRES_MODE"
)

// Mode controls whether missing packages are installed.
type Mode string

const (
	ModeEnabled  Mode = "enabled"
	ModeVerify   Mode = "verify"
	ModeDisabled Mode = "disabled"
)

// ParseMode accepts the Mode names case-insensitively. Empty means enabled.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeEnabled, nil
	case ModeEnabled, ModeVerify, ModeDisabled:
		return m, nil
	default:
		return "", fmt.Errorf("invalid system requirements mode %q (want enabled, verify or disabled)", s)
	}
}

// SudoFromEnv reports whether package commands should be prefixed with sudo.
func SudoFromEnv() bool {
	v := os.Getenv(EnvSudo)
	return v != "False" && v != "0"
}

// SelectTool picks apt, then yum, then brew on macOS, then the null tool.
func SelectTool(fp platform.Fingerprint, sudo bool, r runner.Runner, log output.Logger) Tool {
	switch {
	case fp.WithApt():
		return NewApt(sudo, r, log)
	case fp.WithYum():
		return NewYum(sudo, r, log)
	case fp.IsMacOS():
		return NewBrew(r, log)
	default:
		return NewNull(log)
	}
}

// InstallOptions controls PackageTool.Install.
type InstallOptions struct {
	Update bool // refresh the package index once before the first install
	Force  bool // install even when a candidate is already present
}

// DefaultInstallOptions updates and does not force.
func DefaultInstallOptions() InstallOptions {
	return InstallOptions{Update: true}
}

// PackageTool ensures native packages are present. It is not safe for
// concurrent use.
type PackageTool struct {
	tool     Tool
	log      output.Logger
	mode     Mode
	upToDate bool
}

// Option configures a PackageTool.
type Option func(*packageToolConfig)

type packageToolConfig struct {
	tool   Tool
	runner runner.Runner
	sudo   *bool
	log    output.Logger
	mode   Mode
	fp     *platform.Fingerprint
}

// WithTool bypasses platform selection.
func WithTool(t Tool) Option {
	return func(c *packageToolConfig) { c.tool = t }
}

// WithRunner sets the command runner used by the selected tool.
func WithRunner(r runner.Runner) Option {
	return func(c *packageToolConfig) { c.runner = r }
}

// WithSudo overrides the environment's sudo setting.
func WithSudo(sudo bool) Option {
	return func(c *packageToolConfig) { c.sudo = &sudo }
}

// WithLogger sets the logger.
func WithLogger(log output.Logger) Option {
	return func(c *packageToolConfig) { c.log = log }
}

// WithMode overrides the environment's mode.
func WithMode(m Mode) Option {
	return func(c *packageToolConfig) { c.mode = m }
}

// WithFingerprint selects the tool for fp instead of the current host.
func WithFingerprint(fp platform.Fingerprint) Option {
	return func(c *packageToolConfig) { c.fp = &fp }
}

// NewPackageTool builds a PackageTool. Without WithTool the tool is chosen
// by SelectTool from the process-wide host fingerprint.
func NewPackageTool(opts ...Option) (*PackageTool, error) {
	cfg := packageToolConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.log == nil {
		cfg.log = output.L()
	}
	if cfg.mode == "" {
		mode, err := ParseMode(os.Getenv(EnvMode))
		if err != nil {
			return nil, err
		}
		cfg.mode = mode
	}

	tool := cfg.tool
	if tool == nil {
		r := cfg.runner
		if r == nil {
			r = runner.NewShell(cfg.log)
		}
		sudo := SudoFromEnv()
		if cfg.sudo != nil {
			sudo = *cfg.sudo
		}
		var fp platform.Fingerprint
		if cfg.fp != nil {
			fp = *cfg.fp
		} else {
			fp = platform.Current()
		}
		tool = SelectTool(fp, sudo, r, cfg.log)
	}

	return &PackageTool{tool: tool, log: cfg.log, mode: cfg.mode}, nil
}

// Tool returns the package manager binding in use.
func (p *PackageTool) Tool() Tool { return p.tool }

// Update refreshes the package index once per PackageTool.
func (p *PackageTool) Update(ctx context.Context) error {
	if p.upToDate {
		return nil
	}
	if err := p.tool.Update(ctx); err != nil {
		return err
	}
	p.upToDate = true
	return nil
}

// Install makes sure one of candidates is installed. Candidates are tried in
// order. With a single candidate its install error is returned as is; with
// several, failures fall through to the next name and only a
// *NoPackageAvailableError is returned when all fail.
func (p *PackageTool) Install(ctx context.Context, candidates []string, opts InstallOptions) error {
	if len(candidates) == 0 {
		return nil
	}

	if p.mode == ModeDisabled {
		p.log.Info("system requirements installation disabled", "packages", strings.Join(candidates, ", "))
		return nil
	}

	if !opts.Force {
		for _, name := range candidates {
			if p.tool.Installed(ctx, name) {
				p.log.Info("Package already installed: " + name)
				return nil
			}
		}
	}

	if p.mode == ModeVerify {
		return &MissingPackagesError{Candidates: candidates}
	}

	if opts.Update {
		if err := p.Update(ctx); err != nil {
			return err
		}
	}

	if len(candidates) == 1 {
		return p.tool.Install(ctx, candidates[0])
	}

	for _, name := range candidates {
		p.log.Info("Trying to install " + name)
		if err := p.tool.Install(ctx, name); err != nil {
			p.log.Debug("candidate failed", "package", name, "error", err)
			continue
		}
		return nil
	}
	return &NoPackageAvailableError{Candidates: candidates}
}
