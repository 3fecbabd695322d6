// Package config loads envprep's YAML settings and applies environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ZebulonRouseFrantzich/envprep/internal/sysreq"
)

// Environment variables consulted by Load.
const (
	EnvConfigDir = "ENVPREP_CONFIG_DIR"
	EnvCacheDir  = "ENVPREP_CACHE_DIR"
	EnvLogLevel  = "ENVPREP_LOG_LEVEL"
)

// Settings is the on-disk configuration.
type Settings struct {
	LogLevel    string      `yaml:"log_level"`
	CacheDir    string      `yaml:"cache_dir"`
	Download    Download    `yaml:"download"`
	SysRequires SysRequires `yaml:"sysrequires"`
}

// Download configures fetches.
type Download struct {
	Verify    bool          `yaml:"verify"`
	Retry     int           `yaml:"retry"`
	RetryWait time.Duration `yaml:"retry_wait"`
}

// SysRequires configures native package installation.
type SysRequires struct {
	Sudo bool        `yaml:"sudo"`
	Mode sysreq.Mode `yaml:"mode"`
	Tool string      `yaml:"tool"` // empty selects by platform
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		LogLevel: "info",
		CacheDir: defaultCacheDir(),
		Download: Download{
			Verify:    true,
			Retry:     2,
			RetryWait: 5 * time.Second,
		},
		SysRequires: SysRequires{
			Sudo: true,
			Mode: sysreq.ModeEnabled,
		},
	}
}

// Dir returns the configuration directory.
func Dir() string {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "envprep")
	}
	return ".envprep"
}

// DefaultPath returns the config file Load reads when given no path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func defaultCacheDir() string {
	if dir := os.Getenv(EnvCacheDir); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "envprep")
	}
	return filepath.Join(os.TempDir(), "envprep")
}

// Load reads path (DefaultPath when empty) over the defaults and applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Settings, error) {
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Settings) applyEnv() error {
	if v := os.Getenv(EnvLogLevel); v != "" {
		s.LogLevel = v
	}
	if v := os.Getenv(EnvCacheDir); v != "" {
		s.CacheDir = v
	}
	if v, ok := os.LookupEnv(sysreq.EnvSudo); ok && v != "" {
		s.SysRequires.Sudo = sysreq.SudoFromEnv()
	}
	if v := os.Getenv(sysreq.EnvMode); v != "" {
		mode, err := sysreq.ParseMode(v)
		if err != nil {
			return &ValidationError{Field: sysreq.EnvMode, Message: err.Error()}
		}
		s.SysRequires.Mode = mode
	}
	return nil
}

// Validate checks field ranges and names.
func (s *Settings) Validate() error {
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{Field: "log_level", Message: fmt.Sprintf("unknown level %q", s.LogLevel)}
	}
	if s.Download.Retry < 0 {
		return &ValidationError{Field: "download.retry", Message: "must not be negative"}
	}
	if s.Download.RetryWait < 0 {
		return &ValidationError{Field: "download.retry_wait", Message: "must not be negative"}
	}
	if _, err := sysreq.ParseMode(string(s.SysRequires.Mode)); err != nil {
		return &ValidationError{Field: "sysrequires.mode", Message: err.Error()}
	}
	if s.SysRequires.Tool != "" {
		known := sysreq.ToolNames()
		if !slices.Contains(known, s.SysRequires.Tool) {
			return &ValidationError{
				Field:   "sysrequires.tool",
				Message: fmt.Sprintf("unknown tool %q (known: %s)", s.SysRequires.Tool, strings.Join(known, ", ")),
			}
		}
	}
	return nil
}

// Save writes s to path as YAML, creating the directory.
func Save(s *Settings, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ValidationError names the offending setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}
