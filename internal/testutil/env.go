// Package testutil provides utilities for testing envprep in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points envprep's configuration and cache at fresh temporary
// directories and clears the environment overrides, so tests never read the
// user's settings or hold the user's install lock.
//
// Cleanup is handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) (configDir, cacheDir string) {
	t.Helper()

	tmpDir := t.TempDir()
	configDir = filepath.Join(tmpDir, "config")
	cacheDir = filepath.Join(tmpDir, "cache")

	t.Setenv("ENVPREP_CONFIG_DIR", configDir)
	t.Setenv("ENVPREP_CACHE_DIR", cacheDir)
	t.Setenv("ENVPREP_SYSREQUIRES_SUDO", "")
	t.Setenv("ENVPREP_SYSREQUIRES_MODE", "")
	t.Setenv("ENVPREP_LOG_LEVEL", "")

	for _, dir := range []string{configDir, cacheDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}
	return configDir, cacheDir
}
