package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"gopkg.in/yaml.v3"

	"github.com/ZebulonRouseFrantzich/envprep/internal/checksum"
	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
	"github.com/ZebulonRouseFrantzich/envprep/internal/testutil"
)

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { output.Init(nil) })

	root := createRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVersion(t *testing.T) {
	testutil.SetupTestEnv(t)
	out, err := execute(t, "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "envprep "+Version) {
		t.Errorf("output = %q", out)
	}
}

func TestResolveLogLevel(t *testing.T) {
	tests := []struct {
		name string
		app  app
		want string
	}{
		{"flag_wins", app{logLevel: "warn", verbose: true}, "warn"},
		{"verbose", app{verbose: true}, "debug"},
		{"default", app{}, "info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.app.resolveLogLevel(); got != tt.want {
				t.Errorf("resolveLogLevel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := createRootCommand()
	for _, name := range []string{"detect", "download", "unpack", "get", "checksum", "patch", "install", "run", "config", "version"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered: %v", name, err)
		}
	}
}

func TestInvalidConfigFails(t *testing.T) {
	testutil.SetupTestEnv(t)
	path := writeConfig(t, "log_level: shouty\n")
	if _, err := execute(t, "", "--config", path, "version"); err == nil {
		t.Fatal("invalid config accepted")
	}
}

func TestDetect(t *testing.T) {
	testutil.SetupTestEnv(t)
	out, err := execute(t, "", "detect")
	if err != nil {
		t.Fatal(err)
	}
	var report detectReport
	if err := yaml.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, out)
	}
	if report.OS == "" || report.Arch == "" || report.PackageTool == "" {
		t.Errorf("incomplete report: %+v", report)
	}
}

func TestChecksum(t *testing.T) {
	testutil.SetupTestEnv(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "pkg.tar.gz")
	if err := os.WriteFile(file, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256([]byte("payload"))
	digest := hex.EncodeToString(sum[:])

	out, err := execute(t, "", "checksum", file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, digest) {
		t.Errorf("output = %q, want digest %s", out, digest)
	}

	if _, err := execute(t, "", "checksum", file, "--expected", digest); err != nil {
		t.Errorf("matching digest rejected: %v", err)
	}

	sums := filepath.Join(dir, "SHA256SUMS")
	if err := os.WriteFile(sums, []byte(digest+" *pkg.tar.gz\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "", "checksum", file, "--sum-file", sums); err != nil {
		t.Errorf("sum file lookup failed: %v", err)
	}

	_, err = execute(t, "", "checksum", file, "-a", "md5", "-e", "00")
	var ie *checksum.IntegrityError
	if !errors.As(err, &ie) {
		t.Errorf("mismatch = %v, want *IntegrityError", err)
	}
}

func TestGet(t *testing.T) {
	testutil.SetupTestEnv(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("src/main.c")
	w.Write([]byte("int main(void) { return 0; }\n"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	body := buf.Bytes()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer server.Close()

	dest := t.TempDir()
	sum := sha256.Sum256(body)
	out, err := execute(t, "", "get", server.URL+"/src.zip", "--dest", dest,
		"--retry", "0", "--sha256", hex.EncodeToString(sum[:]))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !strings.Contains(out, "extracted 1 entries") {
		t.Errorf("output = %q", out)
	}
	if _, err := os.Stat(filepath.Join(dest, "src", "main.c")); err != nil {
		t.Errorf("file not extracted: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "src.zip")); !os.IsNotExist(err) {
		t.Error("archive not removed")
	}
}

func TestPatchFromStdin(t *testing.T) {
	testutil.SetupTestEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "version.h"), []byte("#define V 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	diffText := strings.Join([]string{
		"--- a/version.h",
		"+++ b/version.h",
		"@@ -1 +1 @@",
		"-#define V 1",
		"+#define V 2",
		"",
	}, "\n")

	if _, err := execute(t, diffText, "patch", "-", "-d", dir, "-p", "1"); err != nil {
		t.Fatalf("patch: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "version.h"))
	if string(data) != "#define V 2\n" {
		t.Errorf("version.h = %q", data)
	}
}

func TestInstallWithNullTool(t *testing.T) {
	_, cacheDir := testutil.SetupTestEnv(t)
	path := writeConfig(t, "sysrequires:\n  tool: \"null\"\n")

	if _, err := execute(t, "", "--config", path, "install", "zlib1g-dev", "zlib-devel"); err != nil {
		t.Fatalf("install: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cacheDir, "sysrequires.lock")); !os.IsNotExist(err) {
		t.Error("lock not released")
	}
}

func TestRunRecipe(t *testing.T) {
	testutil.SetupTestEnv(t)
	path := writeConfig(t, "sysrequires:\n  tool: \"null\"\n")

	dir := t.TempDir()
	recipePath := filepath.Join(dir, "prep.lua")
	code := `
		local f = "notes.txt"
		tools.system_install({"cmake"})
		assert(tools.replace_in_file(f, "@OS@", platform.os) == 1)
	`
	if err := os.WriteFile(recipePath, []byte(code), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("built on @OS@\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "", "--config", path, "run", recipePath); err != nil {
		t.Fatalf("run: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "notes.txt"))
	if strings.Contains(string(data), "@OS@") {
		t.Errorf("recipe did not edit file: %q", data)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	configDir, _ := testutil.SetupTestEnv(t)

	out, err := execute(t, "", "config", "init")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, filepath.Join(configDir, "config.yaml")) {
		t.Errorf("output = %q", out)
	}
	if _, err := execute(t, "", "config", "init"); err == nil {
		t.Error("existing config overwritten without --force")
	}

	out, err = execute(t, "", "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "retry: 2") || !strings.Contains(out, "mode: enabled") {
		t.Errorf("config show = %q", out)
	}
}
