package platform

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/ZebulonRouseFrantzich/envprep/internal/output"
)

// HostQuery answers the raw questions detection needs.
type HostQuery interface {
	// Platform returns the distribution or product id and its version string.
	Platform(ctx context.Context) (id, version string, err error)
	// Release returns the kernel release (uname -r).
	Release(ctx context.Context) (string, error)
	// Codename returns the distribution codename, "" if none is published.
	Codename(ctx context.Context) (string, error)
}

// gopsutilQuery implements HostQuery on top of gopsutil and /etc.
type gopsutilQuery struct {
	etcDir string
}

// NewHostQuery returns the HostQuery used on real hosts.
func NewHostQuery() HostQuery {
	return &gopsutilQuery{etcDir: "/etc"}
}

func (q *gopsutilQuery) Platform(ctx context.Context) (string, string, error) {
	id, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		return "", "", err
	}
	return id, version, nil
}

func (q *gopsutilQuery) Release(ctx context.Context) (string, error) {
	return host.KernelVersionWithContext(ctx)
}

func (q *gopsutilQuery) Codename(ctx context.Context) (string, error) {
	name, err := readKeyValue(filepath.Join(q.etcDir, "os-release"), "VERSION_CODENAME")
	if err == nil && name != "" {
		return name, nil
	}
	return readKeyValue(filepath.Join(q.etcDir, "lsb-release"), "DISTRIB_CODENAME")
}

// readKeyValue returns the value of key in a shell-style KEY=value file.
func readKeyValue(path, key string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		k, v, ok := strings.Cut(line, "=")
		if !ok || k != key {
			continue
		}
		return strings.Trim(v, `"'`), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan %s: %w", path, err)
	}
	return "", nil
}

// RealDetector implements Detector.
type RealDetector struct {
	goos   string
	goarch string
	query  HostQuery
	log    output.Logger
}

// Option configures a RealDetector.
type Option func(*RealDetector)

// WithHostQuery replaces the host query.
func WithHostQuery(q HostQuery) Option {
	return func(d *RealDetector) { d.query = q }
}

// WithGOOS pretends to run on another operating system.
func WithGOOS(goos string) Option {
	return func(d *RealDetector) { d.goos = goos }
}

// WithLogger sets where detection failures are reported.
func WithLogger(l output.Logger) Option {
	return func(d *RealDetector) { d.log = l }
}

// NewDetector creates a detector for the running host.
func NewDetector(opts ...Option) *RealDetector {
	d := &RealDetector{
		goos:   runtime.GOOS,
		goarch: runtime.GOARCH,
		query:  NewHostQuery(),
		log:    output.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect fills a Fingerprint for the host. Query failures are logged as
// warnings and leave the affected fields empty.
func (d *RealDetector) Detect(ctx context.Context) Fingerprint {
	fp := Fingerprint{
		Family: FamilyFromGOOS(d.goos),
		Arch:   d.goarch,
	}

	switch fp.Family {
	case Linux:
		d.detectLinux(ctx, &fp)
	case Windows:
		if _, version, ok := d.platform(ctx); ok {
			fp.Version = ParseVersion(version)
			fp.VersionName = WindowsReleaseName(fp.Version)
		}
	case MacOS:
		if _, version, ok := d.platform(ctx); ok {
			fp.Version = ParseVersion(version)
			fp.VersionName = MacOSReleaseName(fp.Version)
		}
	case FreeBSD:
		if _, version, ok := d.platform(ctx); ok {
			release, _, _ := strings.Cut(version, "-")
			fp.Version = ParseVersion(release)
			if !fp.Version.IsZero() {
				fp.VersionName = "FreeBSD " + release
			}
		}
	case Solaris:
		release, err := d.query.Release(ctx)
		if err != nil {
			d.log.Warn("cannot determine Solaris release", "error", err)
			break
		}
		fp.Version = ParseVersion(release)
		fp.VersionName = SolarisReleaseName(fp.Version)
	}

	return fp
}

func (d *RealDetector) detectLinux(ctx context.Context, fp *Fingerprint) {
	id, version, ok := d.platform(ctx)
	if ok {
		fp.DistroID = strings.ToLower(strings.TrimSpace(id))
		fp.Version = ParseVersion(version)
	}

	codename, err := d.query.Codename(ctx)
	if err != nil {
		d.log.Debug("no distribution codename", "error", err)
	}
	codename = strings.TrimSpace(codename)
	if strings.EqualFold(codename, "n/a") {
		codename = ""
	}
	fp.VersionName = codename

	if fp.VersionName == "" && fp.DistroID == "debian" {
		fp.VersionName = DebianReleaseName(fp.Version)
	}
}

func (d *RealDetector) platform(ctx context.Context) (string, string, bool) {
	id, version, err := d.query.Platform(ctx)
	if err != nil {
		d.log.Warn("cannot determine platform version", "os", d.goos, "error", err)
		return "", "", false
	}
	return id, version, true
}

var (
	currentOnce sync.Once
	current     Fingerprint
)

// Current returns the fingerprint of the running host, detected on first
// use and never refreshed.
func Current() Fingerprint {
	currentOnce.Do(func() {
		current = DetectPlatform(context.Background())
	})
	return current
}

// DetectPlatform builds a fresh fingerprint for the running host.
func DetectPlatform(ctx context.Context) Fingerprint {
	return NewDetector(WithLogger(output.L())).Detect(ctx)
}
