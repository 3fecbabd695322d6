// Package platform identifies the host operating system, its distribution
// and a human release name, and publishes the result to Lua recipes as a
// read-only table.
//
// Detection never fails: a query that cannot be answered is logged and the
// corresponding field is left empty. Linux distribution details come from
// gopsutil with the codename read from os-release.
package platform

import (
	"context"
	"fmt"
	"slices"
)

// Family is the coarse operating system family of a host.
type Family string

const (
	Linux   Family = "linux"
	Windows Family = "windows"
	MacOS   Family = "macos"
	FreeBSD Family = "freebsd"
	Solaris Family = "solaris"
	Other   Family = "other"
)

// FamilyFromGOOS maps a GOOS value onto a Family.
func FamilyFromGOOS(goos string) Family {
	switch goos {
	case "linux":
		return Linux
	case "windows":
		return Windows
	case "darwin":
		return MacOS
	case "freebsd":
		return FreeBSD
	case "solaris", "illumos":
		return Solaris
	default:
		return Other
	}
}

// Distributions handled by apt and yum respectively.
var (
	aptDistros = []string{"debian", "ubuntu", "knoppix", "linuxmint", "raspbian"}
	yumDistros = []string{"centos", "redhat", "fedora", "pidora", "scientific", "xenserver", "amazon", "oracle"}
)

// Fingerprint describes the host. Version and VersionName are zero when
// they could not be determined.
type Fingerprint struct {
	Family      Family
	DistroID    string // Linux only, lowercase (e.g. "ubuntu")
	Version     Version
	VersionName string // codename or marketing name (e.g. "jessie", "Windows 10")
	Arch        string // GOARCH
}

// IsLinux returns true if the host is Linux.
func (f Fingerprint) IsLinux() bool { return f.Family == Linux }

// IsWindows returns true if the host is Windows.
func (f Fingerprint) IsWindows() bool { return f.Family == Windows }

// IsMacOS returns true if the host is macOS.
func (f Fingerprint) IsMacOS() bool { return f.Family == MacOS }

// IsFreeBSD returns true if the host is FreeBSD.
func (f Fingerprint) IsFreeBSD() bool { return f.Family == FreeBSD }

// IsSolaris returns true if the host is Solaris.
func (f Fingerprint) IsSolaris() bool { return f.Family == Solaris }

// WithApt returns true on Linux distributions managed by apt.
func (f Fingerprint) WithApt() bool {
	return f.IsLinux() && slices.Contains(aptDistros, f.DistroID)
}

// WithYum returns true on Linux distributions managed by yum.
func (f Fingerprint) WithYum() bool {
	return f.IsLinux() && slices.Contains(yumDistros, f.DistroID)
}

func (f Fingerprint) String() string {
	s := string(f.Family)
	if f.DistroID != "" {
		s += " " + f.DistroID
	}
	if !f.Version.IsZero() {
		s += " " + f.Version.String()
	}
	if f.VersionName != "" {
		s += fmt.Sprintf(" (%s)", f.VersionName)
	}
	return s
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) Fingerprint
}
