package platform

// releaseRule maps a version pattern to a release name. Rules are checked in
// order and the first match wins.
type releaseRule struct {
	pattern string
	minor   bool // compare major and minor instead of major only
	name    string
}

var debianReleases = []releaseRule{
	{"8.Y.Z", false, "jessie"},
	{"7.Y.Z", false, "wheezy"},
	{"6.Y.Z", false, "squeeze"},
	{"5.Y.Z", false, "lenny"},
	{"4.Y.Z", false, "etch"},
	{"3.1.Z", true, "sarge"},
	{"3.0.Z", true, "woody"},
}

var windowsReleases = []releaseRule{
	{"5.Y.Z", false, "Windows XP"},
	{"6.0.Z", true, "Windows Vista"},
	{"6.1.Z", true, "Windows 7"},
	{"6.2.Z", true, "Windows 8"},
	{"6.3.Z", true, "Windows 8.1"},
	{"10.0.Z", true, "Windows 10"},
}

var macosReleases = []releaseRule{
	{"10.12.Z", true, "Sierra"},
	{"10.11.Z", true, "El Capitan"},
	{"10.10.Z", true, "Yosemite"},
	{"10.9.Z", true, "Mavericks"},
	{"10.8.Z", true, "Mountain Lion"},
	{"10.7.Z", true, "Lion"},
	{"10.6.Z", true, "Snow Leopard"},
	{"10.5.Z", true, "Leopard"},
	{"10.4.Z", true, "Tiger"},
	{"10.3.Z", true, "Panther"},
	{"10.2.Z", true, "Jaguar"},
	{"10.1.Z", true, "Puma"},
	{"10.0.Z", true, "Cheetah"},
}

var solarisReleases = []releaseRule{
	{"5.10", true, "Solaris 10"},
	{"5.11", true, "Solaris 11"},
}

// releaseName returns the name of the first rule v matches, or "".
func releaseName(rules []releaseRule, v Version) string {
	for _, r := range rules {
		if r.minor && v.MinorMatches(r.pattern) {
			return r.name
		}
		if !r.minor && v.MajorMatches(r.pattern) {
			return r.name
		}
	}
	return ""
}

// DebianReleaseName returns the Debian codename for v, or "" when v is not
// in the known table.
func DebianReleaseName(v Version) string { return releaseName(debianReleases, v) }

// WindowsReleaseName returns the marketing name for a Windows NT version.
func WindowsReleaseName(v Version) string { return releaseName(windowsReleases, v) }

// MacOSReleaseName returns the marketing name for a macOS product version.
func MacOSReleaseName(v Version) string { return releaseName(macosReleases, v) }

// SolarisReleaseName returns the name for a SunOS release.
func SolarisReleaseName(v Version) string { return releaseName(solarisReleases, v) }
