package platform

import (
	"strconv"
	"strings"

	"github.com/blang/semver"
)

// Version is a dotted numeric version of up to three components. Unset
// components compare as zero.
type Version struct {
	parts [3]int
	n     int
}

// ParseVersion reads the leading dotted numeric run of s, so that
// "10.0.19045 Build 19045" yields 10.0.19045 and "13.2-RELEASE" yields 13.2.
// Input without a leading number yields the zero Version.
func ParseVersion(s string) Version {
	var v Version
	s = strings.TrimSpace(s)
	for v.n < len(v.parts) {
		end := 0
		for end < len(s) && s[end] >= '0' && s[end] <= '9' {
			end++
		}
		if end == 0 {
			break
		}
		n, err := strconv.Atoi(s[:end])
		if err != nil {
			break
		}
		v.parts[v.n] = n
		v.n++
		s = s[end:]
		if !strings.HasPrefix(s, ".") {
			break
		}
		s = s[1:]
	}
	return v
}

// IsZero reports whether no component was parsed.
func (v Version) IsZero() bool { return v.n == 0 }

func (v Version) Major() int { return v.parts[0] }
func (v Version) Minor() int { return v.parts[1] }
func (v Version) Patch() int { return v.parts[2] }

func (v Version) String() string {
	s := make([]string, v.n)
	for i := 0; i < v.n; i++ {
		s[i] = strconv.Itoa(v.parts[i])
	}
	return strings.Join(s, ".")
}

func (v Version) semver() semver.Version {
	return semver.Version{
		Major: uint64(v.parts[0]),
		Minor: uint64(v.parts[1]),
		Patch: uint64(v.parts[2]),
	}
}

// Compare returns -1, 0 or 1.
func (v Version) Compare(o Version) int {
	return v.semver().Compare(o.semver())
}

// Equal reports whether both versions denote the same release.
func (v Version) Equal(o Version) bool {
	return v.Compare(o) == 0
}

// MajorMatches reports whether v has the major component of pattern.
// Pattern components that are not numbers ("8.Y.Z") are wildcards.
func (v Version) MajorMatches(pattern string) bool {
	return v.matches(pattern, 1)
}

// MinorMatches reports whether v has the major and minor components of
// pattern ("10.12.Z").
func (v Version) MinorMatches(pattern string) bool {
	return v.matches(pattern, 2)
}

func (v Version) matches(pattern string, depth int) bool {
	if v.IsZero() {
		return false
	}
	fields := strings.Split(pattern, ".")
	for i := 0; i < depth && i < len(fields); i++ {
		want, err := strconv.Atoi(fields[i])
		if err != nil {
			continue
		}
		if v.parts[i] != want {
			return false
		}
	}
	return true
}
