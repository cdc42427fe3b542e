// Package archdetect detects content types and CPU architectures from
// artifact names and paths.
package archdetect

import (
	"path/filepath"
	"regexp"
	"strings"
)

// SupportedArchitectures is the set of architecture path/filename segments
// recognized during uploads and transfers.
var SupportedArchitectures = []string{
	"x86_64",
	"aarch64",
	"ppc64le",
	"s390x",
	"i686",
	"riscv64",
	"noarch",
	"src",
}

// Type is a coarse content category detected from an artifact name.
type Type string

const (
	TypeRPM  Type = "rpm"
	TypeLog  Type = "log"
	TypeSBOM Type = "sbom"
)

var rpmSuffixPattern = regexp.MustCompile(`(?i)\.([a-z0-9_]+)\.rpm$`)

// TypeFromName detects the content type from an artifact name using
// case-insensitive substring matching. Precedence: sbom > log > rpm.
// Returns false when no category matches.
func TypeFromName(name string) (Type, bool) {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "sbom"):
		return TypeSBOM, true
	case strings.Contains(lower, "log"):
		return TypeLog, true
	case strings.Contains(lower, "rpm"):
		return TypeRPM, true
	}
	return "", false
}

// ArchFromPath returns the architecture named by a directory segment of
// path, e.g. /work/x86_64/pkg.rpm -> x86_64. The segment must be a full
// path element, not a substring of one.
func ArchFromPath(path string) string {
	normalized := strings.ToLower(filepath.ToSlash(path))
	segments := strings.Split(normalized, "/")
	// The final segment is the filename, not a directory.
	if len(segments) > 0 {
		segments = segments[:len(segments)-1]
	}
	for _, seg := range segments {
		for _, arch := range SupportedArchitectures {
			if seg == arch {
				return arch
			}
		}
	}
	return ""
}

// ArchFromRPMName extracts the architecture from an RPM filename of the
// form name-version-release.arch.rpm. Returns "" when the suffix does not
// name a supported architecture.
func ArchFromRPMName(path string) string {
	m := rpmSuffixPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return ""
	}
	arch := strings.ToLower(m[1])
	for _, supported := range SupportedArchitectures {
		if arch == supported {
			return arch
		}
	}
	return ""
}

// DetectArch resolves the architecture for a file. Precedence: the explicit
// override, then a directory segment of the path, then the RPM filename
// suffix. Returns "" when none apply.
func DetectArch(path, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if arch := ArchFromPath(path); arch != "" {
		return arch
	}
	return ArchFromRPMName(path)
}

// GroupRPMsByArch buckets RPM paths by detected architecture. Paths whose
// architecture cannot be determined are returned separately so callers can
// warn and skip them.
func GroupRPMsByArch(paths []string, explicit string) (groups map[string][]string, unknown []string) {
	groups = make(map[string][]string)
	for _, p := range paths {
		arch := DetectArch(p, explicit)
		if arch == "" {
			unknown = append(unknown, p)
			continue
		}
		groups[arch] = append(groups[arch], p)
	}
	return groups, unknown
}
