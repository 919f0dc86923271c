package stack

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultVersion is used when no stack version is given at all.
const DefaultVersion = "6.3.3"

// supportedVersions maps release train aliases to the concrete version
// each one currently points at.
var supportedVersions = map[string]string{
	"6.0":    "6.0.1",
	"6.1":    "6.1.3",
	"6.2":    "6.2.4",
	"6.3":    "6.3.3",
	"6.4":    "6.4.0",
	"6.5":    "6.5.0",
	"master": "7.0.0-alpha1",
}

// ResolveVersion maps a release train alias to its concrete version.
// Unknown values pass through verbatim so specific releases, e.g. 6.2.3,
// keep working.
func ResolveVersion(alias string) string {
	if v, ok := supportedVersions[alias]; ok {
		return v
	}
	return alias
}

// SupportedAliases lists the known release trains for help text.
func SupportedAliases() []string {
	aliases := make([]string, 0, len(supportedVersions))
	for alias := range supportedVersions {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// parseVersion splits a dotted version into its numeric segments. A
// non-numeric suffix after a hyphen is stripped, so "7.0.0-alpha1"
// parses as 7.0.0.
func parseVersion(version string) []int {
	parts := strings.Split(version, ".")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			prefix, _, _ := strings.Cut(part, "-")
			n, _ = strconv.Atoi(prefix)
		}
		out = append(out, n)
	}
	return out
}

// versionAtLeast reports whether version >= target under dotted-numeric
// ordering. A version that is a strict prefix of the target, e.g. "6.3"
// against "6.3.0", orders below it.
func versionAtLeast(version, target string) bool {
	a, b := parseVersion(version), parseVersion(target)
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return len(a) >= len(b)
}
