package resolver

import (
	"github.com/Masterminds/semver/v3"
)

// candidateRefs returns the ordered list of ref names to try for a declared
// version string, per §4.3's "Version-to-ref mapping":
//
//  1. If version parses as X.Y.Z (optionally with a pre-release suffix),
//     try "v<version>" first, then "<version>".
//  2. Otherwise version is a literal ref name (branch or commit-ish) and is
//     the only candidate.
func candidateRefs(version string) []string {
	if _, err := semver.StrictNewVersion(version); err == nil {
		return []string{"v" + version, version}
	}
	return []string{version}
}
