package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is the current policy model version. Bump the major component on
// breaking changes to the role/permission tables; cached permission sets
// carry the version they were computed under.
const Version = "1.0.0"

// ErrInvalidVersion is returned for malformed version strings.
var ErrInvalidVersion = errors.New("sentinel: invalid policy version")

var semverRe = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// ValidVersion reports whether v is a well-formed MAJOR.MINOR.PATCH string.
func ValidVersion(v string) bool {
	return semverRe.MatchString(v)
}

// CompareVersions returns a negative value if a < b, zero if equal, and a
// positive value if a > b.
func CompareVersions(a, b string) (int, error) {
	if !ValidVersion(a) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, a)
	}
	if !ValidVersion(b) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, b)
	}

	ap := strings.Split(a, ".")
	bp := strings.Split(b, ".")
	for i := 0; i < 3; i++ {
		av, _ := strconv.Atoi(ap[i]) //nolint:errcheck // matched \d+ above
		bv, _ := strconv.Atoi(bp[i]) //nolint:errcheck // matched \d+ above
		if av != bv {
			return av - bv, nil
		}
	}
	return 0, nil
}

// CompatibleVersion reports whether a permission set computed under v is
// still usable: major components must match.
func CompatibleVersion(v string) (bool, error) {
	if !ValidVersion(v) {
		return false, fmt.Errorf("%w: %q", ErrInvalidVersion, v)
	}
	return strings.SplitN(v, ".", 2)[0] == strings.SplitN(Version, ".", 2)[0], nil
}
