package dbservice

import (
	"fmt"
	"strconv"
	"strings"
)

// parseMajorMinor extracts "major.minor" from the first whitespace-separated
// field that starts with one, in a version string like
// "15.4 (Debian 15.4-1)", "PostgreSQL 16.2 on x86_64-pc-linux-gnu, ..." or
// "3.45.1". Returns (0, 0) if nothing parseable is found, which
// CheckVersion treats as incompatible rather than silently passing.
func parseMajorMinor(version string) (int, int, bool) {
	for _, field := range strings.Fields(version) {
		parts := strings.SplitN(field, ".", 3)
		if len(parts) < 2 {
			continue
		}
		major, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		minor, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		return major, minor, true
	}
	return 0, 0, false
}

func cmpMajorMinor(aMaj, aMin, bMaj, bMin int) int {
	if aMaj != bMaj {
		if aMaj < bMaj {
			return -1
		}
		return 1
	}
	if aMin != bMin {
		if aMin < bMin {
			return -1
		}
		return 1
	}
	return 0
}

// CheckVersion checks a reported backend version against a declared
// compatible range. It returns (warn=true, err=nil) for a version outside
// the "tested" range but inside the wider "compatible" range, and a
// non-nil *DatabaseError (ErrVersion) when the reported version falls
// outside even the compatible range.
func CheckVersion(reported string, want VersionRange) (warn bool, err *DatabaseError) {
	major, minor, ok := parseMajorMinor(reported)
	if !ok {
		return false, NewDatabaseError(ErrVersion, fmt.Sprintf("could not parse reported version %q", reported), nil)
	}

	minMaj, minMin, _ := parseMajorMinor(want.MinCompatible)
	maxMaj, maxMin, _ := parseMajorMinor(want.MaxCompatible)
	if cmpMajorMinor(major, minor, minMaj, minMin) < 0 || cmpMajorMinor(major, minor, maxMaj, maxMin) > 0 {
		return false, NewDatabaseError(ErrVersion,
			fmt.Sprintf("reported version %q outside compatible range [%s, %s]", reported, want.MinCompatible, want.MaxCompatible), nil)
	}

	if want.MinTested == "" || want.MaxTested == "" {
		return false, nil
	}
	testedMinMaj, testedMinMin, _ := parseMajorMinor(want.MinTested)
	testedMaxMaj, testedMaxMin, _ := parseMajorMinor(want.MaxTested)
	if cmpMajorMinor(major, minor, testedMinMaj, testedMinMin) < 0 || cmpMajorMinor(major, minor, testedMaxMaj, testedMaxMin) > 0 {
		return true, nil
	}
	return false, nil
}
