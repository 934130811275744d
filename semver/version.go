// Package semver parses plugin versions and dependency constraints and
// answers satisfaction/ordering questions for the resolver. It is a thin,
// spec-shaped wrapper over github.com/Masterminds/semver/v3: caret, tilde,
// comparison operators, wildcards, and "||"-joined ranges are exactly what
// that library already parses, so C1 delegates instead of reimplementing
// a constraint grammar.
package semver

import (
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
	"github.com/zern/kernel/kernelerr"
)

// Version is a parsed semantic version: major.minor.patch[-prerelease][+build].
type Version struct {
	raw string
	v   *mmsemver.Version
}

// ParseVersion parses s into a Version, or returns a CodeInvalidVersion
// *kernelerr.Error.
func ParseVersion(s string) (Version, error) {
	v, err := mmsemver.NewVersion(strings.TrimSpace(s))
	if err != nil {
		return Version{}, kernelerr.InvalidVersion(s, err)
	}
	return Version{raw: s, v: v}, nil
}

// MustParseVersion parses s, panicking on error. Intended for static
// version literals (plugin.Plugin.Version()).
func MustParseVersion(s string) Version {
	v, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String renders the version in canonical major.minor.patch[-pre][+build] form.
func (v Version) String() string {
	if v.v == nil {
		return v.raw
	}
	return v.v.String()
}

// IsZero reports whether v was never successfully parsed.
func (v Version) IsZero() bool { return v.v == nil }

// Compare returns -1, 0, or +1 as v is less than, equal to, or greater
// than other. Comparison ignores build metadata; a version with a
// prerelease label sorts lower than the same version without one.
func (v Version) Compare(other Version) int {
	return v.v.Compare(other.v)
}

// Equal reports whether v and other compare equal.
func (v Version) Equal(other Version) bool { return v.Compare(other) == 0 }

// LessThan reports whether v sorts before other.
func (v Version) LessThan(other Version) bool { return v.Compare(other) < 0 }

// GreaterThan reports whether v sorts after other.
func (v Version) GreaterThan(other Version) bool { return v.Compare(other) > 0 }

// Major, Minor, Patch expose the numeric components.
func (v Version) Major() int64 { return v.v.Major() }
func (v Version) Minor() int64 { return v.v.Minor() }
func (v Version) Patch() int64 { return v.v.Patch() }

// Prerelease returns the prerelease label, or "" if absent.
func (v Version) Prerelease() string { return v.v.Prerelease() }
