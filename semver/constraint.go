package semver

import (
	"strings"

	mmsemver "github.com/Masterminds/semver/v3"
	"github.com/zern/kernel/kernelerr"
)

// Constraint is a parsed dependency version range, e.g. "^1.2.3",
// "~1.2.3", ">=1.0.0 <2.0.0", or a "||"-joined union of subranges. "*"
// (or "") matches anything.
type Constraint struct {
	raw string
	c   *mmsemver.Constraints
}

// ParseConstraint parses s into a Constraint, or returns a
// CodeInvalidConstraint *kernelerr.Error.
func ParseConstraint(s string) (Constraint, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		trimmed = "*"
	}
	c, err := mmsemver.NewConstraint(trimmed)
	if err != nil {
		return Constraint{}, kernelerr.InvalidConstraint(s, err)
	}
	return Constraint{raw: s, c: c}, nil
}

// MustParseConstraint parses s, panicking on error.
func MustParseConstraint(s string) Constraint {
	c, err := ParseConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String returns the original constraint text (modulo surrounding
// whitespace), matching the round-trip law in spec.md §8.
func (c Constraint) String() string {
	if c.raw == "" {
		return "*"
	}
	return strings.TrimSpace(c.raw)
}

// Satisfies reports whether v satisfies c. An empty/unparsed v or c is
// never satisfied.
func (c Constraint) Satisfies(v Version) bool {
	if c.c == nil || v.v == nil {
		return false
	}
	return c.c.Check(v.v)
}

// Satisfies is the free-function form used by the resolver, matching the
// spec's satisfies(version, constraint) signature.
func Satisfies(v Version, c Constraint) bool { return c.Satisfies(v) }

// CompareVersions returns -1, 0, or +1, matching spec.md §4.1.
func CompareVersions(a, b Version) int { return a.Compare(b) }
